package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App       `json:"app"       toml:"app"`
		HTTP      `json:"http"      toml:"http"`
		DB        `json:"db"        toml:"db"`
		Redis     `json:"redis"     toml:"redis"`
		Upstream  `json:"upstream"  toml:"upstream"`
		RateLimit `json:"ratelimit" toml:"ratelimit"`
		Fraud     `json:"fraud"     toml:"fraud"`
		Workers   `json:"workers"   toml:"workers"`
		Log       `json:"logger"    toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	HTTP struct {
		Port string `json:"port" toml:"port" env:"HTTP_PORT" env-default:"8080"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX" env-required:"true"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK" env-default:"1"`
	}

	Redis struct {
		Addr     string `json:"addr"     toml:"addr"     env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `json:"password" toml:"password" env:"REDIS_PASSWORD"`
		DB       int    `json:"db"       toml:"db"       env:"REDIS_DB" env-default:"0"`
	}

	Upstream struct {
		BaseURL             string `json:"base_url"              toml:"base_url"              env:"UPSTREAM_BASE_URL" env-default:"https://taphoammo.net/api"`
		Proxy               string `json:"proxy"                 toml:"proxy"                 env:"UPSTREAM_PROXY" env-default:"allorigins"`
		CustomProxyPrefix   string `json:"custom_proxy_prefix"   toml:"custom_proxy_prefix"   env:"UPSTREAM_CUSTOM_PROXY_PREFIX"`
		StockTimeoutSeconds int    `json:"stock_timeout_seconds" toml:"stock_timeout_seconds" env:"UPSTREAM_STOCK_TIMEOUT" env-default:"10"`
		BuyTimeoutSeconds   int    `json:"buy_timeout_seconds"   toml:"buy_timeout_seconds"   env:"UPSTREAM_BUY_TIMEOUT" env-default:"30"`
	}

	RateLimit struct {
		PurchaseLimit         int `json:"purchase_limit"          toml:"purchase_limit"          env:"RL_PURCHASE_LIMIT" env-default:"10"`
		PurchaseWindowSeconds int `json:"purchase_window_seconds" toml:"purchase_window_seconds" env:"RL_PURCHASE_WINDOW" env-default:"60"`
		AuthLimit             int `json:"auth_limit"              toml:"auth_limit"              env:"RL_AUTH_LIMIT" env-default:"3"`
		AuthWindowSeconds     int `json:"auth_window_seconds"     toml:"auth_window_seconds"     env:"RL_AUTH_WINDOW" env-default:"300"`
	}

	Fraud struct {
		FailOpen bool `json:"fail_open" toml:"fail_open" env:"FRAUD_FAIL_OPEN" env-default:"true"`
	}

	Workers struct {
		StockSyncIntervalMinutes int   `json:"stock_sync_interval_minutes" toml:"stock_sync_interval_minutes" env:"STOCK_SYNC_INTERVAL" env-default:"15"`
		RetentionDays            int   `json:"retention_days"              toml:"retention_days"              env:"RETENTION_DAYS" env-default:"30"`
		CriticalStockThreshold   int   `json:"critical_stock_threshold"    toml:"critical_stock_threshold"    env:"CRITICAL_STOCK" env-default:"3"`
		LowStockThreshold        int   `json:"low_stock_threshold"         toml:"low_stock_threshold"         env:"LOW_STOCK" env-default:"10"`
		FailedTxThreshold        int   `json:"failed_tx_threshold"         toml:"failed_tx_threshold"         env:"FAILED_TX_THRESHOLD" env-default:"10"`
		DBLatencyThresholdMillis int64 `json:"db_latency_threshold_ms"     toml:"db_latency_threshold_ms"     env:"DB_LATENCY_THRESHOLD_MS" env-default:"500"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
