package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	cfg "github.com/dootan2020/deals-hub/backend/config"
	"github.com/dootan2020/deals-hub/backend/internal/fraud"
	fraudrepo "github.com/dootan2020/deals-hub/backend/internal/fraud/repository"
	"github.com/dootan2020/deals-hub/backend/internal/handlers"
	"github.com/dootan2020/deals-hub/backend/internal/metrics"
	"github.com/dootan2020/deals-hub/backend/internal/notify"
	"github.com/dootan2020/deals-hub/backend/internal/ratelimit"
	"github.com/dootan2020/deals-hub/backend/internal/upstream"
	"github.com/dootan2020/deals-hub/backend/internal/usecases"
	"github.com/dootan2020/deals-hub/backend/internal/usecases/repository"
	"github.com/dootan2020/deals-hub/backend/internal/workers"
	"github.com/dootan2020/deals-hub/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrationsPath := "./migrations"
	if workDir, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(workDir, "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "migrations")
		} else if _, err := os.Stat(filepath.Join(workDir, "..", "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "..", "migrations")
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Warn("Starting application with configuration",
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port,
		"upstream_base_url", config.Upstream.BaseURL,
		"upstream_proxy", config.Upstream.Proxy)

	// Connect to Database
	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		slog.Error("postgres connection failed", slog.String("error", err.Error()))
		return
	}
	defer pg.Close()

	// Run database migrations
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}
	logger.Info("Database migrations completed successfully")

	// Connect to Redis for the rate limit counters
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	defer redisClient.Close()
	if err = redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis connection failed", "error", err)
		log.Fatal(err)
	}

	// Create repositories
	ordersRepository := repository.NewOrdersRepository(logger, pg)
	transactionsRepository := repository.NewTransactionsRepository(logger, pg)
	profilesRepository := repository.NewProfilesRepository(logger, pg)
	productsRepository := repository.NewProductsRepository(logger, pg)
	invoicesRepository := repository.NewInvoicesRepository(logger, pg)
	notificationsRepository := repository.NewNotificationsRepository(logger, pg)
	upstreamConfigsRepository := repository.NewUpstreamConfigsRepository(logger, pg)
	eventsRepository := fraudrepo.NewEventsRepository(logger, pg)

	// Create services
	registry := metrics.New()
	notifyService := notify.NewService(logger, notificationsRepository)
	mailer := notify.NewLogMailer(logger)
	scorer := fraud.NewScorer(logger, eventsRepository, profilesRepository, notifyService, config.Fraud.FailOpen)

	upstreamClient := upstream.NewClient(logger,
		config.Upstream.BaseURL,
		config.Upstream.CustomProxyPrefix,
		time.Duration(config.Upstream.StockTimeoutSeconds)*time.Second,
		time.Duration(config.Upstream.BuyTimeoutSeconds)*time.Second,
	)

	websocketManager := handlers.NewWebSocketManager(logger)

	purchaseService := usecases.NewPurchaseService(
		logger,
		profilesRepository,
		ordersRepository,
		transactionsRepository,
		upstreamConfigsRepository,
		invoicesRepository,
		upstreamClient,
		scorer,
		notifyService,
		mailer,
		websocketManager,
		registry,
	)
	orderService := usecases.NewOrderService(logger, ordersRepository)
	accountService := usecases.NewAccountService(logger, profilesRepository, transactionsRepository)

	// Initialize and run the stock and health monitor
	monitor := workers.NewMonitor(logger,
		workers.MonitorConfig{
			SyncInterval:      time.Duration(config.Workers.StockSyncIntervalMinutes) * time.Minute,
			Retention:         time.Duration(config.Workers.RetentionDays) * 24 * time.Hour,
			CriticalStock:     config.Workers.CriticalStockThreshold,
			LowStock:          config.Workers.LowStockThreshold,
			FailedTxThreshold: config.Workers.FailedTxThreshold,
			DBLatencyLimit:    time.Duration(config.Workers.DBLatencyThresholdMillis) * time.Millisecond,
		},
		productsRepository,
		upstreamConfigsRepository,
		upstreamClient,
		eventsRepository,
		transactionsRepository,
		pg.Pool,
		notifyService,
		registry,
	)
	go monitor.Start(ctx)

	// Rate limiting backed by Redis
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient))
	limits := handlers.RateLimits{
		Purchase: ratelimit.Middleware(logger, limiter, "purchase",
			config.RateLimit.PurchaseLimit, time.Duration(config.RateLimit.PurchaseWindowSeconds)*time.Second),
		Auth: ratelimit.Middleware(logger, limiter, "auth",
			config.RateLimit.AuthLimit, time.Duration(config.RateLimit.AuthWindowSeconds)*time.Second),
	}

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, purchaseService, orderService, accountService,
		upstreamConfigsRepository, upstreamClient, scorer, limits)
	wsHandler := handlers.NewWebSocketHandler(logger, websocketManager)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router.PathPrefix("/api").Subrouter())
	router.Handle("/metrics", registry.Handler()).Methods("GET")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Wrap router in CORS middleware
	handler := c.Handler(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	cancel()

	// Give 5 seconds to complete current requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}
