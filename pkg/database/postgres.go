package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cfg "github.com/dootan2020/deals-hub/backend/config"
)

// Postgres wraps the connection pool together with the transactor used by
// repositories to compose multi-statement transactions.
type Postgres struct {
	Pool       *pgxpool.Pool
	DBGetter   tx.DBGetter
	Transactor *tx.Transactor

	maxPoolSize       int32
	connTimeout       time.Duration
	healthCheckPeriod time.Duration
	isoLevel          pgx.TxIsoLevel
}

// Option configures the Postgres wrapper.
type Option func(*Postgres)

func MaxPoolSize(size int32) Option {
	return func(p *Postgres) {
		p.maxPoolSize = size
	}
}

func ConnTimeout(seconds int) Option {
	return func(p *Postgres) {
		p.connTimeout = time.Duration(seconds) * time.Second
	}
}

func HealthCheckPeriod(minutes int) Option {
	return func(p *Postgres) {
		p.healthCheckPeriod = time.Duration(minutes) * time.Minute
	}
}

func Isolation(level pgx.TxIsoLevel) Option {
	return func(p *Postgres) {
		p.isoLevel = level
	}
}

// New connects to Postgres and prepares the transactor.
func New(config *cfg.Config, opts ...Option) (*Postgres, error) {
	p := &Postgres{
		maxPoolSize:       10,
		connTimeout:       5 * time.Second,
		healthCheckPeriod: time.Minute,
		isoLevel:          pgx.ReadCommitted,
	}

	for _, opt := range opts {
		opt(p)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DB.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	poolConfig.MaxConns = p.maxPoolSize
	poolConfig.ConnConfig.ConnectTimeout = p.connTimeout
	poolConfig.HealthCheckPeriod = p.healthCheckPeriod
	poolConfig.ConnConfig.RuntimeParams["default_transaction_isolation"] = strings.ToLower(string(p.isoLevel))

	ctx, cancel := context.WithTimeout(context.Background(), p.connTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p.Pool = pool
	p.Transactor, p.DBGetter = tx.NewTransactorFromPool(pool)

	return p, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
