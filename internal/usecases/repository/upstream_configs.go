package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/pkg/database"
)

type UpstreamConfigsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewUpstreamConfigsRepository(logger *slog.Logger, pg *database.Postgres) *UpstreamConfigsRepository {
	return &UpstreamConfigsRepository{logger: logger, db: pg.DBGetter}
}

// GetActiveConfig returns the single active upstream credential record, nil
// when none is configured.
func (r *UpstreamConfigsRepository) GetActiveConfig(ctx context.Context) (*entities.UpstreamConfig, error) {
	var cfg entities.UpstreamConfig
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, user_token, proxy, active, created_at
		 FROM upstream_configs WHERE active = true
		 ORDER BY id LIMIT 1`).Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.UserToken,
		&cfg.Proxy,
		&cfg.Active,
		&cfg.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active upstream config: %w", err)
	}

	return &cfg, nil
}
