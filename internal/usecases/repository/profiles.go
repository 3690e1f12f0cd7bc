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

// ProfilesRepository owns the prepaid balance field on the profile row.
type ProfilesRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewProfilesRepository(logger *slog.Logger, pg *database.Postgres) *ProfilesRepository {
	return &ProfilesRepository{logger: logger, db: pg.DBGetter}
}

func (r *ProfilesRepository) GetProfile(ctx context.Context, userID int64) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db(ctx).QueryRow(ctx,
		"SELECT user_id, email, balance, created_at FROM profiles WHERE user_id = $1", userID).Scan(
		&profile.UserID,
		&profile.Email,
		&profile.Balance,
		&profile.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	return &profile, nil
}

func (r *ProfilesRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.db(ctx).QueryRow(ctx,
		"SELECT balance FROM profiles WHERE user_id = $1", userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return balance, nil
}

// DebitIfSufficient performs the debit as a single conditional update so two
// concurrent purchases cannot drive the balance negative. A zero rows-affected
// result means insufficient funds at commit time.
func (r *ProfilesRepository) DebitIfSufficient(ctx context.Context, userID, amount int64) (int64, bool, error) {
	var newBalance int64
	err := r.db(ctx).QueryRow(ctx,
		`UPDATE profiles SET balance = balance - $1
		 WHERE user_id = $2 AND balance >= $1
		 RETURNING balance`,
		amount, userID).Scan(&newBalance)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to debit balance: %w", err)
	}

	r.logger.Info("Balance debited", "user_id", userID, "amount", amount, "new_balance", newBalance)
	return newBalance, true, nil
}

// Credit adds funds to the balance (deposits).
func (r *ProfilesRepository) Credit(ctx context.Context, userID, amount int64) (int64, error) {
	var newBalance int64
	err := r.db(ctx).QueryRow(ctx,
		"UPDATE profiles SET balance = balance + $1 WHERE user_id = $2 RETURNING balance",
		amount, userID).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}

	r.logger.Info("Balance credited", "user_id", userID, "amount", amount, "new_balance", newBalance)
	return newBalance, nil
}
