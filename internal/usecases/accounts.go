package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

// AccountService handles balance reads, deposits and the transaction history.
type AccountService struct {
	logger   *slog.Logger
	balances BalanceStore
	ledger   AccountLedger
}

type AccountLedger interface {
	InsertTransaction(ctx context.Context, t *entities.Transaction) error
	FindUserTransactions(ctx context.Context, userID int64) ([]entities.Transaction, error)
}

func NewAccountService(logger *slog.Logger, balances BalanceStore, ledger AccountLedger) *AccountService {
	return &AccountService{logger: logger, balances: balances, ledger: ledger}
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.balances.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reading balance of user %d: %w", userID, err)
	}
	return balance, nil
}

// Deposit credits the balance first and records the ledger row best effort,
// mirroring the purchase path where the balance row is the source of truth.
func (s *AccountService) Deposit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	newBalance, err := s.balances.Credit(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("crediting user %d: %w", userID, err)
	}
	t := &entities.Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        entities.TransactionTypeDeposit,
		Status:      entities.TransactionStatusCompleted,
		ReferenceID: uuid.NewString(),
	}
	if err := s.ledger.InsertTransaction(ctx, t); err != nil {
		s.logger.Error("recording deposit", slog.Int64("user_id", userID), slog.String("error", err.Error()))
	}
	return newBalance, nil
}

func (s *AccountService) GetUserTransactions(ctx context.Context, userID int64) ([]entities.Transaction, error) {
	transactions, err := s.ledger.FindUserTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions of user %d: %w", userID, err)
	}
	return transactions, nil
}
