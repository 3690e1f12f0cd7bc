package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/ratelimit"
	"github.com/dootan2020/deals-hub/backend/internal/usecases"
)

type stubBalances struct {
	balance int64
}

func (s *stubBalances) GetProfile(context.Context, int64) (*entities.Profile, error) {
	return &entities.Profile{UserID: 1, Email: "bob@example.com", Balance: s.balance}, nil
}

func (s *stubBalances) GetBalance(context.Context, int64) (int64, error) {
	return s.balance, nil
}

func (s *stubBalances) DebitIfSufficient(_ context.Context, _, amount int64) (int64, bool, error) {
	if s.balance < amount {
		return 0, false, nil
	}
	s.balance -= amount
	return s.balance, true, nil
}

func (s *stubBalances) Credit(_ context.Context, _, amount int64) (int64, error) {
	s.balance += amount
	return s.balance, nil
}

type stubLedger struct{}

func (stubLedger) InsertTransaction(context.Context, *entities.Transaction) error {
	return nil
}

func (stubLedger) FindUserTransactions(context.Context, int64) ([]entities.Transaction, error) {
	return nil, nil
}

func newBalanceRouter(t *testing.T, limit int) (*mux.Router, *stubBalances) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	balances := &stubBalances{balance: 10_000}
	accountService := usecases.NewAccountService(logger, balances, stubLedger{})

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	limits := RateLimits{
		Purchase: ratelimit.Middleware(logger, limiter, "purchase", limit, time.Minute),
	}

	handler := NewHTTPHandler(logger, nil, nil, accountService, nil, nil, nil, limits)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, balances
}

func TestDepositIsRateLimited(t *testing.T) {
	router, balances := newBalanceRouter(t, 2)

	deposit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(`{"user_id":1,"amount":5000}`))
		req.RemoteAddr = "10.0.0.1:51234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, deposit().Code)
	require.Equal(t, http.StatusOK, deposit().Code)

	// Third deposit in the window is rejected and must not credit anything.
	third := deposit()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	require.Equal(t, int64(20_000), balances.balance)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	router, balances := newBalanceRouter(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(`{"user_id":1,"amount":0}`))
	req.RemoteAddr = "10.0.0.1:51234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, int64(10_000), balances.balance)
}
