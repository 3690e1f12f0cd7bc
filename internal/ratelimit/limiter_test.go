package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFixedWindow(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return current }

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := store.Take(ctx, "ratelimit:auth:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 2-i, res.Remaining)
	}

	// At the limit the request is rejected and must not consume a slot.
	res, err := store.Take(ctx, "ratelimit:auth:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)

	// Rejections do not extend the window.
	require.Equal(t, current.Add(time.Minute), res.ResetAt)

	// A fresh window starts counting from one again.
	current = current.Add(time.Minute + time.Second)
	res, err = store.Take(ctx, "ratelimit:auth:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 2, res.Remaining)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	limiter := NewLimiter(store)
	ctx := context.Background()

	res, err := limiter.Check(ctx, "purchase", "1.1.1.1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Check(ctx, "purchase", "1.1.1.1", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// Another client and another endpoint still have capacity.
	res, err = limiter.Check(ctx, "purchase", "2.2.2.2", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Check(ctx, "auth", "1.1.1.1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := NewLimiter(NewMemoryStore())
	handler := Middleware(logger, limiter, "purchase", 2, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/purchase", nil)
		req.RemoteAddr = "10.0.0.1:51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	require.Equal(t, http.StatusOK, second.Code)

	third := do()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	require.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, third.Header().Get("Retry-After"))
}

func TestMiddlewarePrefersForwardedFor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := NewLimiter(NewMemoryStore())
	handler := Middleware(logger, limiter, "purchase", 1, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	do := func(forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/purchase", nil)
		req.RemoteAddr = "10.0.0.1:51234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do("203.0.113.7, 10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, do("203.0.113.7, 10.0.0.1").Code)
	// A different forwarded client is counted separately.
	require.Equal(t, http.StatusOK, do("203.0.113.8").Code)
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("store down")
}

func TestMiddlewareFailsClosedOnStoreError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := NewLimiter(failingStore{})
	handler := Middleware(logger, limiter, "purchase", 5, time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodPost, "/purchase", nil)
	req.RemoteAddr = "10.0.0.1:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
