package upstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func directConfig() *entities.UpstreamConfig {
	return &entities.UpstreamConfig{Name: "test", UserToken: "secret-token", Proxy: "direct", Active: true}
}

func TestClientGetStock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getStock", r.URL.Path)
		require.Equal(t, "kiosk-1", r.URL.Query().Get("kioskToken"))
		require.Equal(t, "secret-token", r.URL.Query().Get("userToken"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"name":"Gmail USA","price":25000,"stock":134}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), server.URL, "", time.Second, time.Second)

	rec, err := client.GetStock(context.Background(), directConfig(), "kiosk-1")
	require.NoError(t, err)
	require.True(t, rec.Success)
	require.Equal(t, 134, rec.Stock)
}

func TestClientBuyProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/buyProducts", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("quantity"))
		require.Equal(t, "SUMMER10", r.URL.Query().Get("promotion"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":"true","order_id":"ORD-99"}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), server.URL, "", time.Second, time.Second)

	rec, err := client.BuyProducts(context.Background(), directConfig(), "kiosk-1", 2, pointy.String("SUMMER10"))
	require.NoError(t, err)
	require.True(t, rec.Success)
	require.Equal(t, "ORD-99", rec.OrderID)
}

func TestClientHTMLResponseBecomesPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>Maintenance</body></html>`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), server.URL, "", time.Second, time.Second)

	rec, err := client.BuyProducts(context.Background(), directConfig(), "kiosk-1", 1, nil)
	require.NoError(t, err)
	require.False(t, rec.Success)
	require.True(t, rec.Mock)
	require.True(t, rec.FromHTML)
}

func TestClientNetworkErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(testLogger(), server.URL, "", time.Second, time.Second)

	_, err := client.GetProducts(context.Background(), directConfig(), "ORD-1")
	require.Error(t, err)
}

func TestClientGetProductsProcessing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getProducts", r.URL.Path)
		require.Equal(t, "ORD-42", r.URL.Query().Get("orderId"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"description":"Order in processing!"}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), server.URL, "", time.Second, time.Second)

	rec, err := client.GetProducts(context.Background(), directConfig(), "ORD-42")
	require.NoError(t, err)
	require.False(t, rec.Success)
	require.True(t, rec.StillProcessing())
}
