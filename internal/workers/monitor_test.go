package workers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
	"github.com/dootan2020/deals-hub/backend/internal/upstream"
)

type fakeCatalog struct {
	products []entities.Product
	updates  map[int64]int
	logs     []string
	purged   int64
}

func (f *fakeCatalog) ListActiveProducts(context.Context) ([]entities.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) UpdateStock(_ context.Context, productID int64, stock int, _ int64) error {
	if f.updates == nil {
		f.updates = make(map[int64]int)
	}
	f.updates[productID] = stock
	return nil
}

func (f *fakeCatalog) InsertSyncLog(_ context.Context, _ int64, status, _ string) error {
	f.logs = append(f.logs, status)
	return nil
}

func (f *fakeCatalog) PurgeSyncLogsOlderThan(context.Context, time.Time) (int64, error) {
	return f.purged, nil
}

type fakeAlerts struct {
	alerts []entities.SecurityAlert
	purged int64
}

func (f *fakeAlerts) InsertAlert(_ context.Context, alert *entities.SecurityAlert) error {
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeAlerts) PurgeEventsOlderThan(context.Context, time.Time) (int64, error) {
	return f.purged, nil
}

type fakeFailedCounter struct {
	count int
}

func (f *fakeFailedCounter) CountFailedSince(context.Context, time.Time) (int, error) {
	return f.count, nil
}

type fakePinger struct{}

func (fakePinger) Ping(context.Context) error { return nil }

type fakeMonitorConfigs struct {
	cfg *entities.UpstreamConfig
}

func (f *fakeMonitorConfigs) GetActiveConfig(context.Context) (*entities.UpstreamConfig, error) {
	return f.cfg, nil
}

type stockByToken struct {
	records map[string]*upstream.StockRecord
}

func (s *stockByToken) GetStock(_ context.Context, _ *entities.UpstreamConfig, kioskToken string) (*upstream.StockRecord, error) {
	return s.records[kioskToken], nil
}

func (s *stockByToken) BuyProducts(context.Context, *entities.UpstreamConfig, string, int, *string) (*upstream.BuyRecord, error) {
	return &upstream.BuyRecord{}, nil
}

func (s *stockByToken) GetProducts(context.Context, *entities.UpstreamConfig, string) (*upstream.GoodsRecord, error) {
	return &upstream.GoodsRecord{}, nil
}

type fakeAdminNotifier struct {
	types []string
}

func (f *fakeAdminNotifier) NotifyAdmin(_ context.Context, notificationType, _ string) error {
	f.types = append(f.types, notificationType)
	return nil
}

func newTestMonitor(catalog *fakeCatalog, alerts *fakeAlerts, client *stockByToken, failed *fakeFailedCounter, notifier *fakeAdminNotifier) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMonitor(logger,
		MonitorConfig{
			SyncInterval:      time.Minute,
			Retention:         30 * 24 * time.Hour,
			CriticalStock:     3,
			LowStock:          10,
			FailedTxThreshold: 10,
			DBLatencyLimit:    time.Second,
		},
		catalog,
		&fakeMonitorConfigs{cfg: &entities.UpstreamConfig{ID: 1, UserToken: "tok", Proxy: "direct", Active: true}},
		client,
		alerts,
		failed,
		fakePinger{},
		notifier,
		nil)
}

func TestMonitorSyncsStockAndRaisesAlerts(t *testing.T) {
	catalog := &fakeCatalog{products: []entities.Product{
		{ID: 1, Name: "Gmail USA", KioskToken: "k1", Active: true},
		{ID: 2, Name: "Hotmail", KioskToken: "k2", Active: true},
		{ID: 3, Name: "Yahoo", KioskToken: "k3", Active: true},
		{ID: 4, Name: "Outlook", KioskToken: "k4", Active: true},
	}}
	client := &stockByToken{records: map[string]*upstream.StockRecord{
		"k1": {Success: true, Stock: 134, Price: 25000},
		"k2": {Success: true, Stock: 0},
		"k3": {Success: true, Stock: 2},
		"k4": {Success: false, Mock: true},
	}}
	alerts := &fakeAlerts{}
	notifier := &fakeAdminNotifier{}
	monitor := newTestMonitor(catalog, alerts, client, &fakeFailedCounter{}, notifier)

	monitor.runCycle(context.Background())

	require.Equal(t, 134, catalog.updates[1])
	require.Equal(t, 0, catalog.updates[2])
	require.Equal(t, 2, catalog.updates[3])

	// Placeholder data never overwrites stock.
	_, updated := catalog.updates[4]
	require.False(t, updated)
	require.Contains(t, catalog.logs, "skipped")

	// Out-of-stock and critically-low products produce alerts.
	require.Len(t, alerts.alerts, 2)
	for _, alert := range alerts.alerts {
		require.Equal(t, entities.AlertTypeStockLevel, alert.AlertType)
	}
}

func TestMonitorLowStockOnlyNotifies(t *testing.T) {
	catalog := &fakeCatalog{products: []entities.Product{
		{ID: 1, Name: "Gmail USA", KioskToken: "k1", Active: true},
	}}
	client := &stockByToken{records: map[string]*upstream.StockRecord{
		"k1": {Success: true, Stock: 7},
	}}
	alerts := &fakeAlerts{}
	notifier := &fakeAdminNotifier{}
	monitor := newTestMonitor(catalog, alerts, client, &fakeFailedCounter{}, notifier)

	monitor.runCycle(context.Background())

	require.Empty(t, alerts.alerts)
	require.Equal(t, []string{entities.NotificationStockLevel}, notifier.types)
}

func TestMonitorFlagsFailedTransactionSpike(t *testing.T) {
	catalog := &fakeCatalog{}
	alerts := &fakeAlerts{}
	monitor := newTestMonitor(catalog, alerts, &stockByToken{}, &fakeFailedCounter{count: 25}, &fakeAdminNotifier{})

	monitor.runCycle(context.Background())

	require.Len(t, alerts.alerts, 1)
	require.Equal(t, entities.AlertTypeSystemHealth, alerts.alerts[0].AlertType)
}
