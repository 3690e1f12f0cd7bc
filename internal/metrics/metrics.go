package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the process metrics exposed on /metrics.
type Registry struct {
	registry *prometheus.Registry

	purchasesTotal     *prometheus.CounterVec
	stockLevel         *prometheus.GaugeVec
	failedTransactions prometheus.Gauge
	dbLatencySeconds   prometheus.Gauge
	retentionPurged    *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.purchasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_purchases_total",
		Help: "Purchase pipeline runs by outcome.",
	}, []string{"outcome"})

	r.stockLevel = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_product_stock",
		Help: "Last synced stock level per product.",
	}, []string{"product_id"})

	r.failedTransactions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_failed_transactions_24h",
		Help: "Transactions in error state during the last 24 hours.",
	})

	r.dbLatencySeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_db_ping_seconds",
		Help: "Latency of the monitor's database health probe.",
	})

	r.retentionPurged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_retention_purged_rows_total",
		Help: "Rows removed by the retention sweep, by table.",
	}, []string{"table"})

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.purchasesTotal,
		r.stockLevel,
		r.failedTransactions,
		r.dbLatencySeconds,
		r.retentionPurged,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) RecordPurchaseOutcome(outcome string) {
	r.purchasesTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) SetProductStock(productID int64, stock int) {
	r.stockLevel.WithLabelValues(strconv.FormatInt(productID, 10)).Set(float64(stock))
}

func (r *Registry) SetFailedTransactions(count int) {
	r.failedTransactions.Set(float64(count))
}

func (r *Registry) ObserveDBPing(seconds float64) {
	r.dbLatencySeconds.Set(seconds)
}

func (r *Registry) AddPurgedRows(table string, rows int64) {
	r.retentionPurged.WithLabelValues(table).Add(float64(rows))
}
