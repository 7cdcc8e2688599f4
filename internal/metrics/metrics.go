// Package metrics holds the storefront's business metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Failure reasons used as the reason label.
const (
	ReasonValidation        = "validation"
	ReasonProductNotFound   = "product_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonStockConflict     = "stock_conflict"
	ReasonTimeout           = "timeout"
	ReasonPersistence       = "persistence"
)

type Metrics struct {
	ordersPlaced      prometheus.Counter
	orderFailures     *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	workflowDuration  prometheus.Histogram
}

// New registers the storefront collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders committed by the placement workflow.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_failures_total",
			Help: "Order placements that were rolled back, by reason.",
		}, []string{"reason"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Committed order status transitions.",
		}, []string{"from", "to"}),
		workflowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_workflow_duration_seconds",
			Help:    "Order placement latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ordersPlaced,
		m.orderFailures,
		m.statusTransitions,
		m.workflowDuration,
	)

	return m
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (m *Metrics) OrderPlaced(started time.Time) {
	m.ordersPlaced.Inc()
	m.workflowDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) OrderFailed(reason string, started time.Time) {
	m.orderFailures.WithLabelValues(reason).Inc()
	m.workflowDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) StatusChanged(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}
