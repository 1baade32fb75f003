// Package metrics exposes Prometheus instrumentation for the HTTP surface and stock operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockmaster"

// Outcome labels for stock operation counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected" // domain rule refused the request
	OutcomeConflict = "conflict" // retries exhausted on a locked row
	OutcomeError    = "error"    // infrastructure failure
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StockOperations     *prometheus.CounterVec
	ValidationRetries   prometheus.Counter
	ReservationsExpired prometheus.Counter
	LowStockProducts    prometheus.Gauge
	EventsPublished     *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
	m.StockOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_operations_total",
			Help:      "Stock operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)
	m.ValidationRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_validation_retries_total",
		Help:      "Validation attempts retried after a concurrency conflict",
	})
	m.ReservationsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_reservations_expired_total",
		Help:      "Reservations released by the expiry sweep",
	})
	m.LowStockProducts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stock_low_stock_products",
		Help:      "Products below their reorder level at the last check",
	})
	m.EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the publisher",
		},
		[]string{"event_type", "status"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StockOperations,
		m.ValidationRetries,
		m.ReservationsExpired,
		m.LowStockProducts,
		m.EventsPublished,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTP records one finished request. route is the matched route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordOperation(operation, outcome string) {
	m.StockOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncValidationRetry() { m.ValidationRetries.Inc() }

func (m *Metrics) AddExpired(n int) { m.ReservationsExpired.Add(float64(n)) }

func (m *Metrics) SetLowStock(n int) { m.LowStockProducts.Set(float64(n)) }

func (m *Metrics) RecordEvent(eventType string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}
