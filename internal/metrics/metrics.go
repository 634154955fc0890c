// Package metrics defines the Prometheus collectors exported by the
// dashboard binaries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ServiceName = "dashboard"

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	DatasetLoads    *prometheus.CounterVec
	DatasetLoadTime *prometheus.HistogramVec
	DatasetRows     *prometheus.GaugeVec
	CacheLookups    *prometheus.CounterVec
	RowsDropped     *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "http", "requests_total"),
			Help: "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(ServiceName, "http", "request_duration_seconds"),
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"route"}),
		DatasetLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "dataset", "loads_total"),
			Help: "Dataset loads by dataset and result",
		}, []string{"dataset", "result"}),
		DatasetLoadTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(ServiceName, "dataset", "load_duration_seconds"),
			Help:    "Time spent fetching and parsing a dataset",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"dataset"}),
		DatasetRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(ServiceName, "dataset", "rows"),
			Help: "Rows in the most recently loaded table",
		}, []string{"dataset"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "cache", "lookups_total"),
			Help: "Table cache lookups by result",
		}, []string{"result"}),
		RowsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "aggregate", "rows_dropped_total"),
			Help: "Rows left out of an aggregate because a field was missing",
		}, []string{"dataset", "operation"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "worker", "refreshes_total"),
			Help: "Snapshot refreshes by dataset and result",
		}, []string{"dataset", "result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveLoad(dataset string, rows int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DatasetLoads.WithLabelValues(dataset, result(err)).Inc()
	if err == nil {
		m.DatasetLoadTime.WithLabelValues(dataset).Observe(d.Seconds())
		m.DatasetRows.WithLabelValues(dataset).Set(float64(rows))
	}
}

func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) Dropped(dataset, op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsDropped.WithLabelValues(dataset, op).Add(float64(n))
}

func (m *Metrics) ObserveRefresh(dataset string, err error) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(dataset, result(err)).Inc()
}
