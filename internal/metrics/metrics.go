package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaxdash"

// Metrics groups the collectors exported on /metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	cacheRequests *prometheus.CounterVec
	loaderLoads   *prometheus.CounterVec
	unmatched     *prometheus.CounterVec
	clamps        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"stage"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		loaderLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_loads_total",
			Help:      "Dataset loads by source and outcome.",
		}, []string{"source", "outcome"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_records_total",
			Help:      "Records excluded from regional aggregation because their region code is unknown.",
		}, []string{"dataset"}),
		clamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamps_total",
			Help:      "Values clamped to keep simulations physically meaningful.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.stageDuration,
		m.cacheRequests,
		m.loaderLoads,
		m.unmatched,
		m.clamps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records the time elapsed since start under the given stage.
// Typical use: defer m.ObserveStage("timeseries", time.Now()).
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheRequests.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheRequests.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) LoaderLoad(source string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.loaderLoads.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) Unmatched(dataset string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unmatched.WithLabelValues(dataset).Add(float64(n))
}

func (m *Metrics) Clamped(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.clamps.WithLabelValues(kind).Add(float64(n))
}
