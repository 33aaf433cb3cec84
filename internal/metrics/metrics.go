package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one board instance.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Loads           *prometheus.CounterVec
	SchemaFallbacks *prometheus.CounterVec
	Mutations       *prometheus.CounterVec
	FeedFetches     *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry so several instances
// (e.g. in tests) never collide on the default one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Loads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evboard",
				Name:      "loads_total",
				Help:      "Event list loads from the store",
			},
			[]string{"result"},
		),
		SchemaFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evboard",
				Name:      "schema_fallbacks_total",
				Help:      "Reads retried with a narrower field set",
			},
			[]string{"stage"},
		),
		Mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evboard",
				Name:      "mutations_total",
				Help:      "Optimistic mutations by kind and outcome",
			},
			[]string{"kind", "result"},
		),
		FeedFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evboard",
				Name:      "feed_fetch_total",
				Help:      "Public feed fetches by route and outcome",
			},
			[]string{"route", "result"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "evboard",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveLoad(err error) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveFallback(stage string) {
	if m == nil {
		return
	}
	m.SchemaFallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveMutation(kind string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ObserveFeed(route string, err error) {
	if m == nil {
		return
	}
	m.FeedFetches.WithLabelValues(route, result(err)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer is exposed for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ServeHTTP makes Metrics a negroni middleware timing every request.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if m == nil {
		next(w, r)
		return
	}
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	next(rec, r)
	m.RequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
}
