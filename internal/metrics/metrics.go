// Package metrics exposes Prometheus collectors for link and blob activity.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes.
const (
	OutcomeRedirect = "redirect"
	OutcomeBlob     = "blob"
	OutcomeNotFound = "not_found"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	linksCreated        *prometheus.CounterVec
	linksDeleted        prometheus.Counter
	resolutions         *prometheus.CounterVec
	clickFailures       prometheus.Counter
	blobUploads         *prometheus.CounterVec
	blobReleaseFailures prometheus.Counter
	httpDuration        *prometheus.HistogramVec
}

// New registers all collectors under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		linksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Links created, by code source (custom, generated).",
		}, []string{"source"}),
		linksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_deleted_total",
			Help:      "Links deleted by their owner.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Short code resolutions, by outcome.",
		}, []string{"outcome"}),
		clickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_accounting_failures_total",
			Help:      "Click increments that failed after a successful resolution.",
		}),
		blobUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_uploads_total",
			Help:      "Blob uploads, by result.",
		}, []string{"result"}),
		blobReleaseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_release_failures_total",
			Help:      "Blob releases that failed while deleting a link.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.linksCreated,
		m.linksDeleted,
		m.resolutions,
		m.clickFailures,
		m.blobUploads,
		m.blobReleaseFailures,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) LinkCreated(custom bool) {
	if m == nil {
		return
	}
	source := "generated"
	if custom {
		source = "custom"
	}
	m.linksCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) LinkDeleted() {
	if m == nil {
		return
	}
	m.linksDeleted.Inc()
}

func (m *Metrics) Resolved(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClickFailed() {
	if m == nil {
		return
	}
	m.clickFailures.Inc()
}

func (m *Metrics) BlobUploaded(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.blobUploads.WithLabelValues(result).Inc()
}

func (m *Metrics) BlobReleaseFailed() {
	if m == nil {
		return
	}
	m.blobReleaseFailures.Inc()
}

// Middleware records request latency labelled by the chi route pattern,
// so short codes do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
