package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audiovault/internal/services"
)

// Metrics collects request and upload counters on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	uploadBytes     *prometheus.CounterVec
	deletedFiles    prometheus.Counter
}

// NewMetrics registers the audiovault collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "audiovault",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "audiovault",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "audiovault",
				Subsystem: "ingest",
				Name:      "uploads_total",
				Help:      "Uploads by asset kind and outcome",
			},
			[]string{"kind", "result"},
		),
		uploadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "audiovault",
				Subsystem: "ingest",
				Name:      "upload_bytes_total",
				Help:      "Bytes accepted by asset kind",
			},
			[]string{"kind"},
		),
		deletedFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "audiovault",
				Subsystem: "ingest",
				Name:      "deleted_files_total",
				Help:      "Files removed from the store, derived assets included",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.requestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) observeUpload(kind string, size int64, err error) {
	switch {
	case err == nil:
		m.uploads.WithLabelValues(kind, "stored").Inc()
		m.uploadBytes.WithLabelValues(kind).Add(float64(size))
	case errors.Is(err, services.ErrIO):
		m.uploads.WithLabelValues(kind, "failed").Inc()
	default:
		m.uploads.WithLabelValues(kind, "rejected").Inc()
	}
}

func (m *Metrics) observeDeleted(n int) {
	if n > 0 {
		m.deletedFiles.Add(float64(n))
	}
}
