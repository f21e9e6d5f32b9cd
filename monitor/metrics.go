// Package monitor exposes pipeline metrics to Prometheus.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/go-docsrag/core"
)

type Config struct {
	// Namespace prefixes every metric name.
	Namespace string
	// ServiceName is attached as a constant "service" label.
	ServiceName string
	// EnableDefaultCollectors registers Go runtime and process metrics.
	EnableDefaultCollectors bool
}

// Metrics is a Collector backed by a private Prometheus registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	retrieved     prometheus.Histogram
}

func NewMetrics(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "docsrag"
	}
	registry := prometheus.NewRegistry()

	var reg prometheus.Registerer = registry
	if cfg.ServiceName != "" {
		reg = prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)
	}
	if cfg.EnableDefaultCollectors {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		Registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "requests_total",
			Help:      "Prompt requests by outcome.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "retrieved_documents",
			Help:      "Documents returned by the retriever per request.",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),
	}
	reg.MustRegister(m.requests, m.stageDuration, m.retrieved)
	return m
}

func (m *Metrics) ObserveStage(stage core.Stage, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(status string) {
	m.requests.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRetrieved(n int) {
	m.retrieved.Observe(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
