package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private prometheus registry and the pipeline collectors.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry          *prometheus.Registry
	documentsIngested *prometheus.CounterVec
	chunksIndexed     prometheus.Counter
	fallbacks         *prometheus.CounterVec
	queries           *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		documentsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "documents_ingested_total",
			Help:      "Documents ingested, by file type.",
		}, []string{"file_type"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "chunks_indexed_total",
			Help:      "Chunks upserted into the vector index.",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "embedding_fallbacks_total",
			Help:      "Embedding fallback activations after a quota error.",
		}, []string{"from", "to"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "queries_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsIngested,
		m.chunksIndexed,
		m.fallbacks,
		m.queries,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DocumentIngested(fileType string, chunks int) {
	if m == nil {
		return
	}
	m.documentsIngested.WithLabelValues(fileType).Inc()
	m.chunksIndexed.Add(float64(chunks))
}

func (m *Metrics) FallbackActivated(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

func (m *Metrics) QueryAnswered(status string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRequest(route, method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, method, code).Observe(elapsed.Seconds())
}
