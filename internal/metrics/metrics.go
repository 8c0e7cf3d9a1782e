package metrics

import (
	"net/http"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "email_triage"

// Metrics collects pipeline statistics. It implements core.Observer.
type Metrics struct {
	registry         *prometheus.Registry
	processed        prometheus.Counter
	duplicates       prometheus.Counter
	classifierErrors prometheus.Counter
	requestTypes     *prometheus.CounterVec
	classifyLatency  prometheus.Histogram
}

// New creates the pipeline metrics on their own registry. fingerprints, when
// given, is exposed as a gauge of remembered fingerprints.
func New(fingerprints interface{ Len() int }) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_processed_total",
			Help:      "Emails that went through the pipeline.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Emails whose text had been seen before.",
		}),
		classifierErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_errors_total",
			Help:      "Classifier calls that failed and produced an Error classification.",
		}),
		requestTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifications by primary request type.",
		}, []string{"primary_request"}),
		classifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_duration_seconds",
			Help:      "Latency of classifier calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.processed,
		m.duplicates,
		m.classifierErrors,
		m.requestTypes,
		m.classifyLatency,
	)

	if fingerprints != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fingerprints",
			Help:      "Distinct email fingerprints remembered since start.",
		}, func() float64 { return float64(fingerprints.Len()) }))
	}

	return m
}

// ObserveResult records a completed pipeline run
func (m *Metrics) ObserveResult(result *core.ProcessingResult, classifyDuration time.Duration) {
	m.processed.Inc()
	if result.Duplicate {
		m.duplicates.Inc()
	}
	if result.Classification.PrimaryRequest == core.PrimaryError {
		m.classifierErrors.Inc()
	}
	m.requestTypes.WithLabelValues(result.Classification.PrimaryRequest).Inc()
	m.classifyLatency.Observe(classifyDuration.Seconds())
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
