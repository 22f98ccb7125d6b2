package validator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the validator processor.
type Metrics struct {
	RequestsTotal      prometheus.Counter
	RequestErrorsTotal prometheus.Counter
	FindingsTotal      *prometheus.CounterVec
	PatchesTotal       prometheus.Counter
	Duration           prometheus.Histogram
}

// NewMetrics creates and registers the validator collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "capspec",
			Subsystem: "validator",
			Name:      "requests_total",
			Help:      "Total validation requests handled.",
		}),
		RequestErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "capspec",
			Subsystem: "validator",
			Name:      "request_errors_total",
			Help:      "Requests that could not be validated at all.",
		}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capspec",
			Subsystem: "validator",
			Name:      "findings_total",
			Help:      "Findings produced, by severity.",
		}, []string{"severity"}),
		PatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "capspec",
			Subsystem: "validator",
			Name:      "patches_total",
			Help:      "Coercion patches suggested.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "capspec",
			Subsystem: "validator",
			Name:      "validation_duration_seconds",
			Help:      "Time spent loading and validating per request.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RequestsTotal,
			m.RequestErrorsTotal,
			m.FindingsTotal,
			m.PatchesTotal,
			m.Duration,
		)
	}
	return m
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// defaultMetrics returns the collectors registered with the default
// registerer. Shared across component instances so re-registration
// never panics.
func defaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}
