package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vchconv"

// Outcome label values for Conversions.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus collectors of the converter.
type Metrics struct {
	// Conversion metrics
	Conversions        *prometheus.CounterVec
	ConversionDuration prometheus.Histogram
	RowsWritten        *prometheus.CounterVec
	SourceBytes        prometheus.Histogram

	// API metrics
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of conversions by outcome and failing stage",
			},
			[]string{"outcome", "stage"},
		),
		ConversionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of complete conversions",
			Buckets:   prometheus.DefBuckets,
		}),
		RowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Total number of output rows by transaction type",
			},
			[]string{"type"},
		),
		SourceBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_bytes",
			Help:      "Size of downloaded source documents",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
	}
}

// ObserveSuccess records a finished conversion.
func (m *Metrics) ObserveSuccess(seconds float64, rowsByType map[string]int) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(OutcomeSuccess, "").Inc()
	m.ConversionDuration.Observe(seconds)
	for rowType, n := range rowsByType {
		m.RowsWritten.WithLabelValues(rowType).Add(float64(n))
	}
}

// ObserveFailure records a conversion that stopped at stage.
func (m *Metrics) ObserveFailure(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(OutcomeFailure, stage).Inc()
	m.ConversionDuration.Observe(seconds)
}

// ObserveSourceBytes records the size of a downloaded document.
func (m *Metrics) ObserveSourceBytes(n int64) {
	if m == nil {
		return
	}
	m.SourceBytes.Observe(float64(n))
}
