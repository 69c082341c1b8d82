package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pollution_reports"

// Metrics holds the Prometheus counters, histograms, and gauges for the report service.
type Metrics struct {
	// Store metrics.
	ReportsStored   prometheus.Gauge
	MeanLevel       prometheus.Gauge
	ReportsAdded    prometheus.Counter
	ReportsRemoved  prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram

	// Intake metrics.
	ValidationErrors *prometheus.CounterVec // labels: field={level,place,type,date,payload}
	MessagesConsumed prometheus.Counter
	IntakeRunning    prometheus.Gauge
	BatchSize        prometheus.Histogram

	// Change feed metrics.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ReportsStored,
		m.MeanLevel,
		m.ReportsAdded,
		m.ReportsRemoved,
		m.PersistFailures,
		m.PersistDuration,
		m.ValidationErrors,
		m.MessagesConsumed,
		m.IntakeRunning,
		m.BatchSize,
		m.EventsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics for one-shot commands that never
// serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reports_stored",
			Help:      "Number of reports currently in the collection.",
		}),
		MeanLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_level",
			Help:      "Mean severity level over the whole collection.",
		}),
		ReportsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_added_total",
			Help:      "Total reports added and persisted.",
		}),
		ReportsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_removed_total",
			Help:      "Total reports removed and persisted.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Total collection writes that failed and were rolled back.",
		}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Duration of a full collection write.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		ValidationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Rejected submissions by first failing field.",
		}, []string{"field"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_messages_consumed_total",
			Help:      "Total submissions read from the intake topic.",
		}),
		IntakeRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "intake_running",
			Help:      "1 when the intake pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intake_batch_size",
			Help:      "Number of submissions per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total report change events published.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total report change events that could not be published.",
		}),
	}
}
