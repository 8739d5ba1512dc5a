// Package metrics exposes Prometheus instrumentation for the presence core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks validation decisions, roster size and notifier health.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Decisions           *prometheus.CounterVec
	ValidationDuration  *prometheus.HistogramVec
	ConsistencyFaults   prometheus.Counter
	ScanLogFailures     prometheus.Counter
	PresentParticipants *prometheus.GaugeVec
	Subscribers         prometheus.Gauge
	SinkFailures        *prometheus.CounterVec
}

// New registers every metric on reg.  Tests pass prometheus.NewRegistry()
// so repeated construction does not collide on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventgate_validation_decisions_total",
			Help: "Validation decisions by direction, segment and decision",
		}, []string{"direction", "segment", "decision"}),
		ValidationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventgate_validation_duration_seconds",
			Help:    "Duration of entry/exit validations including ledger writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"direction"}),
		ConsistencyFaults: f.NewCounter(prometheus.CounterOpts{
			Name: "eventgate_state_consistency_faults_total",
			Help: "Registry updates that disagreed with the session ledger",
		}),
		ScanLogFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "eventgate_scan_log_failures_total",
			Help: "Scan audit records that could not be written",
		}),
		PresentParticipants: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventgate_present_participants",
			Help: "Participants currently on site by roster category",
		}, []string{"category"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "eventgate_presence_subscribers",
			Help: "Active live presence subscribers",
		}),
		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventgate_presence_sink_failures_total",
			Help: "Snapshots a notifier sink failed to deliver",
		}, []string{"sink"}),
	}
}

// ObserveDecision counts a decision and records its duration.
// Call with time.Now() taken at the start of the validation.
func (m *Metrics) ObserveDecision(direction, segment, decision string, start time.Time) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(direction, segment, decision).Inc()
	m.ValidationDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncConsistencyFault() {
	if m == nil {
		return
	}
	m.ConsistencyFaults.Inc()
}

func (m *Metrics) IncScanLogFailure() {
	if m == nil {
		return
	}
	m.ScanLogFailures.Inc()
}

func (m *Metrics) SetPresent(category string, n int) {
	if m == nil {
		return
	}
	m.PresentParticipants.WithLabelValues(category).Set(float64(n))
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) IncSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}
