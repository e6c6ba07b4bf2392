package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the capture wizard.
type Metrics struct {
	// Step transitions, labelled by the step entered
	Transitions *prometheus.CounterVec

	// Events the current step does not accept
	RejectedEvents *prometheus.CounterVec

	// Model results that arrived after the session moved on
	StaleResults prometheus.Counter

	// Camera acquire/release operations
	CameraOps *prometheus.CounterVec

	// Sessions that entered the cooldown
	Cooldowns prometheus.Counter

	// Sessions currently held by the service
	ActiveSessions prometheus.Gauge

	// Finalized sessions by status
	Completed *prometheus.CounterVec

	// Time from session start to Result
	SessionDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_capture_transitions_total",
			Help: "Capture wizard step transitions by target step",
		}, []string{"step"}),

		RejectedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_capture_rejected_events_total",
			Help: "Events not accepted by the current step",
		}, []string{"step", "event"}),

		StaleResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vericore_capture_stale_results_total",
			Help: "Recognition results discarded because the session moved on",
		}),

		CameraOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_capture_camera_ops_total",
			Help: "Camera acquisitions and releases",
		}, []string{"op"}),

		Cooldowns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vericore_capture_cooldowns_total",
			Help: "Sessions that entered the rate-limit cooldown",
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vericore_capture_active_sessions",
			Help: "Capture sessions currently in memory",
		}),

		Completed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_capture_completed_total",
			Help: "Finalized sessions by status",
		}, []string{"status"}),

		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vericore_capture_session_duration_seconds",
			Help:    "Time from session start to result",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800},
		}),
	}
}

func (m *Metrics) IncrementTransition(step string) {
	if m != nil {
		m.Transitions.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) IncrementRejectedEvent(step, event string) {
	if m != nil {
		m.RejectedEvents.WithLabelValues(step, event).Inc()
	}
}

func (m *Metrics) IncrementStaleResult() {
	if m != nil {
		m.StaleResults.Inc()
	}
}

func (m *Metrics) IncrementCameraOp(op string) {
	if m != nil {
		m.CameraOps.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncrementCooldown() {
	if m != nil {
		m.Cooldowns.Inc()
	}
}

func (m *Metrics) IncrementActiveSessions() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) DecrementActiveSessions() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

// ObserveCompleted records a finalized session and how long it took.
func (m *Metrics) ObserveCompleted(status string, seconds float64) {
	if m != nil {
		m.Completed.WithLabelValues(status).Inc()
		m.SessionDuration.Observe(seconds)
	}
}
