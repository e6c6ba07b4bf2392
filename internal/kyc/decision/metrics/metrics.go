package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for automatic decisions.
type Metrics struct {
	// Outcomes by status, risk and the rule that fired
	Outcomes *prometheus.CounterVec

	// Distribution of normalized face-match scores at decision time
	FaceMatchScore prometheus.Histogram

	// Liveness gate verdicts per attempt
	GateVerdicts *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_decision_outcomes_total",
			Help: "Automatic verification decisions by status, risk and reason",
		}, []string{"status", "risk", "reason"}),

		FaceMatchScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vericore_decision_face_match_score",
			Help:    "Normalized face-match score (0-100) at decision time",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
		}),

		GateVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_liveness_gate_verdicts_total",
			Help: "Liveness gate verdicts per face-match attempt",
		}, []string{"verdict", "strict"}),
	}
}

// IncrementOutcome records a decision.
func (m *Metrics) IncrementOutcome(status, risk, reason string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, risk, reason).Inc()
	}
}

// ObserveScore records the score a decision was based on.
func (m *Metrics) ObserveScore(score int) {
	if m != nil {
		m.FaceMatchScore.Observe(float64(score))
	}
}

// IncrementGateVerdict records one liveness gate evaluation.
func (m *Metrics) IncrementGateVerdict(verdict string, strict bool) {
	if m != nil {
		s := "false"
		if strict {
			s = "true"
		}
		m.GateVerdicts.WithLabelValues(verdict, s).Inc()
	}
}
