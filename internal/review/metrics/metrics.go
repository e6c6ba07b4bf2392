package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review dashboard.
type Metrics struct {
	// Records received from the capture side, by automatic decision
	Submitted *prometheus.CounterVec

	// Reviewer overrides, by the status set
	Overrides *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_review_records_submitted_total",
			Help: "Verification records received for review by automatic decision",
		}, []string{"status"}),

		Overrides: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_review_overrides_total",
			Help: "Reviewer status overrides by the status set",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncrementSubmitted(status string) {
	if m == nil {
		return
	}
	m.Submitted.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementOverride(status string) {
	if m == nil {
		return
	}
	m.Overrides.WithLabelValues(status).Inc()
}
