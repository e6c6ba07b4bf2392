package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers calls to the recognition model.
type Metrics struct {
	CallDuration     *prometheus.HistogramVec
	CallErrors       *prometheus.CounterVec
	QuotaRejections  *prometheus.CounterVec
	CircuitOpen      prometheus.Gauge
	CircuitOpenTotal prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vericore_recognition_call_duration_seconds",
			Help:    "Duration of recognition model calls by operation and outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"operation", "outcome"}),

		CallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_recognition_errors_total",
			Help: "Recognition failures by operation and error category",
		}, []string{"operation", "category"}),

		QuotaRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_recognition_quota_rejections_total",
			Help: "Calls refused by the local recognition quota",
		}, []string{"scope"}),

		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vericore_recognition_circuit_open",
			Help: "1 while the recognition circuit breaker is open",
		}),

		CircuitOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vericore_recognition_circuit_opened_total",
			Help: "Number of times the recognition circuit breaker opened",
		}),
	}
}

func (m *Metrics) ObserveCall(operation, outcome string, d time.Duration) {
	if m != nil {
		m.CallDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementError(operation, category string) {
	if m != nil {
		m.CallErrors.WithLabelValues(operation, category).Inc()
	}
}

func (m *Metrics) IncrementQuotaRejection(scope string) {
	if m != nil {
		m.QuotaRejections.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		m.CircuitOpenTotal.Inc()
		return
	}
	m.CircuitOpen.Set(0)
}
