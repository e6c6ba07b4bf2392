package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-wide Prometheus metrics. Module metrics live with their modules.
type Metrics struct {
	BuildInfo    *prometheus.GaugeVec
	HTTPRequests *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vericore_build_info",
			Help: "Build and environment information, always 1",
		}, []string{"environment"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vericore_http_requests_total",
			Help: "HTTP requests by route pattern and status class",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) SetBuildInfo(environment string) {
	if m == nil {
		return
	}
	m.BuildInfo.WithLabelValues(environment).Set(1)
}

func (m *Metrics) IncrementHTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}

// Handler serves the default registry for the metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
