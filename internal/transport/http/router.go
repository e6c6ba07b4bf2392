// Package httptransport assembles the public router: platform middleware in
// a fixed order, then every module's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vericore/internal/platform/metrics"
	"vericore/pkg/platform/httputil"
	"vericore/pkg/platform/middleware/metadata"
	"vericore/pkg/platform/middleware/request"
	"vericore/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Router struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	handlers []Registrar
	checks   map[string]HealthCheck
}

type Option func(*Router)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithHandlers(h ...Registrar) Option {
	return func(r *Router) { r.handlers = append(r.handlers, h...) }
}

// WithHealthCheck adds a dependency to GET /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(r *Router) {
		if check != nil {
			r.checks[name] = check
		}
	}
}

// NewRouter wires all public endpoints.
func NewRouter(logger *slog.Logger, opts ...Option) http.Handler {
	rt := &Router{logger: logger, checks: map[string]HealthCheck{}}
	for _, opt := range opts {
		opt(rt)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(request.Recovery(logger))
	r.Use(rt.countRequests)

	r.Get("/healthz", rt.health)
	for _, h := range rt.handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			rt.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	httputil.WriteJSON(w, status, resp)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// countRequests labels by route pattern so path ids do not explode cardinality.
func (rt *Router) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		rt.metrics.IncrementHTTPRequest(route, strconv.Itoa(sw.status/100)+"xx")
	})
}
