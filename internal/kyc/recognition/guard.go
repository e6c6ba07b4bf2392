package recognition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vericore/internal/kyc/recognition/metrics"
	"vericore/internal/kyc/recognition/quota"
	"vericore/pkg/platform/circuit"
)

// Limiter is a sliding-window quota (quota.InMemoryStore or quota.RedisStore).
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*quota.Result, error)
}

type quotaKeyCtx struct{}

// WithQuotaKey scopes the per-key quota of calls made with ctx, usually to a session.
func WithQuotaKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, quotaKeyCtx{}, key)
}

func quotaKey(ctx context.Context) string {
	if k, ok := ctx.Value(quotaKeyCtx{}).(string); ok {
		return k
	}
	return ""
}

// GuardConfig bounds every model call.
type GuardConfig struct {
	Model       string
	Timeout     time.Duration
	Window      time.Duration
	PerKeyLimit int // 0 disables the per-key quota
	GlobalLimit int // 0 disables the deployment-wide quota
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:     30 * time.Second,
		Window:      time.Minute,
		PerKeyLimit: 10,
		GlobalLimit: 0,
	}
}

// Guard decorates a Recognizer with a call deadline, quotas, a circuit breaker,
// metrics and tracing. Every failure leaving Guard is a *ProviderError.
type Guard struct {
	next    Recognizer
	cfg     GuardConfig
	limiter Limiter
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type GuardOption func(*Guard)

func WithLimiter(l Limiter) GuardOption {
	return func(g *Guard) { g.limiter = l }
}

func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guard) { g.breaker = b }
}

func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

func WithTracer(t trace.Tracer) GuardOption {
	return func(g *Guard) { g.tracer = t }
}

func NewGuard(next Recognizer, cfg GuardConfig, opts ...GuardOption) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	g := &Guard{
		next:   next,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("vericore/recognition"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) ExtractDocument(ctx context.Context, req ExtractionRequest) (*Extraction, error) {
	var out *Extraction
	err := g.call(ctx, "extract_document", []attribute.KeyValue{
		attribute.String("document.type", req.DocumentType),
		attribute.Int("document.images", len(req.Images())),
	}, func(ctx context.Context) error {
		var err error
		out, err = g.next.ExtractDocument(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Guard) MatchFace(ctx context.Context, req FaceMatchRequest) (*FaceMatch, error) {
	var out *FaceMatch
	err := g.call(ctx, "match_face", []attribute.KeyValue{
		attribute.String("challenge.kind", string(req.Challenge.Kind)),
	}, func(ctx context.Context) error {
		var err error
		out, err = g.next.MatchFace(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Guard) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "recognition."+op, trace.WithAttributes(attrs...))
	defer span.End()
	start := time.Now()

	if err := g.admit(ctx); err != nil {
		g.fail(ctx, span, op, start, err)
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		err = g.normalize(callCtx, err)
		if g.breaker != nil && countsAgainstCircuit(err) {
			if _, change := g.breaker.RecordFailure(); change.Opened {
				g.metrics.SetCircuitOpen(true)
				g.logger.WarnContext(ctx, "recognition circuit opened", "operation", op, "error", err)
			}
		}
		g.fail(ctx, span, op, start, err)
		return err
	}

	if g.breaker != nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.metrics.SetCircuitOpen(false)
			g.logger.InfoContext(ctx, "recognition circuit closed", "operation", op)
		}
	}
	g.metrics.ObserveCall(op, "ok", time.Since(start))
	span.SetStatus(codes.Ok, "")
	return nil
}

// admit checks the breaker and both quotas before any network traffic.
func (g *Guard) admit(ctx context.Context) error {
	if g.breaker != nil && !g.breaker.Allow() {
		return NewProviderError(ErrorProviderOutage, g.cfg.Model, "circuit open", nil)
	}
	if g.limiter == nil {
		return nil
	}
	if g.cfg.GlobalLimit > 0 {
		if err := g.checkQuota(ctx, "global", "global", g.cfg.GlobalLimit); err != nil {
			return err
		}
	}
	if key := quotaKey(ctx); key != "" && g.cfg.PerKeyLimit > 0 {
		if err := g.checkQuota(ctx, "key", "key:"+key, g.cfg.PerKeyLimit); err != nil {
			return err
		}
	}
	return nil
}

func (g *Guard) checkQuota(ctx context.Context, scope, key string, limit int) error {
	res, err := g.limiter.Allow(ctx, key, limit, g.cfg.Window)
	if err != nil {
		// quota backend down: let the call through rather than block every customer
		g.logger.WarnContext(ctx, "recognition quota check failed", "scope", scope, "error", err)
		return nil
	}
	if !res.Allowed {
		g.metrics.IncrementQuotaRejection(scope)
		return NewProviderError(ErrorRateLimited, g.cfg.Model, scope+" quota exhausted", nil)
	}
	return nil
}

// normalize maps raw errors (deadline, cancellation) into the taxonomy.
func (g *Guard) normalize(ctx context.Context, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, g.cfg.Model, "model call timed out", err)
	}
	return NewProviderError(ErrorInternal, g.cfg.Model, "model call failed", err)
}

func (g *Guard) fail(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	category := string(GetCategory(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, category)
	span.SetAttributes(attribute.String("error.category", category))
	g.metrics.IncrementError(op, category)
	g.metrics.ObserveCall(op, category, time.Since(start))
	g.logger.WarnContext(ctx, "recognition call failed",
		"operation", op,
		"category", category,
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Only infrastructure failures trip the breaker; a quota refusal or a bad
// image says nothing about the model's health.
func countsAgainstCircuit(err error) bool {
	switch GetCategory(err) {
	case ErrorTimeout, ErrorProviderOutage, ErrorAuthentication:
		return true
	}
	return false
}
