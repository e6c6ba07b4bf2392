// Package service keeps the live capture sessions of this process and routes
// customer events to them.
package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"vericore/internal/kyc/capture"
	"vericore/internal/kyc/capture/metrics"
	decisionmetrics "vericore/internal/kyc/decision/metrics"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	"vericore/internal/settings"
	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
	"vericore/pkg/platform/audit"
	"vericore/pkg/requestcontext"
)

// SettingsProvider supplies the configuration a new session snapshots.
type SettingsProvider interface {
	Current(ctx context.Context) (settings.Snapshot, error)
}

const (
	DefaultSessionTTL = 30 * time.Minute
	// DefaultAdvanceDelay is how long an "accepted" screen stays up before
	// the wizard moves on by itself.
	DefaultAdvanceDelay = time.Second
	cleanupInterval   = time.Minute
)

// Service owns the session registry. Sessions idle for longer than the TTL are
// evicted and their orchestrators closed.
type Service struct {
	sessions   *gocache.Cache
	settings   SettingsProvider
	recognizer recognition.Recognizer
	records    capture.RecordSink
	auditor    audit.Emitter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	decisions  *decisionmetrics.Metrics
	clock      func() time.Time

	ttl          time.Duration
	cooldown     time.Duration
	autoAdvance  bool
	advanceDelay time.Duration
	newDevice    func() capture.Device

	randMu sync.Mutex
	rand   *rand.Rand
}

type Option func(*Service)

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

func WithAutoAdvance(delay time.Duration) Option {
	return func(s *Service) {
		s.autoAdvance = true
		s.advanceDelay = delay
	}
}

func WithRecordSink(r capture.RecordSink) Option {
	return func(s *Service) { s.records = r }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDecisionMetrics(m *decisionmetrics.Metrics) Option {
	return func(s *Service) { s.decisions = m }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithRand seeds challenge generation; tests use a fixed seed.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rand = r }
}

// WithDeviceFactory replaces the default client-side camera lease.
func WithDeviceFactory(f func() capture.Device) Option {
	return func(s *Service) { s.newDevice = f }
}

func New(settings SettingsProvider, recognizer recognition.Recognizer, opts ...Option) *Service {
	s := &Service{
		settings:   settings,
		recognizer: recognizer,
		logger:     slog.Default(),
		clock:      time.Now,
		ttl:        DefaultSessionTTL,
		cooldown:   capture.DefaultCooldown,
		newDevice:  func() capture.Device { return capture.NewLease() },
		rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = gocache.New(s.ttl, cleanupInterval)
	s.sessions.OnEvicted(func(key string, v any) {
		if o, ok := v.(*capture.Orchestrator); ok {
			o.Close()
		}
		s.metrics.DecrementActiveSessions()
		s.logger.Info("capture session evicted", "session_id", key)
	})
	return s
}

// Start opens a session on the document list with a fresh liveness challenge.
func (s *Service) Start(ctx context.Context) (capture.View, error) {
	snap, err := s.settings.Current(ctx)
	if err != nil {
		return capture.View{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "settings unavailable")
	}

	now := s.clock()
	sessionID := id.NewSessionID()
	device := requestcontext.Device(ctx)
	session := models.NewSession(sessionID, s.challenge(snap.Settings.RequireLivenessGesture), device, now)

	env := capture.Env{
		Catalog:    snap.Catalog,
		Settings:   snap.Settings,
		Thresholds: snap.Thresholds,
		Cooldown:   s.cooldown,
	}
	opts := []capture.Option{
		capture.WithClock(s.clock),
		capture.WithDevice(s.newDevice()),
		capture.WithLogger(s.logger),
		capture.WithMetrics(s.metrics),
		capture.WithDecisionMetrics(s.decisions),
	}
	if s.records != nil {
		opts = append(opts, capture.WithRecordSink(s.records))
	}
	if s.auditor != nil {
		opts = append(opts, capture.WithAuditor(s.auditor))
	}
	if s.autoAdvance {
		opts = append(opts, capture.WithAutoAdvance(s.advanceDelay))
	}
	orch := capture.NewOrchestrator(session, env, s.recognizer, opts...)

	s.sessions.Set(sessionID.String(), orch, gocache.DefaultExpiration)
	s.metrics.IncrementActiveSessions()

	s.logger.InfoContext(ctx, "capture session started",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID.String(),
		"case_ref", session.CaseRef.String(),
		"device", device,
		"settings_version", snap.Version,
	)
	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			SessionID: sessionID,
			Subject:   session.CaseRef.String(),
			Action:    string(audit.EventSessionStarted),
			Decision:  device,
			RequestID: requestcontext.RequestID(ctx),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", audit.EventSessionStarted, "error", err)
		}
	}
	return orch.Snapshot(), nil
}

// Get returns the current view of a session.
func (s *Service) Get(_ context.Context, sessionID id.SessionID) (capture.View, error) {
	o, err := s.lookup(sessionID)
	if err != nil {
		return capture.View{}, err
	}
	return o.Snapshot(), nil
}

// Dispatch delivers a customer event. Any activity extends the session TTL.
func (s *Service) Dispatch(ctx context.Context, sessionID id.SessionID, ev capture.Event) (capture.View, error) {
	o, err := s.lookup(sessionID)
	if err != nil {
		return capture.View{}, err
	}
	s.sessions.Set(sessionID.String(), o, gocache.DefaultExpiration)
	return o.Dispatch(ctx, ev)
}

// Await waits for the session's outstanding model call, bounded by ctx.
func (s *Service) Await(ctx context.Context, sessionID id.SessionID) (capture.View, error) {
	o, err := s.lookup(sessionID)
	if err != nil {
		return capture.View{}, err
	}
	v, err := o.Await(ctx)
	if err != nil {
		// the caller gave up waiting; the session carries on
		return o.Snapshot(), nil
	}
	return v, nil
}

// End closes a session early, e.g. when the customer leaves the wizard.
func (s *Service) End(_ context.Context, sessionID id.SessionID) error {
	if _, err := s.lookup(sessionID); err != nil {
		return err
	}
	s.sessions.Delete(sessionID.String())
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	return s.sessions.ItemCount()
}

// Close evicts every session. Used on shutdown.
func (s *Service) Close() {
	for key := range s.sessions.Items() {
		s.sessions.Delete(key)
	}
}

func (s *Service) lookup(sessionID id.SessionID) (*capture.Orchestrator, error) {
	v, ok := s.sessions.Get(sessionID.String())
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found or expired")
	}
	return v.(*capture.Orchestrator), nil
}

func (s *Service) challenge(withGesture bool) models.Challenge {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return models.NewChallenge(s.rand, withGesture)
}
