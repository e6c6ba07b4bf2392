package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vericore/internal/kyc/capture/metrics"
	"vericore/internal/kyc/decision"
	decisionmetrics "vericore/internal/kyc/decision/metrics"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	dErrors "vericore/pkg/domain-errors"
	"vericore/pkg/platform/audit"
	"vericore/pkg/requestcontext"
)

// RecordSink receives every finalized session exactly once.
type RecordSink interface {
	Submit(ctx context.Context, session *models.Session) error
}

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = dErrors.New(dErrors.CodeConflict, "capture session closed")

// Orchestrator runs one session: it feeds events through Transition and
// performs the resulting effects. Model calls run in the background and come
// back as events; everything else happens under the session lock.
type Orchestrator struct {
	mu    sync.Mutex
	state State
	env   Env
	clock func() time.Time

	recognizer recognition.Recognizer
	device     Device
	records    RecordSink
	auditor    audit.Emitter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	decisions  *decisionmetrics.Metrics
	tracer     trace.Tracer

	autoAdvance  bool
	advanceDelay time.Duration

	// version counts applied transitions; delayed events carry the version
	// they were scheduled at and are dropped if the session moved on.
	version uint64
	timers  []*time.Timer
	pending int
	idle    chan struct{}

	cameraHeld   bool
	acquisitions int
	releases     int

	// bg outlives the request that triggered a model call; Close cancels it.
	bg     context.Context
	cancel context.CancelFunc
	closed bool
}

type Option func(*Orchestrator)

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

func WithDevice(d Device) Option {
	return func(o *Orchestrator) { o.device = d }
}

func WithRecordSink(r RecordSink) Option {
	return func(o *Orchestrator) { o.records = r }
}

func WithAuditor(a audit.Emitter) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithDecisionMetrics(m *decisionmetrics.Metrics) Option {
	return func(o *Orchestrator) { o.decisions = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithAutoAdvance leaves accepted steps on its own after delay. A zero delay
// advances in the same Dispatch.
func WithAutoAdvance(delay time.Duration) Option {
	return func(o *Orchestrator) {
		o.autoAdvance = true
		o.advanceDelay = delay
	}
}

func NewOrchestrator(session *models.Session, env Env, recognizer recognition.Recognizer, opts ...Option) *Orchestrator {
	bg, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		state:      NewState(session),
		env:        env,
		clock:      time.Now,
		recognizer: recognizer,
		device:     NewLease(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("vericore/capture"),
		bg:         bg,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch applies one customer event and returns the resulting view.
func (o *Orchestrator) Dispatch(ctx context.Context, ev Event) (View, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return View{}, ErrClosed
	}
	if err := o.apply(ctx, ev); err != nil {
		return o.render(), err
	}
	return o.render(), nil
}

// Snapshot returns the current view without changing anything.
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.render()
}

// Session returns a copy of the session aggregate.
func (o *Orchestrator) Session() *models.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Session.Clone()
}

// Await blocks until no model call is outstanding.
func (o *Orchestrator) Await(ctx context.Context) (View, error) {
	for {
		o.mu.Lock()
		if o.pending == 0 || o.closed {
			v := o.render()
			o.mu.Unlock()
			return v, nil
		}
		idle := o.idle
		o.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return View{}, ctx.Err()
		}
	}
}

// CameraStats reports real camera acquisitions and releases.
func (o *Orchestrator) CameraStats() (acquired, released int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.acquisitions, o.releases
}

// Close stops timers, abandons outstanding model calls and releases the camera.
// It is safe to call more than once.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.cancel()
	for _, t := range o.timers {
		t.Stop()
	}
	o.timers = nil
	o.releaseCamera()
	if o.pending > 0 {
		o.pending = 0
		close(o.idle)
	}
}

func (o *Orchestrator) render() View {
	env := o.env
	env.Now = o.clock()
	return Render(o.state, env)
}

// apply must be called with o.mu held.
func (o *Orchestrator) apply(ctx context.Context, ev Event) error {
	ctx, span := o.tracer.Start(ctx, "capture.dispatch", trace.WithAttributes(
		attribute.String("capture.event", string(ev.Kind())),
		attribute.String("capture.step", string(o.state.Step)),
		attribute.String("session.id", o.state.Session.ID.String()),
	))
	defer span.End()

	env := o.env
	env.Now = o.clock()
	prev := o.state
	next, effects, err := Transition(prev, ev, env)
	if errors.Is(err, ErrStaleResult) {
		o.metrics.IncrementStaleResult()
		o.logger.DebugContext(ctx, "discarded stale recognition result",
			"session_id", prev.Session.ID.String(),
			"event", string(ev.Kind()),
			"step", string(prev.Step),
		)
		return nil
	}
	if err != nil {
		o.metrics.IncrementRejectedEvent(string(prev.Step), string(ev.Kind()))
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	o.state = next
	o.version++
	o.observeGate(ev, next)
	if next.Step != prev.Step {
		o.metrics.IncrementTransition(string(next.Step))
		o.logger.InfoContext(ctx, "capture step changed",
			"session_id", next.Session.ID.String(),
			"from", string(prev.Step),
			"to", string(next.Step),
			"event", string(ev.Kind()),
		)
		o.emitStep(ctx, prev, next)
	}

	for _, eff := range effects {
		o.perform(ctx, eff)
	}

	if o.autoAdvance && (o.state.Step == StepDocumentAccepted || o.state.Step == StepLivenessAccepted) && next.Step != prev.Step {
		if o.advanceDelay <= 0 {
			return o.apply(ctx, Continue{})
		}
		o.schedule(o.advanceDelay, Continue{}, true)
	}
	return nil
}

func (o *Orchestrator) perform(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case AcquireCamera:
		if o.cameraHeld {
			return
		}
		if err := o.device.Acquire(ctx, e.Facing); err != nil {
			o.logger.WarnContext(ctx, "camera unavailable", "facing", string(e.Facing), "error", err)
			if applyErr := o.apply(ctx, CameraFailed{Reason: err.Error()}); applyErr != nil {
				o.logger.ErrorContext(ctx, "failed to record camera failure", "error", applyErr)
			}
			return
		}
		o.cameraHeld = true
		o.acquisitions++
		o.metrics.IncrementCameraOp("acquire")

	case ReleaseCamera:
		o.releaseCamera()

	case ExtractDocument:
		o.launch(ctx, func(callCtx context.Context) Event {
			ext, err := o.recognizer.ExtractDocument(callCtx, e.Request)
			return DocumentChecked{Attempt: e.Attempt, Extraction: ext, Err: err}
		})

	case MatchFace:
		o.launch(ctx, func(callCtx context.Context) Event {
			m, err := o.recognizer.MatchFace(callCtx, e.Request)
			return LivenessChecked{Attempt: e.Attempt, Match: m, Err: err}
		})

	case StartCooldown:
		o.metrics.IncrementCooldown()
		o.schedule(e.Until.Sub(o.clock()), Tick{}, true)

	case SessionCompleted:
		o.complete(ctx, e)
	}
}

func (o *Orchestrator) releaseCamera() {
	if !o.cameraHeld {
		return
	}
	o.device.Release()
	o.cameraHeld = false
	o.releases++
	o.metrics.IncrementCameraOp("release")
}

// launch runs a model call off the lock and feeds its result back as an event.
func (o *Orchestrator) launch(ctx context.Context, call func(context.Context) Event) {
	if o.pending == 0 {
		o.idle = make(chan struct{})
	}
	o.pending++

	callCtx := recognition.WithQuotaKey(o.bg, o.state.Session.ID.String())
	callCtx = requestcontext.WithRequestID(callCtx, requestcontext.RequestID(ctx))
	callCtx = trace.ContextWithSpanContext(callCtx, trace.SpanContextFromContext(ctx))

	go func() {
		ev := call(callCtx)

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.closed {
			return
		}
		if err := o.apply(callCtx, ev); err != nil {
			o.logger.ErrorContext(callCtx, "failed to apply recognition result", "error", err)
		}
		o.pending--
		if o.pending == 0 {
			close(o.idle)
		}
	}()
}

// schedule delivers ev after d. When guarded, the event is dropped if any
// other transition happened in between.
func (o *Orchestrator) schedule(d time.Duration, ev Event, guarded bool) {
	if d < 0 {
		d = 0
	}
	at := o.version
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.dropTimer(t)
		if o.closed || (guarded && o.version != at) {
			return
		}
		if err := o.apply(o.bg, ev); err != nil {
			o.logger.Debug("scheduled event not applied", "event", string(ev.Kind()), "error", err)
		}
	})
	o.timers = append(o.timers, t)
}

func (o *Orchestrator) dropTimer(t *time.Timer) {
	for i, x := range o.timers {
		if x == t {
			o.timers = append(o.timers[:i], o.timers[i+1:]...)
			return
		}
	}
}

// observeGate records the liveness gate verdict implied by where a face-match
// result led.
func (o *Orchestrator) observeGate(ev Event, next State) {
	lc, ok := ev.(LivenessChecked)
	if !ok || lc.Err != nil {
		return
	}
	var verdict decision.Verdict
	switch next.Step {
	case StepLivenessAccepted:
		verdict = decision.VerdictPass
	case StepResult:
		verdict = decision.VerdictAutoReject
	case StepLivenessRejected:
		verdict = decision.VerdictRetry
	default:
		return
	}
	o.decisions.IncrementGateVerdict(verdict.String(), o.env.Settings.StrictFaceMatch)
}

func (o *Orchestrator) complete(ctx context.Context, e SessionCompleted) {
	sess := e.Session
	o.metrics.ObserveCompleted(string(sess.Status), o.clock().Sub(sess.CreatedAt).Seconds())
	o.decisions.IncrementOutcome(string(e.Outcome.Status), string(e.Outcome.Risk), string(e.Outcome.Reason))
	o.decisions.ObserveScore(sess.FaceMatchScore)
	o.releaseCamera()
	if o.records == nil {
		return
	}
	if err := o.records.Submit(ctx, sess.Clone()); err != nil {
		o.logger.ErrorContext(ctx, "failed to submit verification record",
			"session_id", sess.ID.String(),
			"case_ref", sess.CaseRef.String(),
			"error", err,
		)
	}
}

func (o *Orchestrator) emitStep(ctx context.Context, prev, next State) {
	if o.auditor == nil {
		return
	}
	ev := audit.Event{
		SessionID: next.Session.ID,
		Subject:   next.Session.CaseRef.String(),
		RequestID: requestcontext.RequestID(ctx),
	}
	switch next.Step {
	case StepDocumentAccepted:
		ev.Action = string(audit.EventDocumentAccepted)
		ev.Decision = prev.Document
	case StepDocumentRejected:
		ev.Action = string(audit.EventDocumentRejected)
		ev.Decision = prev.Document
		ev.Reason = feedbackTitle(next.Feedback)
	case StepLivenessRejected:
		ev.Action = string(audit.EventLivenessRejected)
		ev.Reason = feedbackTitle(next.Feedback)
	case StepRateLimited:
		ev.Action = string(audit.EventRateLimited)
		ev.Reason = feedbackTitle(next.Feedback)
	case StepCameraDenied:
		ev.Action = string(audit.EventCameraDenied)
	case StepResult:
		ev.Action = string(audit.EventSessionFinalized)
		ev.Decision = string(next.Session.Status)
		ev.Reason = next.Session.RejectionReason
		if next.Outcome != nil && ev.Reason == "" {
			ev.Reason = string(next.Outcome.Reason)
		}
	default:
		return
	}
	if err := o.auditor.Emit(ctx, ev); err != nil {
		o.logger.WarnContext(ctx, "failed to emit audit event", "action", ev.Action, "error", err)
	}
}

func feedbackTitle(fb *recognition.Feedback) string {
	if fb == nil {
		return ""
	}
	return fb.Title
}
