// Package service is the dashboard side of verification: it receives finished
// sessions and lets reviewers triage them.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	kyc "vericore/internal/kyc/models"
	"vericore/internal/review/metrics"
	"vericore/internal/review/models"
	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
	"vericore/pkg/platform/audit"
	"vericore/pkg/platform/sentinel"
	"vericore/pkg/requestcontext"
)

// Store persists review records.
type Store interface {
	Save(ctx context.Context, rec *models.Record) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Record, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Record, error)
	Stats(ctx context.Context, filter models.Filter) (models.Stats, error)
	SetAssignee(ctx context.Context, sessionID id.SessionID, assignee *models.Assignee, at time.Time) error
	SetStatus(ctx context.Context, sessionID id.SessionID, status kyc.Status, at time.Time) error
	AddComment(ctx context.Context, sessionID id.SessionID, comment models.Comment) error
	AddActivity(ctx context.Context, sessionID id.SessionID, activity models.Activity) error
}

// Exporter writes a spreadsheet of records.
type Exporter interface {
	Write(w io.Writer, records []*models.Record) error
}

// MaxCommentLength bounds a single comment.
const MaxCommentLength = 2000

type Service struct {
	store    Store
	tx       Tx
	exporter Exporter
	auditor  audit.Emitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
}

type Option func(*Service)

func WithTx(tx Tx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
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

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     NewShardedTx(),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores a finalized session. It is the capture side's RecordSink.
func (s *Service) Submit(ctx context.Context, session *kyc.Session) error {
	if session == nil || !session.IsFinalized() {
		return dErrors.New(dErrors.CodeInvariantViolation, "only finalized sessions can be submitted")
	}
	rec := models.NewRecord(session, s.clock())
	if err := s.store.Save(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "session already submitted")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save record")
	}
	s.metrics.IncrementSubmitted(string(session.Status))
	s.logger.InfoContext(ctx, "verification record submitted",
		"session_id", session.ID.String(),
		"case_ref", session.CaseRef.String(),
		"status", string(session.Status),
		"risk", string(session.Risk),
	)
	return nil
}

// List returns the filtered page and the counters for the same filter
// without paging.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Record, models.Stats, error) {
	filter = normalizeFilter(filter)
	recs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	stats, err := s.store.Stats(ctx, models.Filter{AssigneeID: filter.AssigneeID, Query: filter.Query})
	if err != nil {
		return nil, models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count records")
	}
	return recs, stats, nil
}

func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.Record, error) {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

// Assign gives the record to reviewer. Assigning to the caller is a claim.
func (s *Service) Assign(ctx context.Context, sessionID id.SessionID, assignee models.Assignee) (*models.Record, error) {
	if assignee.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "assignee is required")
	}
	assignee.Name = strings.TrimSpace(assignee.Name)
	if assignee.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "assignee name is required")
	}
	actorID, actorName, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionID, func(ctx context.Context, rec *models.Record, now time.Time) (audit.Event, error) {
		if rec.AssignedTo(assignee.ID) {
			return audit.Event{}, errUnchanged
		}
		if err := s.store.SetAssignee(ctx, sessionID, &assignee, now); err != nil {
			return audit.Event{}, err
		}
		detail := "assigned to " + assignee.Name
		if assignee.ID == actorID {
			detail = "claimed by " + assignee.Name
		}
		if err := s.store.AddActivity(ctx, sessionID, models.Activity{
			Action: models.ActivityAssigned, ActorID: actorID.String(), ActorName: actorName, Detail: detail, CreatedAt: now,
		}); err != nil {
			return audit.Event{}, err
		}
		return audit.Event{Action: string(audit.EventReviewAssigned), Decision: assignee.ID.String()}, nil
	})
}

// Comment appends a reviewer note.
func (s *Service) Comment(ctx context.Context, sessionID id.SessionID, body string) (*models.Record, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "comment must not be empty")
	}
	if len(body) > MaxCommentLength {
		return nil, dErrors.New(dErrors.CodeValidation, "comment is too long")
	}
	actorID, actorName, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionID, func(ctx context.Context, _ *models.Record, now time.Time) (audit.Event, error) {
		c := models.Comment{ID: uuid.New(), AuthorID: actorID, AuthorName: actorName, Body: body, CreatedAt: now}
		if err := s.store.AddComment(ctx, sessionID, c); err != nil {
			return audit.Event{}, err
		}
		if err := s.store.AddActivity(ctx, sessionID, models.Activity{
			Action: models.ActivityCommented, ActorID: actorID.String(), ActorName: actorName, CreatedAt: now,
		}); err != nil {
			return audit.Event{}, err
		}
		return audit.Event{Action: string(audit.EventReviewCommented)}, nil
	})
}

// SetStatus is the reviewer override. Only Flagged records can change, and
// only to Approved or Rejected.
func (s *Service) SetStatus(ctx context.Context, sessionID id.SessionID, to kyc.Status) (*models.Record, error) {
	actorID, actorName, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionID, func(ctx context.Context, rec *models.Record, now time.Time) (audit.Event, error) {
		if err := rec.CanOverride(to); err != nil {
			return audit.Event{}, err
		}
		from := rec.Status
		if err := s.store.SetStatus(ctx, sessionID, to, now); err != nil {
			return audit.Event{}, err
		}
		if err := s.store.AddActivity(ctx, sessionID, models.Activity{
			Action: models.ActivityStatusChanged, ActorID: actorID.String(), ActorName: actorName,
			Detail: string(from) + " -> " + string(to), CreatedAt: now,
		}); err != nil {
			return audit.Event{}, err
		}
		s.metrics.IncrementOverride(string(to))
		return audit.Event{Action: string(audit.EventReviewStatusChanged), Decision: string(to), Reason: "from " + string(from)}, nil
	})
}

// Export writes the filtered records, all pages, as a spreadsheet.
func (s *Service) Export(ctx context.Context, filter models.Filter, w io.Writer) error {
	if s.exporter == nil {
		return dErrors.New(dErrors.CodeUnavailable, "export is not configured")
	}
	filter.Limit = models.MaxLimit
	filter.Offset = 0
	var all []*models.Record
	for {
		page, err := s.store.List(ctx, filter)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
		}
		all = append(all, page...)
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}
	if err := s.exporter.Write(w, all); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	s.logger.InfoContext(ctx, "records exported",
		"request_id", requestcontext.RequestID(ctx),
		"count", len(all),
	)
	return nil
}

var errUnchanged = errors.New("unchanged")

type mutation func(ctx context.Context, rec *models.Record, now time.Time) (audit.Event, error)

// mutate runs fn on a fresh copy of the record inside the record's
// transaction and emits fn's audit event in the same transaction.
func (s *Service) mutate(ctx context.Context, sessionID id.SessionID, fn mutation) (*models.Record, error) {
	actorID, _, _ := actor(ctx)
	err := s.tx.RunInTx(ctx, sessionID.String(), func(ctx context.Context) error {
		rec, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		now := s.clock()
		ev, err := fn(ctx, rec, now)
		if err != nil {
			return err
		}
		if s.auditor == nil {
			return nil
		}
		ev.SessionID = sessionID
		ev.Subject = rec.CaseRef.String()
		ev.RequestID = requestcontext.RequestID(ctx)
		ev.ActorID = actorID.String()
		return s.auditor.Emit(ctx, ev)
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, translate(err)
	}
	return s.Get(ctx, sessionID)
}

func actor(ctx context.Context) (id.ReviewerID, string, error) {
	reviewerID := requestcontext.ReviewerID(ctx)
	if reviewerID.IsNil() {
		return id.ReviewerID{}, "", dErrors.New(dErrors.CodeUnauthorized, "reviewer authentication required")
	}
	name := requestcontext.ReviewerName(ctx)
	if name == "" {
		name = reviewerID.String()
	}
	return reviewerID, name, nil
}

func normalizeFilter(f models.Filter) models.Filter {
	if f.Limit <= 0 {
		f.Limit = models.DefaultLimit
	}
	if f.Limit > models.MaxLimit {
		f.Limit = models.MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// translate maps store sentinels to domain errors; domain errors pass through.
func translate(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "record was changed concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "record update failed")
	}
}
