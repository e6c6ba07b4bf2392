package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/pkg/platform/audit"
	"vericore/pkg/requestcontext"
)

// Service holds the live configuration. Reads are lock-free for callers: they
// receive a copy of the current Snapshot.
type Service struct {
	mu      sync.RWMutex
	current Snapshot
	auditor audit.Emitter
	logger  *slog.Logger
	clock   func() time.Time
}

type Option func(*Service)

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// New starts from initial, usually the result of LoadFile.
func New(initial Snapshot, opts ...Option) (*Service, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		current: initial,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.current.UpdatedAt.IsZero() {
		s.current.UpdatedAt = s.clock()
	}
	return s, nil
}

// Current returns a copy of the active configuration.
func (s *Service) Current(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone(), nil
}

// Update is a partial change; nil sections are left as they are.
type Update struct {
	Settings   *models.Settings
	Thresholds *decision.Thresholds
	Catalog    *models.Catalog
}

// Apply validates and activates an update. Sessions already running keep the
// snapshot they started with.
func (s *Service) Apply(ctx context.Context, u Update) (Snapshot, error) {
	s.mu.Lock()
	next := s.current.clone()
	if u.Catalog != nil {
		next.Catalog = cleanCatalog(*u.Catalog)
	}
	if u.Settings != nil {
		next.Settings = *u.Settings
	}
	if u.Thresholds != nil {
		next.Thresholds = *u.Thresholds
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	next.Version = s.current.Version + 1
	next.UpdatedAt = s.clock()
	s.current = next
	out := next.clone()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "platform settings updated",
		"request_id", requestcontext.RequestID(ctx),
		"version", out.Version,
		"strict_face_match", out.Settings.StrictFaceMatch,
		"required_buckets", out.Settings.RequiredBuckets.Strings(),
	)
	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			Subject:   fmt.Sprintf("settings/v%d", out.Version),
			Action:    string(audit.EventSettingsUpdated),
			Decision:  changedSections(u),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   "admin",
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", audit.EventSettingsUpdated, "error", err)
		}
	}
	return out, nil
}

func changedSections(u Update) string {
	var parts []string
	if u.Catalog != nil {
		parts = append(parts, "catalog")
	}
	if u.Settings != nil {
		parts = append(parts, "settings")
	}
	if u.Thresholds != nil {
		parts = append(parts, "thresholds")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Catalog.Documents = make([]models.DocumentType, len(s.Catalog.Documents))
	for i, d := range s.Catalog.Documents {
		d.Buckets = append(models.BucketSet{}, d.Buckets...)
		d.ExpectedFields = append([]string(nil), d.ExpectedFields...)
		out.Catalog.Documents[i] = d
	}
	out.Settings.RequiredBuckets = append(models.BucketSet{}, s.Settings.RequiredBuckets...)
	out.Settings.RequiredFields = append([]models.Field(nil), s.Settings.RequiredFields...)
	return out
}
