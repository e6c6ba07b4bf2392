package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	kyc "vericore/internal/kyc/models"
	"vericore/internal/review/models"
	id "vericore/pkg/domain"
	"vericore/pkg/platform/sentinel"
)

// InMemoryStore keeps review records in a map. Reads return copies so callers
// never share state with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.SessionID]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.SessionID]*models.Record)}
}

func (s *InMemoryStore) Save(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(rec), nil
}

// List returns matching records, most recently finalized first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Record, error) {
	s.mu.RLock()
	matched := make([]*models.Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.Record) int {
		if c := b.FinalizedAt.Compare(*a.FinalizedAt); c != 0 {
			return c
		}
		return b.CaseRef.Number() - a.CaseRef.Number()
	})

	if filter.Offset >= len(matched) {
		return []*models.Record{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]*models.Record, len(matched))
	for i, rec := range matched {
		out[i] = copyRecord(rec)
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context, filter models.Filter) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	filter.Status = ""
	var stats models.Stats
	for _, rec := range s.records {
		if filter.Matches(rec) {
			stats.Add(rec.Status)
		}
	}
	return stats, nil
}

func (s *InMemoryStore) SetAssignee(_ context.Context, sessionID id.SessionID, assignee *models.Assignee, at time.Time) error {
	return s.update(sessionID, at, func(rec *models.Record) {
		if assignee == nil {
			rec.Assignee = nil
			return
		}
		a := *assignee
		rec.Assignee = &a
	})
}

func (s *InMemoryStore) SetStatus(_ context.Context, sessionID id.SessionID, status kyc.Status, at time.Time) error {
	return s.update(sessionID, at, func(rec *models.Record) {
		rec.ApplyOverride(status)
	})
}

func (s *InMemoryStore) AddComment(_ context.Context, sessionID id.SessionID, comment models.Comment) error {
	return s.update(sessionID, comment.CreatedAt, func(rec *models.Record) {
		rec.Comments = append(rec.Comments, comment)
	})
}

func (s *InMemoryStore) AddActivity(_ context.Context, sessionID id.SessionID, activity models.Activity) error {
	return s.update(sessionID, activity.CreatedAt, func(rec *models.Record) {
		rec.Activity = append(rec.Activity, activity)
	})
}

func (s *InMemoryStore) update(sessionID id.SessionID, at time.Time, fn func(*models.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(rec)
	rec.UpdatedAt = at
	return nil
}

func copyRecord(rec *models.Record) *models.Record {
	out := *rec
	out.Session = rec.Session.Clone()
	if rec.Assignee != nil {
		a := *rec.Assignee
		out.Assignee = &a
	}
	out.Comments = slices.Clone(rec.Comments)
	out.Activity = slices.Clone(rec.Activity)
	if out.Comments == nil {
		out.Comments = []models.Comment{}
	}
	return &out
}
