// Package models holds the back-office view of finished verifications.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	kyc "vericore/internal/kyc/models"
	id "vericore/pkg/domain"
)

// Record is a finalized session plus the reviewers' collaboration on it.
// Only Status (through an override), Assignee, Comments and Activity change
// after submission.
type Record struct {
	*kyc.Session

	Assignee  *Assignee  `json:"assignee,omitempty"`
	Comments  []Comment  `json:"comments"`
	Activity  []Activity `json:"activity"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Assignee struct {
	ID   id.ReviewerID `json:"id"`
	Name string        `json:"name"`
}

type Comment struct {
	ID         uuid.UUID     `json:"id"`
	AuthorID   id.ReviewerID `json:"author_id"`
	AuthorName string        `json:"author_name"`
	Body       string        `json:"body"`
	CreatedAt  time.Time     `json:"created_at"`
}

type ActivityAction string

const (
	ActivityCreated       ActivityAction = "created"
	ActivityAssigned      ActivityAction = "assigned"
	ActivityCommented     ActivityAction = "commented"
	ActivityStatusChanged ActivityAction = "status_changed"
)

// Activity is one line of a record's history.
type Activity struct {
	Action    ActivityAction `json:"action"`
	ActorID   string         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewRecord wraps a finalized session with its "created" history line.
func NewRecord(session *kyc.Session, now time.Time) *Record {
	return &Record{
		Session:   session,
		Comments:  []Comment{},
		Activity:  []Activity{{Action: ActivityCreated, Detail: "automatic decision: " + string(session.Status), CreatedAt: now}},
		UpdatedAt: now,
	}
}

// AssignedTo reports whether the record is assigned to reviewer.
func (r *Record) AssignedTo(reviewer id.ReviewerID) bool {
	return r.Assignee != nil && r.Assignee.ID == reviewer
}

// Filter narrows the record list. Zero values match everything.
type Filter struct {
	Status     kyc.Status
	AssigneeID *id.ReviewerID
	// Query matches the case reference or customer name, case-insensitively.
	Query  string
	Limit  int
	Offset int
}

// DefaultLimit applies when a list request does not set one.
const DefaultLimit = 50

// MaxLimit caps a single page.
const MaxLimit = 500

// Matches applies the filter to one record, ignoring paging.
func (f Filter) Matches(r *Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.AssigneeID != nil && !r.AssignedTo(*f.AssigneeID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(string(r.CaseRef)), q) &&
			!strings.Contains(strings.ToLower(r.CustomerName()), q) {
			return false
		}
	}
	return true
}

// Stats are the dashboard counters.
type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`
	Rejected int `json:"rejected"`
}

// Add counts one record.
func (s *Stats) Add(status kyc.Status) {
	s.Total++
	switch status {
	case kyc.StatusApproved:
		s.Approved++
	case kyc.StatusFlagged:
		s.Flagged++
	case kyc.StatusRejected:
		s.Rejected++
	}
}
