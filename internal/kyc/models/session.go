package models

import (
	"time"

	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
)

// Session is the aggregate built by one run of the capture wizard.
//
// Invariants:
//   - Documents holds at most one record per document type
//   - SatisfiedBuckets only grows while capturing
//   - Finalize succeeds exactly once; afterwards the capture side never mutates the session
//   - Approved and Rejected are terminal; Flagged awaits a reviewer
type Session struct {
	ID        id.SessionID `json:"id"`
	CaseRef   id.CaseRef   `json:"case_ref"`
	CreatedAt time.Time    `json:"created_at"`
	Device    string       `json:"device,omitempty"`

	Profile          Profile                   `json:"profile"`
	Documents        map[string]DocumentRecord `json:"documents"`
	DocumentOrder    []string                  `json:"document_order"`
	SatisfiedBuckets BucketSet                 `json:"satisfied_buckets"`
	Mismatches       []string                  `json:"mismatches,omitempty"`

	Challenge         Challenge `json:"challenge"`
	Selfie            []byte    `json:"-"`
	FaceMatchScore    int       `json:"face_match_score"`
	LivenessConfirmed bool      `json:"liveness_confirmed"`
	Reasoning         string    `json:"reasoning,omitempty"`

	Status          Status     `json:"status"`
	Risk            RiskLevel  `json:"risk,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
}

func NewSession(sessionID id.SessionID, challenge Challenge, device string, now time.Time) *Session {
	return &Session{
		ID:               sessionID,
		CaseRef:          id.CaseRefFor(sessionID),
		CreatedAt:        now,
		Device:           device,
		Documents:        make(map[string]DocumentRecord),
		SatisfiedBuckets: BucketSet{},
		Challenge:        challenge,
		Status:           StatusPending,
	}
}

// Clone returns a deep copy. Image bytes are shared; they are never written after capture.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Profile = s.Profile.Clone()
	out.Documents = make(map[string]DocumentRecord, len(s.Documents))
	for k, v := range s.Documents {
		if v.Fields != nil {
			fields := make(map[string]string, len(v.Fields))
			for fk, fv := range v.Fields {
				fields[fk] = fv
			}
			v.Fields = fields
		}
		out.Documents[k] = v
	}
	out.DocumentOrder = append([]string(nil), s.DocumentOrder...)
	out.SatisfiedBuckets = append(BucketSet{}, s.SatisfiedBuckets...)
	out.Mismatches = append([]string(nil), s.Mismatches...)
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		out.FinalizedAt = &t
	}
	return &out
}

// MissingFields lists required fields that are still unknown.
func (s *Session) MissingFields(required []Field) []Field {
	var missing []Field
	for _, f := range required {
		if !s.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// CustomerName falls back to a placeholder before a name was extracted.
func (s *Session) CustomerName() string {
	if s.Profile.Name != "" {
		return s.Profile.Name
	}
	return "Customer"
}

// FirstDocument returns the earliest accepted document; its front carries the reference face.
func (s *Session) FirstDocument() (DocumentRecord, bool) {
	if len(s.DocumentOrder) == 0 {
		return DocumentRecord{}, false
	}
	rec, ok := s.Documents[s.DocumentOrder[0]]
	return rec, ok
}

// HasField reports whether a required field is known, either on the profile
// or, for dates, on any accepted document.
func (s *Session) HasField(f Field) bool {
	switch f {
	case FieldIssueDate:
		for _, d := range s.Documents {
			if d.IssueDate != "" {
				return true
			}
		}
		return false
	case FieldExpiryDate:
		for _, d := range s.Documents {
			if d.ExpiryDate != "" {
				return true
			}
		}
		return false
	}
	return s.Profile.Get(f) != ""
}

// ApplyDocument stores an accepted document, unions its buckets and records mismatches.
func (s *Session) ApplyDocument(rec DocumentRecord, buckets BucketSet, profile Profile, mismatches []string) {
	if _, exists := s.Documents[rec.Type]; !exists {
		s.DocumentOrder = append(s.DocumentOrder, rec.Type)
	}
	s.Documents[rec.Type] = rec
	s.SatisfiedBuckets = s.SatisfiedBuckets.Union(buckets)
	s.Profile = profile
	s.Mismatches = append(s.Mismatches, mismatches...)
}

func (s *Session) IsFinalized() bool { return s.FinalizedAt != nil }

// Finalize records the automatic decision. It may only be called once.
func (s *Session) Finalize(status Status, risk RiskLevel, reason string, now time.Time) error {
	if s.IsFinalized() {
		return dErrors.New(dErrors.CodeInvariantViolation, "session already finalized")
	}
	if !s.Status.CanTransitionTo(status) {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid decision status "+string(status))
	}
	s.Status = status
	s.Risk = risk
	s.RejectionReason = reason
	s.FinalizedAt = &now
	return nil
}

// CanOverride checks a reviewer status override.
func (s *Session) CanOverride(to Status) error {
	if to != StatusApproved && to != StatusRejected {
		return dErrors.New(dErrors.CodeValidation, "status can only be set to Approved or Rejected")
	}
	if !s.IsFinalized() {
		return dErrors.New(dErrors.CodeInvariantViolation, "session is still capturing")
	}
	if !s.Status.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot change status of a "+string(s.Status)+" session")
	}
	return nil
}

func (s *Session) ApplyOverride(to Status) {
	s.Status = to
}
