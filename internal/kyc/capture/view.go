package capture

import (
	"math"
	"time"

	"vericore/internal/kyc/buckets"
	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	id "vericore/pkg/domain"
)

// DocumentOption is one entry of the document list.
type DocumentOption struct {
	Name      string   `json:"name"`
	Buckets   []string `json:"buckets"`
	NeedsBack bool     `json:"needs_back"`
	// Helps is set when the document covers at least one outstanding bucket.
	Helps bool `json:"helps"`
}

// View is what a client renders for the current step.
type View struct {
	SessionID        id.SessionID          `json:"session_id"`
	CaseRef          id.CaseRef            `json:"case_ref"`
	Step             Step                  `json:"step"`
	Side             Side                  `json:"side,omitempty"`
	Document         string                `json:"document,omitempty"`
	Facing           Facing                `json:"facing,omitempty"`
	Allowed          []EventKind           `json:"allowed"`
	Available        []DocumentOption      `json:"available,omitempty"`
	Fulfillment      buckets.Fulfillment   `json:"fulfillment"`
	CapturedDocs     []string              `json:"captured_documents"`
	Profile          models.Profile        `json:"profile"`
	Mismatches       []string              `json:"mismatches,omitempty"`
	Challenge        string                `json:"challenge,omitempty"`
	Feedback         *recognition.Feedback `json:"feedback,omitempty"`
	CooldownSeconds  int                   `json:"cooldown_seconds,omitempty"`
	Outcome          *decision.Outcome     `json:"outcome,omitempty"`
	FaceMatchScore   int                   `json:"face_match_score,omitempty"`
	LivenessVerified bool                  `json:"liveness_verified,omitempty"`
	RejectionReason  string                `json:"rejection_reason,omitempty"`
}

// Render projects State for clients.
func Render(s State, env Env) View {
	sess := s.Session
	f := buckets.Evaluate(env.Settings.RequiredBuckets, sess.SatisfiedBuckets)

	v := View{
		SessionID:    sess.ID,
		CaseRef:      sess.CaseRef,
		Step:         s.Step,
		Document:     s.Document,
		Allowed:      Allowed(s.Step),
		Fulfillment:  f,
		CapturedDocs: append([]string{}, sess.DocumentOrder...),
		Profile:      sess.Profile,
		Mismatches:   sess.Mismatches,
		Feedback:     s.Feedback,
	}

	switch s.Step {
	case StepSelectDocument:
		for _, d := range env.Catalog.Available(sess.Documents) {
			v.Available = append(v.Available, DocumentOption{
				Name:      d.Name,
				Buckets:   d.Buckets.Strings(),
				NeedsBack: d.NeedsBack,
				Helps:     buckets.Helps(f, d),
			})
		}
	case StepCaptureDocument:
		v.Side = s.Side
		v.Facing = FacingEnvironment
	case StepCaptureLiveness:
		v.Facing = FacingUser
		v.Challenge = sess.Challenge.Instruction()
	case StepRateLimited:
		v.CooldownSeconds = secondsCeil(s.CooldownRemaining(env.Now))
	case StepResult:
		v.Outcome = s.Outcome
		v.FaceMatchScore = sess.FaceMatchScore
		v.LivenessVerified = sess.LivenessConfirmed
		v.RejectionReason = sess.RejectionReason
	}
	return v
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
