package capture

import (
	"time"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
)

// State is everything the wizard knows about one session. The reducer never
// mutates a State it was given: Session is replaced by a clone on change.
type State struct {
	Step Step
	Side Side

	// Document is the type being captured or checked, empty on the document list.
	Document string
	Front    recognition.Image
	Back     *recognition.Image
	Selfie   recognition.Image

	// Attempt identifies the outstanding recognition call; zero when none.
	// Attempts only grows, so a late result can never match a newer call.
	Attempt  uint64
	Attempts uint64

	Feedback      *recognition.Feedback
	CooldownUntil time.Time

	Session *models.Session
	Outcome *decision.Outcome
}

// NewState starts a session on the document list.
func NewState(session *models.Session) State {
	return State{
		Step:    StepSelectDocument,
		Side:    SideFront,
		Session: session,
	}
}

// Env is the read-only configuration a session runs with, plus the clock
// reading for this transition.
type Env struct {
	Catalog    models.Catalog
	Settings   models.Settings
	Thresholds decision.Thresholds
	Cooldown   time.Duration
	Now        time.Time
}

// DefaultCooldown is how long the wizard waits after a rate-limited call.
const DefaultCooldown = 60 * time.Second

// CooldownRemaining is the rounded-up countdown shown to the customer.
func (s State) CooldownRemaining(now time.Time) time.Duration {
	if s.Step != StepRateLimited || !now.Before(s.CooldownUntil) {
		return 0
	}
	return s.CooldownUntil.Sub(now)
}
