// Package decision turns face-match results into a verification outcome.
// Everything here is pure: no I/O, no clock, no randomness.
package decision

import (
	"math"

	"vericore/internal/kyc/models"
)

// Reason explains which rule produced an outcome.
type Reason string

const (
	ReasonAllChecksPassed Reason = "all_checks_passed"
	ReasonLowFaceMatch    Reason = "low_face_match"
	ReasonBorderlineScore Reason = "borderline_face_match"
	ReasonLivenessFailed  Reason = "liveness_unconfirmed"
	ReasonMismatches      Reason = "profile_mismatches"
)

// Input is everything the rules look at.
type Input struct {
	Score             int
	LivenessConfirmed bool
	Mismatches        int
}

type Outcome struct {
	Status models.Status    `json:"status"`
	Risk   models.RiskLevel `json:"risk"`
	Reason Reason           `json:"reason"`
}

// Decide applies the rules in priority order:
//  1. score above Approve, liveness confirmed, no mismatches → Approved / Low
//  2. score below Reject → Rejected / High
//  3. anything else → Flagged / Med for a human to look at
func Decide(t Thresholds, in Input) Outcome {
	if in.Score > t.Approve && in.LivenessConfirmed && in.Mismatches == 0 {
		return Outcome{Status: models.StatusApproved, Risk: models.RiskLow, Reason: ReasonAllChecksPassed}
	}
	if in.Score < t.Reject {
		return Outcome{Status: models.StatusRejected, Risk: models.RiskHigh, Reason: ReasonLowFaceMatch}
	}

	reason := ReasonBorderlineScore
	switch {
	case in.Mismatches > 0:
		reason = ReasonMismatches
	case !in.LivenessConfirmed:
		reason = ReasonLivenessFailed
	}
	return Outcome{Status: models.StatusFlagged, Risk: models.RiskMedium, Reason: reason}
}

// Verdict is the liveness gate's answer for one face-match attempt.
type Verdict int

const (
	VerdictRetry Verdict = iota
	VerdictPass
	VerdictAutoReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictAutoReject:
		return "auto_reject"
	default:
		return "retry"
	}
}

// Gate decides whether a liveness attempt passes, may be retried, or ends the session.
// A score below the auto-reject floor ends the session even when the challenge was confirmed.
func Gate(t Thresholds, score int, confirmed, strict bool) Verdict {
	if score < t.AutoRejectFloor {
		return VerdictAutoReject
	}
	if confirmed && score >= t.Gate(strict) {
		return VerdictPass
	}
	return VerdictRetry
}

// NormalizeScore maps a model score onto 0–100. Values strictly between 0 and
// 1 are treated as fractions, so 0.92 and 92 both become 92. A bare 1 is read
// on the 0–100 scale the prompt asks for.
func NormalizeScore(raw float64) int {
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	if raw < 1 {
		raw *= 100
	}
	if raw > 100 {
		raw = 100
	}
	return int(math.Round(raw))
}
