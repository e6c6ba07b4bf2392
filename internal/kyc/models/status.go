package models

import (
	dErrors "vericore/pkg/domain-errors"
)

// Status is the verification outcome of a session.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusFlagged  Status = "Flagged"
	StatusRejected Status = "Rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusFlagged, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo encodes the status lifecycle:
//
//	Pending → Approved | Flagged | Rejected   (automatic decision)
//	Flagged → Approved | Rejected             (reviewer override)
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusApproved || to == StatusFlagged || to == StatusRejected
	case StatusFlagged:
		return to == StatusApproved || to == StatusRejected
	}
	return false
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+v)
	}
	return s, nil
}

// RiskLevel is the automatic risk grading attached to a decision.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Med"
	RiskHigh   RiskLevel = "High"
)
