// Package domain holds the typed identifiers shared across modules.
//
// IDs are parsed once at trust boundaries (handlers, CLI) and passed around
// typed, so a reviewer id can never be used where a session id is expected.
package domain

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	dErrors "vericore/pkg/domain-errors"
)

type (
	SessionID  uuid.UUID
	ReviewerID uuid.UUID
)

func NewSessionID() SessionID { return SessionID(uuid.New()) }

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) String() string { return uuid.UUID(id).String() }
func (id ReviewerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ReviewerID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ReviewerID) UnmarshalText(b []byte) error {
	parsed, err := ParseReviewerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func ParseReviewerID(s string) (ReviewerID, error) {
	u, err := parseUUID(s, "reviewer id")
	return ReviewerID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be nil")
	}
	return u, nil
}

// CaseRef is the human-facing case reference shown to reviewers, e.g. KYC-04217.
// It is derived from the session id and is not unique on its own.
type CaseRef string

var caseRefPattern = regexp.MustCompile(`^KYC-\d{5}$`)

// CaseRefFor derives the case reference of a session.
func CaseRefFor(id SessionID) CaseRef {
	u := uuid.UUID(id)
	n := binary.BigEndian.Uint32(u[:4]) % 100000
	return CaseRef(fmt.Sprintf("KYC-%05d", n))
}

func ParseCaseRef(s string) (CaseRef, error) {
	if !caseRefPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "case reference must look like KYC-00000")
	}
	return CaseRef(s), nil
}

func (c CaseRef) String() string { return string(c) }

// Number returns the numeric part of the reference.
func (c CaseRef) Number() int {
	if len(c) < 5 {
		return 0
	}
	n, _ := strconv.Atoi(string(c[4:]))
	return n
}
