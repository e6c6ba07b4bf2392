package sentinel

import "errors"

// Infrastructure facts returned by stores and adapters, optionally wrapped.
// Services translate them into domain errors; handlers never see them directly.
//
//   - ErrNotFound: record or live session does not exist
//   - ErrConflict: write raced with another writer
//   - ErrExpired: live session or cooldown window has lapsed
//   - ErrInvalidState: record is in the wrong status for the operation
//   - ErrUnavailable: backing service temporarily unreachable
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
