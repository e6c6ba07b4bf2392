// Package quota bounds how often a key (a session, or the whole deployment)
// may call the recognition model within a sliding window.
package quota

import "time"

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// RetryAfter is how long until the window admits another call.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil || r.Allowed || r.ResetAt.Before(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}
