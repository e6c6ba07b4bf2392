package recognition

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for model calls.
type ErrorCategory string

const (
	// ErrorTimeout: the model did not answer within the call deadline
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData: the model answered with output that is not usable
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication: API key missing, invalid or not permitted
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage: model endpoint unreachable or failing, or the circuit is open
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch: the response no longer matches the expected schema
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorRateLimited: upstream 429 or the local quota is exhausted
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal: anything else
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps a model failure with its category.
type ProviderError struct {
	Category   ErrorCategory
	Model      string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("model %s [%s]: %s: %v", e.Model, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("model %s [%s]: %s", e.Model, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func NewProviderError(category ErrorCategory, model, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		Model:      model,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether the same call may succeed later.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsRateLimited reports whether err means "slow down" rather than "failed".
func IsRateLimited(err error) bool {
	return GetCategory(err) == ErrorRateLimited
}

// GetCategory extracts the category, defaulting to ErrorInternal.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// Feedback is the short user-facing explanation of a failed step.
type Feedback struct {
	Title     string `json:"title"`
	Tip       string `json:"tip"`
	Retryable bool   `json:"retryable"`
}

// FeedbackFor turns a model failure into user-facing text. The tip keeps the
// technical detail so support can tell failures apart.
func FeedbackFor(err error) Feedback {
	switch GetCategory(err) {
	case ErrorRateLimited:
		return Feedback{Title: "Too many requests", Tip: "Please wait for the countdown to finish before trying again.", Retryable: true}
	case ErrorTimeout:
		return Feedback{Title: "Verification timed out", Tip: "The check took too long. Please try again.", Retryable: true}
	case ErrorAuthentication:
		return Feedback{Title: "Verification unavailable", Tip: "The verification service rejected our credentials (" + string(ErrorAuthentication) + ").", Retryable: true}
	case ErrorProviderOutage:
		return Feedback{Title: "Verification unavailable", Tip: "The verification service is temporarily unavailable. Please try again shortly.", Retryable: true}
	case ErrorBadData, ErrorContractMismatch:
		return Feedback{Title: "Could not read the result", Tip: "We could not understand the verification result (" + err.Error() + "). Please try again.", Retryable: true}
	default:
		detail := "unknown error"
		if err != nil {
			detail = err.Error()
		}
		return Feedback{Title: "Something went wrong", Tip: "Technical details: " + detail, Retryable: true}
	}
}
