package audit

import (
	"context"
	"time"

	id "vericore/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: decisions
	// and reviewer overrides on a customer's verification.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse monitoring, such as
	// rate limiting and settings changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine wizard progress.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SessionID id.SessionID
	// Subject is the human-facing case reference (KYC-NNNNN) or the settings key.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorID is the reviewer or admin acting on the session; empty for the customer.
	ActorID string
}

type AuditEvent string

const (
	// Capture events
	EventSessionStarted   AuditEvent = "session_started"
	EventDocumentAccepted AuditEvent = "document_accepted"
	EventDocumentRejected AuditEvent = "document_rejected"
	EventLivenessRejected AuditEvent = "liveness_rejected"
	EventRateLimited      AuditEvent = "rate_limited"
	EventCameraDenied     AuditEvent = "camera_denied"
	EventSessionFinalized AuditEvent = "session_finalized"

	// Review events
	EventReviewAssigned      AuditEvent = "review_assigned"
	EventReviewCommented     AuditEvent = "review_commented"
	EventReviewStatusChanged AuditEvent = "review_status_changed"

	// Platform events
	EventSettingsUpdated AuditEvent = "settings_updated"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventSessionFinalized:    CategoryCompliance,
	EventReviewStatusChanged: CategoryCompliance,

	EventRateLimited:     CategorySecurity,
	EventCameraDenied:    CategorySecurity,
	EventSettingsUpdated: CategorySecurity,

	EventSessionStarted:   CategoryOperations,
	EventDocumentAccepted: CategoryOperations,
	EventDocumentRejected: CategoryOperations,
	EventLivenessRejected: CategoryOperations,
	EventReviewAssigned:   CategoryOperations,
	EventReviewCommented:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink receives events. Sinks may be write-only (a Kafka topic).
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also read a session's trail back.
type Store interface {
	Sink
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error)
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
