package audit

import (
	"context"
	"time"

	id "kycflow/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: decisions,
	// rejections and anything a regulator may ask to see. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine workflow progress useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from verification logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SessionID id.SessionID
	SubjectID id.SubjectID
	Action    string
	Tier      string
	StepID    string
	Decision  string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventSessionStarted   AuditEvent = "verification_session_started"
	EventSessionResumed   AuditEvent = "verification_session_resumed"
	EventStepCompleted    AuditEvent = "verification_step_completed"
	EventStepRetryOffered AuditEvent = "verification_step_retry_offered"
	EventStepFailed       AuditEvent = "verification_step_failed"
	EventStepRewound      AuditEvent = "verification_step_rewound"
	EventSessionCompleted AuditEvent = "verification_session_completed"
	EventSessionRejected  AuditEvent = "verification_session_rejected"
	EventSessionExpired   AuditEvent = "verification_session_expired"
	EventSessionAbandoned AuditEvent = "verification_session_abandoned"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventStepFailed:       CategoryCompliance,
	EventSessionCompleted: CategoryCompliance,
	EventSessionRejected:  CategoryCompliance,
	EventSessionAbandoned: CategoryCompliance,

	EventSessionStarted:   CategoryOperations,
	EventSessionResumed:   CategoryOperations,
	EventStepCompleted:    CategoryOperations,
	EventStepRetryOffered: CategoryOperations,
	EventStepRewound:      CategoryOperations,
	EventSessionExpired:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
}
