package models

import (
	"time"

	id "kycflow/pkg/domain"
)

// SessionStatus is the lifecycle of a verification session.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionRejected   SessionStatus = "rejected"
	SessionExpired    SessionStatus = "expired"
	SessionAbandoned  SessionStatus = "abandoned"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionRejected, SessionExpired, SessionAbandoned:
		return true
	default:
		return false
	}
}

// Session is one verification run for one subject. It exclusively owns its steps.
type Session struct {
	ID             id.SessionID         `json:"id"`
	Subject        Subject              `json:"subject"`
	Context        TransactionContext   `json:"context"`
	Tier           Tier                 `json:"tier"`
	Steps          []StepInstance       `json:"steps"`
	CurrentIndex   int                  `json:"current_index"`
	Status         SessionStatus        `json:"status"`
	Outcome        *VerificationOutcome `json:"outcome,omitempty"`
	Version        int64                `json:"version"`
	CreatedAt      time.Time            `json:"created_at"`
	LastActivityAt time.Time            `json:"last_activity_at"`
	ResumedFrom    id.SessionID         `json:"resumed_from,omitzero"`
}

// Current returns the step at CurrentIndex, or nil once the index has moved
// past the last step.
func (s *Session) Current() *StepInstance {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Steps) {
		return nil
	}
	return &s.Steps[s.CurrentIndex]
}

// StepIndex returns the position of stepID in the plan, or -1.
func (s *Session) StepIndex(stepID string) int {
	for i := range s.Steps {
		if s.Steps[i].StepID == stepID {
			return i
		}
	}
	return -1
}

// AllCompleted reports whether every planned step is completed.
func (s *Session) AllCompleted() bool {
	for i := range s.Steps {
		if s.Steps[i].Status != StepCompleted {
			return false
		}
	}
	return len(s.Steps) > 0
}

// Touch records activity.
func (s *Session) Touch(now time.Time) {
	s.LastActivityAt = now
}

// IdleFor reports how long the session has gone without a transition.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt)
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Subject = s.Subject.Clone()
	c.Steps = make([]StepInstance, len(s.Steps))
	for i := range s.Steps {
		c.Steps[i] = s.Steps[i].clone()
	}
	if s.Outcome != nil {
		c.Outcome = s.Outcome.Clone()
	}
	return &c
}

// StepSnapshot is the per-call view returned after submit and poll.
type StepSnapshot struct {
	SessionID        id.SessionID         `json:"session_id"`
	StepID           string               `json:"step_id"`
	Status           StepStatus           `json:"status"`
	Errors           map[string]string    `json:"errors,omitempty"`
	RetryCount       int                  `json:"retry_count"`
	RetriesRemaining int                  `json:"retries_remaining"`
	FailureReason    string               `json:"failure_reason,omitempty"`
	RedirectURL      string               `json:"redirect_url,omitempty"`
	CurrentIndex     int                  `json:"current_index"`
	CurrentStepID    string               `json:"current_step_id,omitempty"`
	SessionStatus    SessionStatus        `json:"session_status"`
	Outcome          *VerificationOutcome `json:"outcome,omitempty"`
}
