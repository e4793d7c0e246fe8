package models

import (
	"maps"
	"time"

	id "kycflow/pkg/domain"
)

// Decision is the aggregate compliance verdict.
type Decision string

const (
	DecisionVerified          Decision = "verified"
	DecisionRejected          Decision = "rejected"
	DecisionNeedsManualReview Decision = "needs_manual_review"
)

// Reason codes attached to outcomes.
const (
	ReasonAllChecksPassed = "all_checks_passed"
	ReasonStepFailed      = "step_failed"
	ReasonLowConfidence   = "low_confidence"
)

// VerificationOutcome is produced once per session when it reaches a terminal
// completed or rejected state.
type VerificationOutcome struct {
	SessionID           id.SessionID   `json:"session_id"`
	SubjectID           id.SubjectID   `json:"subject_id"`
	Tier                Tier           `json:"tier"`
	StepConfidences     map[string]int `json:"step_confidences"`
	AggregateConfidence int            `json:"aggregate_confidence"`
	Decision            Decision       `json:"decision"`
	Reason              string         `json:"reason"`
	FailedStep          string         `json:"failed_step,omitempty"`
	DecidedAt           time.Time      `json:"decided_at"`
}

func (o *VerificationOutcome) Clone() *VerificationOutcome {
	c := *o
	c.StepConfidences = maps.Clone(o.StepConfidences)
	return &c
}
