// Package decision aggregates a finished session into a compliance verdict.
package decision

import (
	"time"

	"kycflow/internal/verification/models"
)

// MaxConfidence is the aggregate for sessions with no external checks.
const MaxConfidence = 100

// Evaluate applies the verdict rules to a session's steps.
// This is pure domain logic - no I/O, no side effects.
// Rule priority (fail-fast):
//  1. Any failed step rejects the session
//  2. Any external check below threshold needs a human
//  3. Otherwise verified
func Evaluate(steps []models.StepInstance, threshold int) (models.Decision, string, string) {
	for _, st := range steps {
		if st.Status == models.StepFailed {
			return models.DecisionRejected, models.ReasonStepFailed, st.StepID
		}
	}
	for _, st := range steps {
		if st.IsAsync() && st.Confidence < threshold {
			return models.DecisionNeedsManualReview, models.ReasonLowConfidence, ""
		}
	}
	return models.DecisionVerified, models.ReasonAllChecksPassed, ""
}

// AggregateConfidence is the weakest external check, or MaxConfidence when
// the plan had none. Failed async steps are ignored; they reject anyway.
func AggregateConfidence(steps []models.StepInstance) (int, map[string]int) {
	confidences := make(map[string]int)
	agg := MaxConfidence
	for _, st := range steps {
		if !st.IsAsync() || st.Status != models.StepCompleted {
			continue
		}
		confidences[st.StepID] = st.Confidence
		agg = min(agg, st.Confidence)
	}
	return agg, confidences
}

// BuildOutcome constructs the outcome of a session that reached completed or
// rejected.
func BuildOutcome(s *models.Session, threshold int, decidedAt time.Time) *models.VerificationOutcome {
	decision, reason, failedStep := Evaluate(s.Steps, threshold)
	agg, confidences := AggregateConfidence(s.Steps)
	return &models.VerificationOutcome{
		SessionID:           s.ID,
		SubjectID:           s.Subject.ID,
		Tier:                s.Tier,
		StepConfidences:     confidences,
		AggregateConfidence: agg,
		Decision:            decision,
		Reason:              reason,
		FailedStep:          failedStep,
		DecidedAt:           decidedAt,
	}
}
