package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
)

func syncStep(stepID string, status models.StepStatus) models.StepInstance {
	return models.StepInstance{StepID: stepID, Mode: models.ModeSync, Status: status}
}

func asyncStep(stepID string, status models.StepStatus, conf int) models.StepInstance {
	return models.StepInstance{StepID: stepID, Mode: models.ModeAsync, Status: status, Confidence: conf}
}

func TestBuildOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		steps      []models.StepInstance
		decision   models.Decision
		reason     string
		failedStep string
		aggregate  int
	}{
		{
			name:      "basic tier without async steps is fully confident",
			steps:     []models.StepInstance{syncStep("personal_info", models.StepCompleted), syncStep("review", models.StepCompleted)},
			decision:  models.DecisionVerified,
			reason:    models.ReasonAllChecksPassed,
			aggregate: 100,
		},
		{
			name: "confidences above threshold verify",
			steps: []models.StepInstance{
				syncStep("personal_info", models.StepCompleted),
				asyncStep("identity_document", models.StepCompleted, 92),
				asyncStep("biometric_liveness", models.StepCompleted, 81),
			},
			decision:  models.DecisionVerified,
			reason:    models.ReasonAllChecksPassed,
			aggregate: 81,
		},
		{
			name: "confidence exactly at threshold verifies",
			steps: []models.StepInstance{
				asyncStep("identity_document", models.StepCompleted, 70),
			},
			decision:  models.DecisionVerified,
			reason:    models.ReasonAllChecksPassed,
			aggregate: 70,
		},
		{
			name: "low confidence goes to manual review",
			steps: []models.StepInstance{
				asyncStep("identity_document", models.StepCompleted, 95),
				asyncStep("biometric_liveness", models.StepCompleted, 55),
			},
			decision:  models.DecisionNeedsManualReview,
			reason:    models.ReasonLowConfidence,
			aggregate: 55,
		},
		{
			name: "failed step rejects regardless of confidences",
			steps: []models.StepInstance{
				syncStep("personal_info", models.StepCompleted),
				asyncStep("identity_document", models.StepFailed, 0),
			},
			decision:   models.DecisionRejected,
			reason:     models.ReasonStepFailed,
			failedStep: "identity_document",
			aggregate:  100,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &models.Session{
				ID:      id.NewSessionID(),
				Subject: models.Subject{ID: "0xabc"},
				Tier:    models.TierEnhanced,
				Steps:   tc.steps,
			}
			out := BuildOutcome(s, 70, now)

			assert.Equal(t, tc.decision, out.Decision)
			assert.Equal(t, tc.reason, out.Reason)
			assert.Equal(t, tc.failedStep, out.FailedStep)
			assert.Equal(t, tc.aggregate, out.AggregateConfidence)
			assert.Equal(t, s.ID, out.SessionID)
			assert.Equal(t, s.Subject.ID, out.SubjectID)
			assert.Equal(t, now, out.DecidedAt)
		})
	}
}

func TestAggregateConfidence_OnlyAsyncCompleted(t *testing.T) {
	agg, confs := AggregateConfidence([]models.StepInstance{
		syncStep("personal_info", models.StepCompleted),
		asyncStep("identity_document", models.StepCompleted, 88),
	})
	assert.Equal(t, 88, agg)
	assert.Equal(t, map[string]int{"identity_document": 88}, confs)
}
