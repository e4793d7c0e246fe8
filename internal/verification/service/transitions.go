package service

import (
	"context"

	"kycflow/internal/verification/models"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/audit"
)

// change is one observable difference between a session before and after
// an engine call. Step status changes without an event only feed metrics.
type change struct {
	event    audit.AuditEvent
	stepID   string
	status   models.StepStatus
	reason   string
	decision string
}

func diff(before, after *models.Session) []change {
	var changes []change
	for i := range after.Steps {
		if i >= len(before.Steps) {
			break
		}
		b, a := before.Steps[i], after.Steps[i]
		if a.Status != b.Status {
			changes = append(changes, change{stepID: a.StepID, status: a.Status})
			switch a.Status {
			case models.StepCompleted:
				changes = append(changes, change{event: audit.EventStepCompleted, stepID: a.StepID})
			case models.StepFailed:
				changes = append(changes, change{event: audit.EventStepFailed, stepID: a.StepID, reason: a.FailureReason})
			}
		}
		if a.RetryCount > b.RetryCount && a.Status != models.StepFailed {
			changes = append(changes, change{event: audit.EventStepRetryOffered, stepID: a.StepID, reason: a.FailureReason})
		}
	}

	if after.CurrentIndex < before.CurrentIndex {
		if cur := after.Current(); cur != nil {
			changes = append(changes, change{event: audit.EventStepRewound, stepID: cur.StepID})
		}
	}

	if after.Status != before.Status {
		c := change{}
		switch after.Status {
		case models.SessionCompleted:
			c.event = audit.EventSessionCompleted
		case models.SessionRejected:
			c.event = audit.EventSessionRejected
		case models.SessionExpired:
			c.event = audit.EventSessionExpired
		case models.SessionAbandoned:
			c.event = audit.EventSessionAbandoned
		}
		if after.Outcome != nil {
			c.decision = string(after.Outcome.Decision)
			c.reason = after.Outcome.Reason
			c.stepID = after.Outcome.FailedStep
		}
		if c.event != "" {
			changes = append(changes, c)
		}
	}
	return changes
}

// emitCompliance records compliance events before the session is saved. A
// failed write aborts the transition.
func (s *Service) emitCompliance(ctx context.Context, sess *models.Session, changes []change) error {
	for _, c := range changes {
		if c.event == "" || c.event.Category() != audit.CategoryCompliance {
			continue
		}
		if err := s.logAudit(ctx, string(c.event), s.auditArgs(sess, c)...); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
	}
	return nil
}

func (s *Service) afterSave(ctx context.Context, sess *models.Session, changes []change) {
	for _, c := range changes {
		if c.event == "" {
			s.metrics.IncrementStepTransition(c.stepID, string(c.status))
			continue
		}
		if c.event.Category() != audit.CategoryCompliance {
			_ = s.logAudit(ctx, string(c.event), s.auditArgs(sess, c)...)
		}
		switch c.event {
		case audit.EventSessionCompleted, audit.EventSessionRejected, audit.EventSessionExpired, audit.EventSessionAbandoned:
			s.metrics.IncrementSessionEnded(string(sess.Status))
		}
	}

	if sess.Outcome != nil && sess.Status.IsTerminal() && hasSessionEnd(changes) {
		s.metrics.IncrementOutcome(string(sess.Outcome.Decision), string(sess.Tier))
		s.publishOutcome(ctx, sess.Outcome)
	}
}

// publishOutcome hands the outcome downstream. The session is already saved,
// so a failed publish is logged and the outcome stays readable from the API.
func (s *Service) publishOutcome(ctx context.Context, outcome *models.VerificationOutcome) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.Publish(ctx, outcome); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to publish verification outcome",
			"session_id", outcome.SessionID.String(),
			"decision", string(outcome.Decision),
			"error", err,
		)
	}
}

func (s *Service) auditArgs(sess *models.Session, c change) []any {
	args := []any{
		"session_id", sess.ID.String(),
		"subject_id", sess.Subject.ID.String(),
		"tier", string(sess.Tier),
	}
	if c.stepID != "" {
		args = append(args, "step_id", c.stepID)
	}
	if c.decision != "" {
		args = append(args, "decision", c.decision)
	}
	if c.reason != "" {
		args = append(args, "reason", c.reason)
	}
	return args
}

func hasSessionEnd(changes []change) bool {
	for _, c := range changes {
		if c.event == audit.EventSessionCompleted || c.event == audit.EventSessionRejected {
			return true
		}
	}
	return false
}
