package service

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycflow/internal/verification/engine"
	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/metrics"
	"kycflow/internal/verification/models"
	"kycflow/pkg/attrs"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/audit"
	"kycflow/pkg/platform/sentinel"
	"kycflow/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks SessionStore,OutcomePublisher,AuditPublisher

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Load(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Session, error)
	ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]id.SessionID, error)
}

type OutcomePublisher interface {
	Publish(ctx context.Context, outcome *models.VerificationOutcome) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type StepCatalog interface {
	Lookup(stepID string) (models.StepDefinition, bool)
}

// Service runs engine transitions against stored sessions. Each transition
// is load, mutate, versioned save; a concurrent writer makes the save fail
// with a conflict instead of double-advancing the session.
type Service struct {
	engine         *engine.Engine
	sessions       SessionStore
	catalog        StepCatalog
	outcomes       OutcomePublisher
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithOutcomePublisher(publisher OutcomePublisher) Option {
	return func(s *Service) {
		s.outcomes = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(eng *engine.Engine, sessions SessionStore, catalog StepCatalog, opts ...Option) *Service {
	s := &Service{
		engine:   eng,
		sessions: sessions,
		catalog:  catalog,
		tracer:   otel.Tracer("kycflow/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession classifies the transaction and persists a new session.
func (s *Service) StartSession(ctx context.Context, subject models.Subject, txCtx models.TransactionContext) (_ *models.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.StartSession")
	defer func() { endSpan(span, err) }()

	sess, err := s.engine.Start(ctx, subject, txCtx)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	span.SetAttributes(attribute.String("session_id", sess.ID.String()), attribute.String("tier", string(sess.Tier)))

	s.metrics.IncrementSessionsStarted(string(sess.Tier))
	s.metrics.IncrementStepTransition(sess.Steps[0].StepID, string(models.StepInProgress))
	_ = s.logAudit(ctx, string(audit.EventSessionStarted),
		"session_id", sess.ID.String(),
		"subject_id", sess.Subject.ID.String(),
		"tier", string(sess.Tier),
	)
	return sess, nil
}

// GetSession returns the session, expiring it first if it has gone idle.
func (s *Service) GetSession(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess, _, err := s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
		s.engine.ExpireIfIdle(ctx, sess)
		return nil, nil
	})
	return sess, err
}

// StepDefinition describes a step for rendering.
func (s *Service) StepDefinition(stepID string) (models.StepDefinition, bool) {
	return s.catalog.Lookup(stepID)
}

func (s *Service) SubmitStep(ctx context.Context, sessionID id.SessionID, stepID string, values map[string]string) (_ *models.StepSnapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.SubmitStep", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
		attribute.String("step_id", stepID),
	))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	_, snap, err := s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
		return s.engine.Submit(ctx, sess, stepID, values)
	})
	if err != nil {
		return nil, err
	}
	if snap.Status == models.StepInProgress && hasFieldErrors(snap.Errors) {
		s.metrics.IncrementValidationFailure(stepID)
	}
	if def, ok := s.catalog.Lookup(stepID); ok && def.IsAsync() {
		s.metrics.ObserveGatewayLatency("submit", time.Since(start))
	}
	return snap, nil
}

func (s *Service) PollStep(ctx context.Context, sessionID id.SessionID, stepID string) (_ *models.StepSnapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.PollStep", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
		attribute.String("step_id", stepID),
	))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	_, snap, err := s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
		return s.engine.Poll(ctx, sess, stepID)
	})
	s.metrics.ObserveGatewayLatency("poll", time.Since(start))
	return snap, err
}

// CompleteReturn handles the subject coming back from a hosted verification
// flow. The handle must still be the one in flight for the step; a link from
// an earlier attempt is refused.
func (s *Service) CompleteReturn(ctx context.Context, sessionID id.SessionID, stepID, handle string) (_ *models.StepSnapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.CompleteReturn", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
		attribute.String("step_id", stepID),
	))
	defer func() { endSpan(span, err) }()

	_, snap, err := s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
		if cur := sess.Current(); cur == nil || cur.StepID != stepID || cur.Handle != handle {
			return nil, dErrors.New(dErrors.CodeBadRequest, "verification link is no longer valid")
		}
		return s.engine.Poll(ctx, sess, stepID)
	})
	return snap, err
}

func (s *Service) Previous(ctx context.Context, sessionID id.SessionID) (_ *models.StepSnapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.Previous", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
	))
	defer func() { endSpan(span, err) }()

	_, snap, err := s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
		return s.engine.Previous(ctx, sess)
	})
	return snap, err
}

func (s *Service) Abandon(ctx context.Context, sessionID id.SessionID) (err error) {
	ctx, span := s.tracer.Start(ctx, "verification.Abandon", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
	))
	defer func() { endSpan(span, err) }()

	_, _, err = s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
		return nil, s.engine.Abandon(ctx, sess)
	})
	return err
}

// Resume starts a fresh session from an expired one.
func (s *Service) Resume(ctx context.Context, sessionID id.SessionID) (_ *models.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.Resume", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
	))
	defer func() { endSpan(span, err) }()

	expired, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fresh, err := s.engine.Resume(ctx, expired)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, fresh); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	s.metrics.IncrementSessionsStarted(string(fresh.Tier))
	_ = s.logAudit(ctx, string(audit.EventSessionResumed),
		"session_id", fresh.ID.String(),
		"subject_id", fresh.Subject.ID.String(),
		"tier", string(fresh.Tier),
		"reason", "resumed_from:"+expired.ID.String(),
	)
	return fresh, nil
}

// GetOutcome returns the decision of a completed or rejected session.
func (s *Service) GetOutcome(ctx context.Context, sessionID id.SessionID) (*models.VerificationOutcome, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Outcome == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "session is %s and has no outcome", sess.Status)
	}
	return sess.Outcome, nil
}

// ListBySubject returns the subject's sessions, oldest first.
func (s *Service) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Session, error) {
	sessions, err := s.sessions.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	return sessions, nil
}

// ExpireIdle expires up to limit sessions idle past the policy timeout and
// reports how many it expired. Sessions touched concurrently are skipped.
func (s *Service) ExpireIdle(ctx context.Context, limit int) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.engine.Policy().IdleTimeout)
	ids, err := s.sessions.ListIdle(ctx, cutoff, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list idle sessions")
	}
	expired := 0
	for _, sessionID := range ids {
		sess, _, err := s.mutate(ctx, sessionID, func(sess *models.Session) (*models.StepSnapshot, error) {
			s.engine.ExpireIfIdle(ctx, sess)
			return nil, nil
		})
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return expired, err
		}
		if sess.Status == models.SessionExpired {
			expired++
		}
	}
	return expired, nil
}

// mutate loads a session, applies fn and saves the result if anything
// changed. A failed fn is not saved unless it changed the session status
// (an operation on an idle session expires it and then fails).
func (s *Service) mutate(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) (*models.StepSnapshot, error)) (*models.Session, *models.StepSnapshot, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	before := sess.Clone()

	snap, fnErr := fn(sess)
	if fnErr != nil && sess.Status == before.Status {
		return nil, nil, fnErr
	}
	if reflect.DeepEqual(before, sess) {
		return sess, snap, fnErr
	}

	changes := diff(before, sess)
	if err := s.emitCompliance(ctx, sess, changes); err != nil {
		s.releaseUnsaved(ctx, before, sess)
		return nil, nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.releaseUnsaved(ctx, before, sess)
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementConflict()
			return nil, nil, dErrors.New(dErrors.CodeConflict, "session was modified concurrently, reload and retry")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}
	s.afterSave(ctx, sess, changes)
	return sess, snap, fnErr
}

// releaseUnsaved cancels external checks started by a transition that was
// never persisted. No stored session holds their handles, so nothing would
// ever poll or cancel them.
func (s *Service) releaseUnsaved(ctx context.Context, before, after *models.Session) {
	for i, st := range after.Steps {
		if st.Handle == "" {
			continue
		}
		if i < len(before.Steps) && before.Steps[i].Handle == st.Handle {
			continue
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "releasing external check of an unsaved transition",
				"session_id", after.ID.String(),
				"step_id", st.StepID,
				"handle", st.Handle,
			)
		}
		s.engine.Release(ctx, gateway.Handle{ID: st.Handle, Kind: st.Verifier})
	}
}

func hasFieldErrors(errs map[string]string) bool {
	for field := range errs {
		if field != models.VerificationErrorKey {
			return true
		}
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) error {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, auditEvent(event, requestID, attributes))
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
	return err
}

func auditEvent(event, requestID string, attributes []any) audit.Event {
	sessionID, _ := id.ParseSessionID(attrs.ExtractString(attributes, "session_id"))
	return audit.Event{
		SessionID: sessionID,
		SubjectID: id.SubjectID(attrs.ExtractString(attributes, "subject_id")),
		Action:    event,
		Tier:      attrs.ExtractString(attributes, "tier"),
		StepID:    attrs.ExtractString(attributes, "step_id"),
		Decision:  attrs.ExtractString(attributes, "decision"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: requestID,
	}
}
