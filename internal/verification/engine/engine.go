// Package engine is the verification state machine. It mutates a session in
// place through explicit transitions and never blocks on external verifiers:
// asynchronous steps are initiated on submit and resolved by polling.
//
// The engine holds no per-session state and takes no locks; callers must
// serialize access to a session (the service does so with versioned saves).
package engine

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	"kycflow/internal/verification/decision"
	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/requestcontext"
)

// Policy holds the tunable limits of the workflow.
type Policy struct {
	// MaxRetries is how many failed external checks are re-offered before a
	// step fails for good.
	MaxRetries int
	// ManualReviewThreshold is the lowest external confidence accepted
	// without human review.
	ManualReviewThreshold int
	IdleTimeout           time.Duration
	MaxWait               time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:            3,
		ManualReviewThreshold: 70,
		IdleTimeout:           30 * time.Minute,
		MaxWait:               10 * time.Minute,
	}
}

// Reasons recorded on failed external checks.
const (
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

const msgVerifierUnavailable = "verification service is temporarily unavailable, try again"

type Classifier interface {
	Classify(ctx models.TransactionContext) (models.Tier, error)
}

type Planner interface {
	Plan(tier models.Tier) ([]models.StepDefinition, error)
}

type StepLookup interface {
	Lookup(stepID string) (models.StepDefinition, bool)
}

type Validator interface {
	ValidateAt(step models.StepDefinition, values map[string]string, now time.Time) map[string]string
}

type Engine struct {
	classifier Classifier
	planner    Planner
	steps      StepLookup
	validator  Validator
	gateway    gateway.Gateway
	policy     Policy
	logger     *slog.Logger
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(classifier Classifier, planner Planner, steps StepLookup, validator Validator, gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		classifier: classifier,
		planner:    planner,
		steps:      steps,
		validator:  validator,
		gateway:    gw,
		policy:     DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Start classifies the transaction, plans the steps and opens the first one.
// A malformed context fails with a classification error and no session.
func (e *Engine) Start(ctx context.Context, subject models.Subject, txCtx models.TransactionContext) (*models.Session, error) {
	if subject.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject id is required")
	}
	tier, err := e.classifier.Classify(txCtx)
	if err != nil {
		return nil, err
	}
	plan, err := e.planner.Plan(tier)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	s := &models.Session{
		ID:             id.NewSessionID(),
		Subject:        subject.Clone(),
		Context:        txCtx,
		Tier:           tier,
		Steps:          make([]models.StepInstance, 0, len(plan)),
		Status:         models.SessionInProgress,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	s.Subject.RiskCategory = models.RiskFor(tier)
	for _, def := range plan {
		s.Steps = append(s.Steps, models.NewStepInstance(def))
	}
	s.Steps[0].Status = models.StepInProgress
	s.Steps[0].StartedAt = now
	return s, nil
}

// Submit validates values for the current step. Synchronous steps complete
// and advance; asynchronous steps start an external check and wait for Poll.
// Validation and verification problems are reported in the snapshot.
func (e *Engine) Submit(ctx context.Context, s *models.Session, stepID string, values map[string]string) (*models.StepSnapshot, error) {
	now := requestcontext.Now(ctx)
	cur, err := e.current(ctx, s, stepID, now)
	if err != nil {
		return nil, err
	}
	if cur.AwaitingVerification() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "step %s is awaiting verification", stepID)
	}
	def, ok := e.steps.Lookup(stepID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "step %s is planned but not in the catalog", stepID)
	}

	values = normalize(values)
	cur.Values = values
	cur.Errors = e.validator.ValidateAt(def, values, now)
	s.Touch(now)
	if len(cur.Errors) > 0 {
		return e.snapshot(s, cur), nil
	}
	cur.Errors = nil

	if cur.IsAsync() {
		e.initiate(ctx, s, cur, now)
		return e.snapshot(s, cur), nil
	}

	cur.Status = models.StepCompleted
	cur.CompletedAt = now
	s.Subject.Apply(def, values)
	e.advance(s, now)
	return e.snapshot(s, cur), nil
}

// Poll asks the verifier about the current asynchronous step. A pending
// answer changes nothing, so repeated polls are idempotent.
func (e *Engine) Poll(ctx context.Context, s *models.Session, stepID string) (*models.StepSnapshot, error) {
	now := requestcontext.Now(ctx)
	cur, err := e.current(ctx, s, stepID, now)
	if err != nil {
		return nil, err
	}
	if !cur.IsAsync() {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "step %s is not externally verified", stepID)
	}
	if cur.Handle == "" {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "step %s has no verification in flight", stepID)
	}

	handle := gateway.Handle{ID: cur.Handle, Kind: cur.Verifier}
	st, err := e.gateway.PollStatus(ctx, handle)
	if err != nil {
		if !gateway.IsRetryable(err) {
			e.fail(s, cur, string(gateway.GetCategory(err)), now)
			return e.snapshot(s, cur), nil
		}
		if e.waitedTooLong(cur, now) {
			e.timeout(ctx, s, cur, handle, now)
			return e.snapshot(s, cur), nil
		}
		snap := e.snapshot(s, cur)
		snap.Errors = map[string]string{models.VerificationErrorKey: msgVerifierUnavailable}
		return snap, nil
	}

	switch st.State {
	case gateway.StateCompleted:
		cur.Confidence = gateway.ClampConfidence(st.Confidence)
		cur.Status = models.StepCompleted
		cur.CompletedAt = now
		cur.Errors = nil
		s.Touch(now)
		e.advance(s, now)
	case gateway.StateFailed:
		reason := st.Reason
		if reason == "" {
			reason = "rejected"
		}
		e.fail(s, cur, reason, now)
	default:
		if e.waitedTooLong(cur, now) {
			e.timeout(ctx, s, cur, handle, now)
		}
	}
	return e.snapshot(s, cur), nil
}

// Previous steps back one step. The step being left loses its data and any
// in-flight check is cancelled. The previous step is reopened with its values
// kept for editing, and its data is withdrawn from the subject until it is
// submitted again.
func (e *Engine) Previous(ctx context.Context, s *models.Session) (*models.StepSnapshot, error) {
	now := requestcontext.Now(ctx)
	if err := e.checkActive(ctx, s, now); err != nil {
		return nil, err
	}
	cur := s.Current()
	if cur == nil || cur.Status == models.StepCompleted {
		return nil, dErrors.New(dErrors.CodeInvalidState, "current step is already completed")
	}
	if s.CurrentIndex == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidState, "already at the first step")
	}

	if cur.AwaitingVerification() {
		e.cancel(ctx, gateway.Handle{ID: cur.Handle, Kind: cur.Verifier})
	}
	cur.Reset()

	s.CurrentIndex--
	prev := s.Current()
	if def, ok := e.steps.Lookup(prev.StepID); ok {
		s.Subject.Clear(def)
	}
	prev.Revisit(now)
	s.Touch(now)
	return e.snapshot(s, prev), nil
}

// Abandon ends a session at the subject's request. Outstanding checks are
// cancelled best effort; late verdicts are ignored.
func (e *Engine) Abandon(ctx context.Context, s *models.Session) error {
	if s.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidState, "session is already %s", s.Status)
	}
	e.releaseHandles(ctx, s)
	s.Status = models.SessionAbandoned
	s.Touch(requestcontext.Now(ctx))
	return nil
}

// ExpireIfIdle expires an in-progress session with no transition for longer
// than the idle timeout. Completed steps keep their data for Resume; the
// rest are reset. It reports whether the session expired.
func (e *Engine) ExpireIfIdle(ctx context.Context, s *models.Session) bool {
	if s.Status != models.SessionInProgress {
		return false
	}
	if s.IdleFor(requestcontext.Now(ctx)) <= e.policy.IdleTimeout {
		return false
	}
	e.releaseHandles(ctx, s)
	for i := range s.Steps {
		if s.Steps[i].Status != models.StepCompleted {
			s.Steps[i].Reset()
		}
	}
	s.Status = models.SessionExpired
	return true
}

// Resume opens a fresh session for the subject and context of an expired one.
// Leading synchronous steps that were completed and still validate are carried
// over; external checks and the final review are always redone.
func (e *Engine) Resume(ctx context.Context, expired *models.Session) (*models.Session, error) {
	if expired.Status != models.SessionExpired {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "only expired sessions can be resumed, session is %s", expired.Status)
	}
	base := expired.Subject.Clone()
	for _, old := range expired.Steps {
		if def, ok := e.steps.Lookup(old.StepID); ok {
			base.Clear(def)
		}
	}
	fresh, err := e.Start(ctx, base, expired.Context)
	if err != nil {
		return nil, err
	}
	fresh.ResumedFrom = expired.ID

	now := requestcontext.Now(ctx)
	for fresh.CurrentIndex < len(fresh.Steps)-1 {
		cur := fresh.Current()
		old := findStep(expired, cur.StepID)
		if old == nil || old.Status != models.StepCompleted || old.IsAsync() {
			break
		}
		def, ok := e.steps.Lookup(cur.StepID)
		if !ok || len(e.validator.ValidateAt(def, old.Values, now)) > 0 {
			break
		}
		cur.Values = maps.Clone(old.Values)
		cur.Status = models.StepCompleted
		cur.CompletedAt = now
		fresh.Subject.Apply(def, cur.Values)
		e.advance(fresh, now)
	}
	return fresh, nil
}

// Snapshot renders the view of the current step, or of the last step once
// the session has moved past the end.
func (e *Engine) Snapshot(s *models.Session) *models.StepSnapshot {
	cur := s.Current()
	if cur == nil && len(s.Steps) > 0 {
		cur = &s.Steps[len(s.Steps)-1]
	}
	return e.snapshot(s, cur)
}

// current enforces that the session is live and stepID is the current step.
func (e *Engine) current(ctx context.Context, s *models.Session, stepID string, now time.Time) (*models.StepInstance, error) {
	if err := e.checkActive(ctx, s, now); err != nil {
		return nil, err
	}
	cur := s.Current()
	if cur == nil || cur.StepID != stepID {
		expected := ""
		if cur != nil {
			expected = cur.StepID
		}
		return nil, dErrors.Newf(dErrors.CodeOutOfOrder, "step %q is not the current step %q", stepID, expected)
	}
	return cur, nil
}

func (e *Engine) checkActive(ctx context.Context, s *models.Session, now time.Time) error {
	if s.Status == models.SessionExpired {
		return dErrors.New(dErrors.CodeSessionExpired, "session has expired, start a new one")
	}
	if s.Status != models.SessionInProgress {
		return dErrors.Newf(dErrors.CodeInvalidState, "session is %s", s.Status)
	}
	if s.IdleFor(now) > e.policy.IdleTimeout {
		e.ExpireIfIdle(ctx, s)
		return dErrors.New(dErrors.CodeSessionExpired, "session has expired, start a new one")
	}
	return nil
}

func (e *Engine) initiate(ctx context.Context, s *models.Session, cur *models.StepInstance, now time.Time) {
	h, err := e.gateway.Initiate(ctx, gateway.InitiateRequest{
		SessionID:  s.ID,
		StepID:     cur.StepID,
		Kind:       cur.Verifier,
		SubjectRef: s.Subject.ID,
		Attributes: maps.Clone(cur.Values),
	})
	if err != nil {
		if gateway.IsRetryable(err) {
			cur.Errors = map[string]string{models.VerificationErrorKey: msgVerifierUnavailable}
			return
		}
		e.fail(s, cur, string(gateway.GetCategory(err)), now)
		return
	}
	cur.Handle = h.ID
	cur.RedirectURL = h.RedirectURL
	cur.InitiatedAt = now
}

// fail records a failed attempt. The step is re-offered with cleared values
// until the retry bound is exhausted, then the session is rejected.
func (e *Engine) fail(s *models.Session, cur *models.StepInstance, reason string, now time.Time) {
	cur.RetryCount++
	s.Touch(now)
	if cur.RetryCount > e.policy.MaxRetries {
		cur.Status = models.StepFailed
		cur.FailureReason = reason
		cur.Handle = ""
		cur.RedirectURL = ""
		cur.Errors = map[string]string{models.VerificationErrorKey: "verification failed: " + reason}
		cur.CompletedAt = now
		s.Status = models.SessionRejected
		s.Outcome = decision.BuildOutcome(s, e.policy.ManualReviewThreshold, now)
		return
	}
	cur.Reopen(now)
	cur.FailureReason = reason
	cur.Errors = map[string]string{models.VerificationErrorKey: "verification failed: " + reason + ", please try again"}
}

func (e *Engine) waitedTooLong(cur *models.StepInstance, now time.Time) bool {
	return e.policy.MaxWait > 0 && now.Sub(cur.InitiatedAt) > e.policy.MaxWait
}

func (e *Engine) timeout(ctx context.Context, s *models.Session, cur *models.StepInstance, h gateway.Handle, now time.Time) {
	e.cancel(ctx, h)
	e.fail(s, cur, ReasonTimeout, now)
}

// advance moves past a completed step and finishes the session after the last.
func (e *Engine) advance(s *models.Session, now time.Time) {
	s.CurrentIndex++
	if next := s.Current(); next != nil {
		next.Status = models.StepInProgress
		next.StartedAt = now
		return
	}
	if s.AllCompleted() {
		s.Status = models.SessionCompleted
		s.Outcome = decision.BuildOutcome(s, e.policy.ManualReviewThreshold, now)
	}
}

func (e *Engine) releaseHandles(ctx context.Context, s *models.Session) {
	for i := range s.Steps {
		st := &s.Steps[i]
		if st.AwaitingVerification() {
			e.cancel(ctx, gateway.Handle{ID: st.Handle, Kind: st.Verifier})
			st.Handle = ""
			st.RedirectURL = ""
		}
	}
}

// Release cancels an external check that no session will ever poll, such as
// one started by a transition that failed to persist.
func (e *Engine) Release(ctx context.Context, h gateway.Handle) {
	e.cancel(ctx, h)
}

// cancel is best effort: backends without cancellation simply forget the handle.
func (e *Engine) cancel(ctx context.Context, h gateway.Handle) {
	c, ok := e.gateway.(gateway.Canceler)
	if !ok {
		return
	}
	if err := c.Cancel(ctx, h); err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "failed to cancel external verification",
			"handle", h.ID,
			"kind", h.Kind,
			"error", err,
		)
	}
}

func (e *Engine) snapshot(s *models.Session, st *models.StepInstance) *models.StepSnapshot {
	snap := &models.StepSnapshot{
		SessionID:     s.ID,
		CurrentIndex:  s.CurrentIndex,
		SessionStatus: s.Status,
		Outcome:       s.Outcome,
	}
	if cur := s.Current(); cur != nil {
		snap.CurrentStepID = cur.StepID
	}
	if st == nil {
		return snap
	}
	snap.StepID = st.StepID
	snap.Status = st.Status
	snap.Errors = maps.Clone(st.Errors)
	snap.RetryCount = st.RetryCount
	snap.RetriesRemaining = max(e.policy.MaxRetries-st.RetryCount, 0)
	snap.FailureReason = st.FailureReason
	snap.RedirectURL = st.RedirectURL
	return snap
}

func findStep(s *models.Session, stepID string) *models.StepInstance {
	if i := s.StepIndex(stepID); i >= 0 {
		return &s.Steps[i]
	}
	return nil
}

func normalize(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
