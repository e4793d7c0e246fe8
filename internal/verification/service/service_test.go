package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycflow/internal/verification/catalog"
	"kycflow/internal/verification/engine"
	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/gateway/sandbox"
	"kycflow/internal/verification/metrics"
	"kycflow/internal/verification/models"
	"kycflow/internal/verification/outcomes"
	"kycflow/internal/verification/planner"
	"kycflow/internal/verification/service/mocks"
	storememory "kycflow/internal/verification/store/memory"
	"kycflow/internal/verification/tier"
	"kycflow/internal/verification/validator"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/audit"
	"kycflow/pkg/platform/audit/publisher"
	auditmemory "kycflow/pkg/platform/audit/store/memory"
	"kycflow/pkg/platform/sentinel"
	"kycflow/pkg/requestcontext"
	"kycflow/pkg/testutil"
)

var t0 = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	now       time.Time
	documents *sandbox.Gateway
	sessions  *storememory.InMemorySessionStore
	auditLog  *auditmemory.InMemoryStore
	recorder  *outcomes.Recorder
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = t0
	s.documents = sandbox.NewDocument(sandbox.WithDefaultOutcome(sandbox.Approve(95, 0)))
	s.sessions = storememory.New()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.recorder = outcomes.NewRecorder()
	s.service = New(newEngine(s.documents), s.sessions, catalog.Default(),
		WithAuditPublisher(publisher.NewPublisher(s.auditLog)),
		WithOutcomePublisher(s.recorder),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
	)
}

func newEngine(documents *sandbox.Gateway) *engine.Engine {
	router := gateway.NewRouter()
	_ = router.Register(models.VerifierDocument, documents)
	_ = router.Register(models.VerifierBiometric, sandbox.NewBiometric(sandbox.WithDefaultOutcome(sandbox.Approve(90, 0))))
	cat := catalog.Default()
	return engine.New(tier.New(tier.DefaultPolicy()), planner.New(cat), cat, validator.New(), router)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) start(amount int64) *models.Session {
	sess, err := s.service.StartSession(s.ctx(), models.Subject{ID: "acct-7731"}, models.TransactionContext{
		Amount:       decimal.NewFromInt(amount),
		Currency:     "USD",
		Counterparty: models.CounterpartySelf,
	})
	s.Require().NoError(err)
	return sess
}

func (s *ServiceSuite) submit(sessionID id.SessionID, stepID string, values map[string]string) *models.StepSnapshot {
	snap, err := s.service.SubmitStep(s.ctx(), sessionID, stepID, values)
	s.Require().NoError(err)
	return snap
}

func (s *ServiceSuite) actions(subjectID id.SubjectID) []string {
	events, err := s.auditLog.ListBySubject(context.Background(), subjectID)
	s.Require().NoError(err)
	actions := make([]string, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	return actions
}

func (s *ServiceSuite) TestBasicSessionCompletes() {
	sess := s.start(250)

	s.submit(sess.ID, catalog.StepPersonalInfo, personalInfo())
	s.submit(sess.ID, catalog.StepAddress, address())
	snap := s.submit(sess.ID, catalog.StepReview, review())
	s.Equal(models.SessionCompleted, snap.SessionStatus)

	stored, err := s.service.GetSession(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionCompleted, stored.Status)
	s.Equal(int64(4), stored.Version)

	outcome, err := s.service.GetOutcome(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(models.DecisionVerified, outcome.Decision)

	s.Require().Len(s.recorder.Outcomes(), 1)
	s.Equal(sess.ID, s.recorder.Outcomes()[0].SessionID)

	s.Equal([]string{
		string(audit.EventSessionStarted),
		string(audit.EventStepCompleted),
		string(audit.EventStepCompleted),
		string(audit.EventSessionCompleted),
		string(audit.EventStepCompleted),
	}, s.actions("acct-7731"), "compliance events are written before the save, operations events after")
}

func (s *ServiceSuite) TestValidationErrorsAreSaved() {
	sess := s.start(250)

	values := personalInfo()
	delete(values, "email")
	snap := s.submit(sess.ID, catalog.StepPersonalInfo, values)
	s.Contains(snap.Errors, "email")

	stored, err := s.service.GetSession(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(0, stored.CurrentIndex)
	s.Contains(stored.Steps[0].Errors, "email")
}

func (s *ServiceSuite) TestPendingPollDoesNotSave() {
	s.documents.Enqueue(sandbox.Approve(80, 2))
	sess := s.advanceToDocuments()

	before, err := s.sessions.Load(context.Background(), sess.ID)
	s.Require().NoError(err)

	for range 2 {
		snap, err := s.service.PollStep(s.ctx(), sess.ID, catalog.StepIdentityDocument)
		s.Require().NoError(err)
		s.Equal(models.StepInProgress, snap.Status)
	}
	after, err := s.sessions.Load(context.Background(), sess.ID)
	s.Require().NoError(err)
	s.Equal(before.Version, after.Version)

	snap, err := s.service.PollStep(s.ctx(), sess.ID, catalog.StepIdentityDocument)
	s.Require().NoError(err)
	s.Equal(models.StepCompleted, snap.Status)
}

func (s *ServiceSuite) TestRepeatedRejectionRejectsSession() {
	s.documents.Enqueue(
		sandbox.Reject("document_forged", 0),
		sandbox.Reject("document_forged", 0),
		sandbox.Reject("document_forged", 0),
		sandbox.Reject("document_forged", 0),
	)
	sess := s.advanceToDocuments()

	var snap *models.StepSnapshot
	for attempt := range 4 {
		if attempt > 0 {
			s.submit(sess.ID, catalog.StepIdentityDocument, identityDocument())
		}
		var err error
		snap, err = s.service.PollStep(s.ctx(), sess.ID, catalog.StepIdentityDocument)
		s.Require().NoError(err)
	}

	s.Equal(models.StepFailed, snap.Status)
	s.Equal(models.SessionRejected, snap.SessionStatus)
	s.Require().Len(s.recorder.Outcomes(), 1)
	s.Equal(models.DecisionRejected, s.recorder.Outcomes()[0].Decision)

	actions := s.actions("acct-7731")
	s.Contains(actions, string(audit.EventStepRetryOffered))
	s.Contains(actions, string(audit.EventStepFailed))
	s.Contains(actions, string(audit.EventSessionRejected))
}

func (s *ServiceSuite) TestCompleteReturn() {
	sess := s.advanceToDocuments()
	stored, err := s.sessions.Load(context.Background(), sess.ID)
	s.Require().NoError(err)
	handle := stored.Current().Handle
	s.Require().NotEmpty(handle)

	s.Run("stale handle is refused", func() {
		_, err := s.service.CompleteReturn(s.ctx(), sess.ID, catalog.StepIdentityDocument, "chk-stale")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("current handle polls the verifier", func() {
		snap, err := s.service.CompleteReturn(s.ctx(), sess.ID, catalog.StepIdentityDocument, handle)
		s.Require().NoError(err)
		s.Equal(models.StepCompleted, snap.Status)
	})
}

func (s *ServiceSuite) TestNotFound() {
	_, err := s.service.SubmitStep(s.ctx(), id.NewSessionID(), catalog.StepPersonalInfo, personalInfo())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.GetSession(s.ctx(), id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestOutcomeBeforeCompletion() {
	sess := s.start(250)
	_, err := s.service.GetOutcome(s.ctx(), sess.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestIdleSessionExpiresAndResumes() {
	sess := s.start(250)
	s.submit(sess.ID, catalog.StepPersonalInfo, personalInfo())

	s.now = s.now.Add(31 * time.Minute)
	_, err := s.service.SubmitStep(s.ctx(), sess.ID, catalog.StepAddress, address())
	s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))

	stored, err := s.sessions.Load(context.Background(), sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionExpired, stored.Status, "expiry is persisted even though the call failed")
	s.Contains(s.actions("acct-7731"), string(audit.EventSessionExpired))

	fresh, err := s.service.Resume(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.NotEqual(sess.ID, fresh.ID)
	s.Equal(sess.ID, fresh.ResumedFrom)
	s.Equal(catalog.StepAddress, fresh.Current().StepID)

	_, err = s.sessions.Load(context.Background(), fresh.ID)
	s.Require().NoError(err)

	list, err := s.service.ListBySubject(s.ctx(), "acct-7731")
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *ServiceSuite) TestResumeRequiresExpiredSession() {
	sess := s.start(250)
	_, err := s.service.Resume(s.ctx(), sess.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestAbandon() {
	sess := s.start(250)
	s.Require().NoError(s.service.Abandon(s.ctx(), sess.ID))

	stored, err := s.service.GetSession(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionAbandoned, stored.Status)

	err = s.service.Abandon(s.ctx(), sess.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Empty(s.recorder.Outcomes())
}

func (s *ServiceSuite) TestPrevious() {
	sess := s.start(250)
	s.submit(sess.ID, catalog.StepPersonalInfo, personalInfo())

	snap, err := s.service.Previous(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(catalog.StepPersonalInfo, snap.CurrentStepID)
	s.Contains(s.actions("acct-7731"), string(audit.EventStepRewound))
}

func (s *ServiceSuite) TestSweeper() {
	idle := s.start(250)
	s.now = s.now.Add(20 * time.Minute)
	active := s.start(250)
	s.now = s.now.Add(15 * time.Minute)

	sweeper := NewSweeper(s.service, time.Minute, 1, nil)
	n, err := sweeper.SweepOnce(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, n)

	stored, err := s.sessions.Load(context.Background(), idle.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionExpired, stored.Status)

	stored, err = s.sessions.Load(context.Background(), active.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionInProgress, stored.Status)
}

func (s *ServiceSuite) advanceToDocuments() *models.Session {
	sess := s.start(5000)
	s.submit(sess.ID, catalog.StepPersonalInfo, personalInfo())
	s.submit(sess.ID, catalog.StepAddress, address())
	s.submit(sess.ID, catalog.StepFinancialInfo, financialInfo())
	snap := s.submit(sess.ID, catalog.StepIdentityDocument, identityDocument())
	s.Require().Equal(models.StepInProgress, snap.Status)
	return sess
}

func TestMutateConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	svc := New(newEngine(sandbox.NewDocument()), store, catalog.Default())

	ctx := requestcontext.WithTime(context.Background(), t0)
	sess, err := svc.engine.Start(ctx, models.Subject{ID: "acct-1"}, models.TransactionContext{
		Amount: decimal.NewFromInt(10), Currency: "USD", Counterparty: models.CounterpartySelf,
	})
	if err != nil {
		t.Fatal(err)
	}

	store.EXPECT().Load(gomock.Any(), sess.ID).Return(sess.Clone(), nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

	_, err = svc.SubmitStep(ctx, sess.ID, catalog.StepPersonalInfo, personalInfo())
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSaveConflictReleasesUnsavedCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	documents := sandbox.NewDocument()
	svc := New(newEngine(documents), store, catalog.Default())
	ctx := requestcontext.WithTime(context.Background(), t0)

	sess, err := svc.engine.Start(ctx, models.Subject{ID: "acct-3"}, models.TransactionContext{
		Amount: decimal.NewFromInt(5000), Currency: "USD", Counterparty: models.CounterpartySelf,
	})
	require.NoError(t, err)
	for _, step := range []struct {
		id     string
		values map[string]string
	}{
		{catalog.StepPersonalInfo, personalInfo()},
		{catalog.StepAddress, address()},
		{catalog.StepFinancialInfo, financialInfo()},
	} {
		_, err := svc.engine.Submit(ctx, sess, step.id, step.values)
		require.NoError(t, err)
	}
	require.Equal(t, catalog.StepIdentityDocument, sess.Current().StepID)

	var handle string
	store.EXPECT().Load(gomock.Any(), sess.ID).Return(sess.Clone(), nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, lost *models.Session) error {
		handle = lost.Current().Handle
		return sentinel.ErrConflict
	})

	_, err = svc.SubmitStep(ctx, sess.ID, catalog.StepIdentityDocument, identityDocument())
	require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	require.NotEmpty(t, handle, "the check was initiated before the save")
	assert.Len(t, documents.Initiated(), 1)
	assert.True(t, documents.Cancelled(handle), "a check nobody can poll must be released")
}

func TestComplianceAuditFailureAbortsTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	auditPublisher := mocks.NewMockAuditPublisher(ctrl)
	sessions := storememory.New()
	svc := New(newEngine(sandbox.NewDocument()), sessions, catalog.Default(),
		WithAuditPublisher(auditPublisher),
		WithOutcomePublisher(mocks.NewMockOutcomePublisher(ctrl)),
	)
	ctx := requestcontext.WithTime(context.Background(), t0)

	auditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		if e.Action == string(audit.EventSessionAbandoned) {
			return errors.New("audit store down")
		}
		return nil
	}).AnyTimes()

	var sess *models.Session
	testutil.Given(t, "an active session", func(t *testing.T) {
		var err error
		sess, err = svc.StartSession(ctx, models.Subject{ID: "acct-2"}, models.TransactionContext{
			Amount: decimal.NewFromInt(10), Currency: "USD", Counterparty: models.CounterpartySelf,
		})
		require.NoError(t, err)
	})

	testutil.When(t, "the compliance audit write fails during abandon", func(t *testing.T) {
		err := svc.Abandon(ctx, sess.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	testutil.Then(t, "the session is not abandoned", func(t *testing.T) {
		stored, err := sessions.Load(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionInProgress, stored.Status)
	})
}

func TestOutcomePublishFailureKeepsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	outcomePublisher := mocks.NewMockOutcomePublisher(ctrl)
	sessions := storememory.New()
	svc := New(newEngine(sandbox.NewDocument()), sessions, catalog.Default(), WithOutcomePublisher(outcomePublisher))
	ctx := requestcontext.WithTime(context.Background(), t0)

	outcomePublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable")).Times(1)

	sess, err := svc.StartSession(ctx, models.Subject{ID: "acct-3"}, models.TransactionContext{
		Amount: decimal.NewFromInt(10), Currency: "USD", Counterparty: models.CounterpartySelf,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range []struct {
		id     string
		values map[string]string
	}{
		{catalog.StepPersonalInfo, personalInfo()},
		{catalog.StepAddress, address()},
		{catalog.StepReview, review()},
	} {
		if _, err := svc.SubmitStep(ctx, sess.ID, step.id, step.values); err != nil {
			t.Fatalf("submit %s: %v", step.id, err)
		}
	}

	outcome, err := svc.GetOutcome(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Decision != models.DecisionVerified {
		t.Fatalf("unexpected decision %s", outcome.Decision)
	}
}

func personalInfo() map[string]string {
	return map[string]string{
		"legal_name":           "Asha Rao",
		"date_of_birth":        "1990-04-12",
		"email":                "asha@example.com",
		"nationality":          "IN",
		"phone":                "+91 98765 43210",
		"government_id_type":   "pan",
		"government_id_number": "ABCDE1234F",
	}
}

func address() map[string]string {
	return map[string]string{
		"address_line1": "12 MG Road",
		"city":          "Bengaluru",
		"country":       "IN",
		"postal_code":   "560001",
	}
}

func financialInfo() map[string]string {
	return map[string]string{
		"source_of_funds":        "salary",
		"purpose_of_transaction": "investment",
		"occupation":             "engineer",
		"payment_method":         "bank",
		"bank_account_number":    "123456789012",
		"ifsc":                   "HDFC0001234",
	}
}

func identityDocument() map[string]string {
	return map[string]string{"document_type": "passport", "issuing_country": "IN"}
}

func review() map[string]string {
	return map[string]string{"confirm_accuracy": "true", "consent_to_processing": "true"}
}
