package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,StateVerifier

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycflow/internal/verification/gateway/statetoken"
	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/requestcontext"
)

// Service is the verification workflow as seen by HTTP.
type Service interface {
	StartSession(ctx context.Context, subject models.Subject, txCtx models.TransactionContext) (*models.Session, error)
	GetSession(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	StepDefinition(stepID string) (models.StepDefinition, bool)
	SubmitStep(ctx context.Context, sessionID id.SessionID, stepID string, values map[string]string) (*models.StepSnapshot, error)
	PollStep(ctx context.Context, sessionID id.SessionID, stepID string) (*models.StepSnapshot, error)
	CompleteReturn(ctx context.Context, sessionID id.SessionID, stepID, handle string) (*models.StepSnapshot, error)
	Previous(ctx context.Context, sessionID id.SessionID) (*models.StepSnapshot, error)
	Resume(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Abandon(ctx context.Context, sessionID id.SessionID) error
	GetOutcome(ctx context.Context, sessionID id.SessionID) (*models.VerificationOutcome, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Session, error)
}

// StateVerifier checks the state token carried back from a hosted flow.
type StateVerifier interface {
	Verify(state string) (*statetoken.Claims, error)
}

// Handler wires verification endpoints to the service.
type Handler struct {
	service    Service
	states     StateVerifier
	logger     *slog.Logger
	startLimit []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithStartLimit applies middleware to session creation only.
func WithStartLimit(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.startLimit = append(h.startLimit, mw...)
	}
}

func New(service Service, states StateVerifier, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		states:  states,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.With(h.startLimit...).Post("/sessions", h.HandleStartSession)
		r.Get("/sessions/{id}", h.HandleGetSession)
		r.Delete("/sessions/{id}", h.HandleAbandon)
		r.Post("/sessions/{id}/steps/{step}", h.HandleSubmitStep)
		r.Post("/sessions/{id}/steps/{step}/poll", h.HandlePollStep)
		r.Post("/sessions/{id}/previous", h.HandlePrevious)
		r.Post("/sessions/{id}/resume", h.HandleResume)
		r.Get("/sessions/{id}/outcome", h.HandleGetOutcome)
		r.Get("/subjects/{subject}/sessions", h.HandleListBySubject)
		r.Get("/verification/return", h.HandleReturn)
	})
}

// HandleStartSession handles POST /v1/sessions.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[StartSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sess, err := h.service.StartSession(ctx, req.ToSubject(), req.ToContext())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to start session",
			"request_id", requestID,
			"subject_id", req.Subject.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "session started",
		"request_id", requestID,
		"session_id", sess.ID.String(),
		"tier", string(sess.Tier),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, h.sessionResponse(sess))
}

// HandleGetSession handles GET /v1/sessions/{id}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.sessionResponse(sess))
}

// HandleSubmitStep handles POST /v1/sessions/{id}/steps/{step}.
func (h *Handler) HandleSubmitStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	stepID := chi.URLParam(r, "step")

	req, ok := httputil.DecodeAndPrepare[SubmitStepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snap, err := h.service.SubmitStep(ctx, sessionID, stepID, req.Values)
	if err != nil {
		h.logger.WarnContext(ctx, "step submission failed",
			"request_id", requestID,
			"session_id", sessionID.String(),
			"step_id", stepID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandlePollStep handles POST /v1/sessions/{id}/steps/{step}/poll.
func (h *Handler) HandlePollStep(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.PollStep(r.Context(), sessionID, chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleReturn handles GET /v1/verification/return?state=. The verifier
// redirects the subject here once a hosted check finishes.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := r.URL.Query().Get("state")
	if state == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "state is required"))
		return
	}
	claims, err := h.states.Verify(state)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected verification return",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.service.CompleteReturn(ctx, claims.ParsedSessionID(), claims.StepID, claims.Handle)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandlePrevious handles POST /v1/sessions/{id}/previous.
func (h *Handler) HandlePrevious(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Previous(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleResume handles POST /v1/sessions/{id}/resume.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	fresh, err := h.service.Resume(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "session resumed",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", fresh.ID.String(),
		"resumed_from", sessionID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, h.sessionResponse(fresh))
}

// HandleAbandon handles DELETE /v1/sessions/{id}.
func (h *Handler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.Abandon(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetOutcome handles GET /v1/sessions/{id}/outcome.
func (h *Handler) HandleGetOutcome(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.GetOutcome(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// HandleListBySubject handles GET /v1/subjects/{subject}/sessions.
func (h *Handler) HandleListBySubject(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessions, err := h.service.ListBySubject(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := SessionListResponse{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSummary(sess))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}
