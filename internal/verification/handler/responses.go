package handler

import (
	"time"

	"kycflow/internal/verification/models"
)

// SessionResponse is the session view, with the current step's fields for
// rendering the next form.
type SessionResponse struct {
	ID             string                      `json:"id"`
	SubjectID      string                      `json:"subject_id"`
	Tier           models.Tier                 `json:"tier"`
	Status         models.SessionStatus        `json:"status"`
	CurrentIndex   int                         `json:"current_index"`
	CurrentStep    *CurrentStepResponse        `json:"current_step,omitempty"`
	Steps          []StepSummary               `json:"steps"`
	Outcome        *models.VerificationOutcome `json:"outcome,omitempty"`
	ResumedFrom    string                      `json:"resumed_from,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	LastActivityAt time.Time                   `json:"last_activity_at"`
}

type CurrentStepResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Mode        models.StepMode    `json:"mode"`
	Status      models.StepStatus  `json:"status"`
	Fields      []models.FieldSpec `json:"fields,omitempty"`
	Values      map[string]string  `json:"values,omitempty"`
	Errors      map[string]string  `json:"errors,omitempty"`
	RetryCount  int                `json:"retry_count"`
	RedirectURL string             `json:"redirect_url,omitempty"`
}

type StepSummary struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Status models.StepStatus `json:"status"`
}

type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionSummary struct {
	ID        string               `json:"id"`
	Tier      models.Tier          `json:"tier"`
	Status    models.SessionStatus `json:"status"`
	Decision  models.Decision      `json:"decision,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

func (h *Handler) sessionResponse(sess *models.Session) SessionResponse {
	resp := SessionResponse{
		ID:             sess.ID.String(),
		SubjectID:      sess.Subject.ID.String(),
		Tier:           sess.Tier,
		Status:         sess.Status,
		CurrentIndex:   sess.CurrentIndex,
		Steps:          make([]StepSummary, 0, len(sess.Steps)),
		Outcome:        sess.Outcome,
		CreatedAt:      sess.CreatedAt,
		LastActivityAt: sess.LastActivityAt,
	}
	if !sess.ResumedFrom.IsNil() {
		resp.ResumedFrom = sess.ResumedFrom.String()
	}
	for _, st := range sess.Steps {
		resp.Steps = append(resp.Steps, StepSummary{ID: st.StepID, Title: st.Title, Status: st.Status})
	}
	if cur := sess.Current(); cur != nil && sess.Status == models.SessionInProgress {
		step := &CurrentStepResponse{
			ID:          cur.StepID,
			Title:       cur.Title,
			Mode:        cur.Mode,
			Status:      cur.Status,
			Values:      cur.Values,
			Errors:      cur.Errors,
			RetryCount:  cur.RetryCount,
			RedirectURL: cur.RedirectURL,
		}
		if def, ok := h.service.StepDefinition(cur.StepID); ok {
			step.Fields = def.Fields
		}
		resp.CurrentStep = step
	}
	return resp
}

func toSummary(sess *models.Session) SessionSummary {
	s := SessionSummary{
		ID:        sess.ID.String(),
		Tier:      sess.Tier,
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt,
	}
	if sess.Outcome != nil {
		s.Decision = sess.Outcome.Decision
	}
	return s
}
