//go:generate mockgen -source=gateway.go -destination=mocks/mocks.go -package=mocks Gateway,Canceler

// Package gateway abstracts asynchronous third-party verification (document
// authentication, biometric liveness). Calls never block on the verdict:
// Initiate returns a handle immediately and callers poll PollStatus.
package gateway

import (
	"context"
	"time"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
)

// InitiateRequest starts one external check for a session step.
type InitiateRequest struct {
	SessionID  id.SessionID
	StepID     string
	Kind       models.VerifierKind
	SubjectRef id.SubjectID
	// Attributes are the step's submitted values, forwarded to the verifier.
	Attributes map[string]string
}

// Handle identifies an in-flight external check.
type Handle struct {
	ID          string              `json:"id"`
	Kind        models.VerifierKind `json:"kind"`
	Provider    string              `json:"provider"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	IssuedAt    time.Time           `json:"issued_at"`
}

// State is the verifier-reported state of a check.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is the result of one poll. Confidence (0-100) is set when completed;
// Reason is set when failed.
type Status struct {
	State      State     `json:"state"`
	Confidence int       `json:"confidence,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Gateway is the capability set every verifier backend provides.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Handle, error)
	PollStatus(ctx context.Context, handle Handle) (*Status, error)
}

// Canceler is implemented by backends that accept cancellation of an
// in-flight check. Callers treat cancellation as best effort.
type Canceler interface {
	Cancel(ctx context.Context, handle Handle) error
}

// ClampConfidence bounds a vendor score to 0-100.
func ClampConfidence(c int) int {
	return max(0, min(100, c))
}
