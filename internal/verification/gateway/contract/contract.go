// Package contract is a reusable behavioral test suite every gateway
// backend must pass.
package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
)

// Suite drives a backend through the gateway contract. NewApproving must
// return a gateway whose next check completes after at most MaxPendingPolls
// polls; NewRejecting one whose next check fails.
type Suite struct {
	Kind            models.VerifierKind
	NewApproving    func(t *testing.T) gateway.Gateway
	NewRejecting    func(t *testing.T) gateway.Gateway
	MaxPendingPolls int
}

func (s Suite) request() gateway.InitiateRequest {
	return gateway.InitiateRequest{
		SessionID:  id.NewSessionID(),
		StepID:     "contract_step",
		Kind:       s.Kind,
		SubjectRef: "contract-subject",
		Attributes: map[string]string{"document_type": "passport"},
	}
}

// Run executes the suite.
func (s Suite) Run(t *testing.T) {
	t.Run("initiate returns a usable handle", func(t *testing.T) {
		g := s.NewApproving(t)
		h, err := g.Initiate(context.Background(), s.request())
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.NotEmpty(t, h.ID)
		assert.Equal(t, s.Kind, h.Kind)
		assert.NotEmpty(t, h.Provider)
	})

	t.Run("completed status carries a bounded confidence", func(t *testing.T) {
		g := s.NewApproving(t)
		st := s.pollUntilTerminal(t, g)
		assert.Equal(t, gateway.StateCompleted, st.State)
		assert.GreaterOrEqual(t, st.Confidence, 0)
		assert.LessOrEqual(t, st.Confidence, 100)
		assert.False(t, st.CheckedAt.IsZero())
	})

	t.Run("failed status carries a reason", func(t *testing.T) {
		g := s.NewRejecting(t)
		st := s.pollUntilTerminal(t, g)
		assert.Equal(t, gateway.StateFailed, st.State)
		assert.NotEmpty(t, st.Reason)
	})

	t.Run("unknown handle is a non-retryable error", func(t *testing.T) {
		g := s.NewApproving(t)
		_, err := g.PollStatus(context.Background(), gateway.Handle{ID: "does-not-exist", Kind: s.Kind})
		require.Error(t, err)
		assert.False(t, gateway.IsRetryable(err))
	})

	t.Run("cancel is accepted when supported", func(t *testing.T) {
		g := s.NewApproving(t)
		c, ok := g.(gateway.Canceler)
		if !ok {
			t.Skip("backend does not support cancellation")
		}
		h, err := g.Initiate(context.Background(), s.request())
		require.NoError(t, err)
		assert.NoError(t, c.Cancel(context.Background(), *h))
	})
}

func (s Suite) pollUntilTerminal(t *testing.T, g gateway.Gateway) *gateway.Status {
	t.Helper()
	h, err := g.Initiate(context.Background(), s.request())
	require.NoError(t, err)

	for range s.MaxPendingPolls + 1 {
		st, err := g.PollStatus(context.Background(), *h)
		require.NoError(t, err)
		if st.State.IsTerminal() {
			return st
		}
	}
	t.Fatalf("check did not reach a verdict within %d polls", s.MaxPendingPolls+1)
	return nil
}

// ErrorCase asserts a backend maps a failure into the expected taxonomy.
type ErrorCase struct {
	Name          string
	Gateway       gateway.Gateway
	Kind          models.VerifierKind
	ExpectedError gateway.ErrorCategory
	ExpectedRetry bool
}

// Run executes an error contract test against Initiate.
func (c ErrorCase) Run(t *testing.T) {
	t.Run(c.Name, func(t *testing.T) {
		_, err := c.Gateway.Initiate(context.Background(), gateway.InitiateRequest{
			SessionID: id.NewSessionID(),
			StepID:    "contract_step",
			Kind:      c.Kind,
		})
		require.Error(t, err)
		assert.Equal(t, c.ExpectedError, gateway.GetCategory(err))
		assert.Equal(t, c.ExpectedRetry, gateway.IsRetryable(err))
	})
}
