package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycflow/pkg/domain-errors"
)

func TestStartSessionRequestValidate(t *testing.T) {
	t.Run("normalizes and parses", func(t *testing.T) {
		req := &StartSessionRequest{
			Subject:     SubjectRequest{ID: " acct-1 ", Email: " a@example.com "},
			Transaction: TransactionRequest{Amount: " 1000 ", Currency: " inr ", Counterparty: "third_party"},
		}
		require.NoError(t, req.Validate())

		ctx := req.ToContext()
		assert.Equal(t, "INR", ctx.Currency)
		assert.Equal(t, "1000", ctx.Amount.String())
		assert.True(t, ctx.IsThirdParty())
		assert.Equal(t, "acct-1", req.ToSubject().ID.String())
		assert.Equal(t, "a@example.com", req.ToSubject().Email)
	})

	t.Run("amount is required", func(t *testing.T) {
		req := &StartSessionRequest{Subject: SubjectRequest{ID: "acct-1"}}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeClassification))
	})

	t.Run("subject id with whitespace", func(t *testing.T) {
		req := &StartSessionRequest{Subject: SubjectRequest{ID: "acct 1"}, Transaction: TransactionRequest{Amount: "1"}}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeInvalidInput))
	})
}

func TestSubmitStepRequestValidate(t *testing.T) {
	t.Run("empty body submits no values", func(t *testing.T) {
		req := &SubmitStepRequest{}
		require.NoError(t, req.Validate())
		assert.NotNil(t, req.Values)
	})

	t.Run("oversized value", func(t *testing.T) {
		req := &SubmitStepRequest{Values: map[string]string{"legal_name": strings.Repeat("a", maxFieldValueBytes+1)}}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeBadRequest))
	})

	t.Run("too many values", func(t *testing.T) {
		values := make(map[string]string, maxSubmittedFields+1)
		for i := range maxSubmittedFields + 1 {
			values[strings.Repeat("f", i+1)] = "x"
		}
		req := &SubmitStepRequest{Values: values}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeBadRequest))
	})
}
