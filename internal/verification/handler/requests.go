package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
)

const (
	maxSubmittedFields = 64
	maxFieldValueBytes = 4096
)

// StartSessionRequest is the body of POST /v1/sessions.
type StartSessionRequest struct {
	Subject     SubjectRequest     `json:"subject"`
	Transaction TransactionRequest `json:"transaction"`

	parsedSubjectID id.SubjectID
	parsedAmount    decimal.Decimal
}

type SubjectRequest struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type TransactionRequest struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Counterparty      string `json:"counterparty"`
	PurposeCode       string `json:"purpose_code,omitempty"`
	SourceOfFundsCode string `json:"source_of_funds_code,omitempty"`
}

// Validate parses ids and the amount. Tier rules on the parsed context are
// left to the classifier.
func (r *StartSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	subjectID, err := id.ParseSubjectID(strings.TrimSpace(r.Subject.ID))
	if err != nil {
		return err
	}
	r.parsedSubjectID = subjectID
	r.Subject.Email = strings.TrimSpace(r.Subject.Email)
	r.Subject.WalletAddress = strings.TrimSpace(r.Subject.WalletAddress)

	r.Transaction.Amount = strings.TrimSpace(r.Transaction.Amount)
	if r.Transaction.Amount == "" {
		return dErrors.New(dErrors.CodeClassification, "transaction.amount is required")
	}
	amount, err := decimal.NewFromString(r.Transaction.Amount)
	if err != nil {
		return dErrors.New(dErrors.CodeClassification, "transaction.amount is not a number")
	}
	r.parsedAmount = amount

	r.Transaction.Currency = strings.ToUpper(strings.TrimSpace(r.Transaction.Currency))
	r.Transaction.Counterparty = strings.TrimSpace(r.Transaction.Counterparty)
	r.Transaction.PurposeCode = strings.TrimSpace(r.Transaction.PurposeCode)
	r.Transaction.SourceOfFundsCode = strings.TrimSpace(r.Transaction.SourceOfFundsCode)
	return nil
}

func (r *StartSessionRequest) ToSubject() models.Subject {
	return models.Subject{
		ID:            r.parsedSubjectID,
		Email:         r.Subject.Email,
		WalletAddress: r.Subject.WalletAddress,
	}
}

func (r *StartSessionRequest) ToContext() models.TransactionContext {
	return models.TransactionContext{
		Amount:            r.parsedAmount,
		Currency:          r.Transaction.Currency,
		Counterparty:      models.Counterparty(r.Transaction.Counterparty),
		PurposeCode:       r.Transaction.PurposeCode,
		SourceOfFundsCode: r.Transaction.SourceOfFundsCode,
	}
}

// SubmitStepRequest is the body of POST /v1/sessions/{id}/steps/{step}.
type SubmitStepRequest struct {
	Values map[string]string `json:"values"`
}

// Validate bounds the payload size. Field rules run in the engine so errors
// come back in the step snapshot.
func (r *SubmitStepRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Values) > maxSubmittedFields {
		return dErrors.Newf(dErrors.CodeBadRequest, "at most %d values may be submitted", maxSubmittedFields)
	}
	for name, value := range r.Values {
		if len(value) > maxFieldValueBytes {
			return dErrors.Newf(dErrors.CodeBadRequest, "value for %s is too long", name)
		}
	}
	if r.Values == nil {
		r.Values = map[string]string{}
	}
	return nil
}
