package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"kycflow/internal/verification/catalog"
	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/gateway/sandbox"
	"kycflow/internal/verification/models"
	"kycflow/internal/verification/planner"
	"kycflow/internal/verification/tier"
	"kycflow/internal/verification/validator"
	"kycflow/pkg/requestcontext"
)

var t0 = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

type harness struct {
	engine    *Engine
	documents *sandbox.Gateway
	biometric *sandbox.Gateway
	now       time.Time
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		documents: sandbox.NewDocument(sandbox.WithDefaultOutcome(sandbox.Approve(95, 0))),
		biometric: sandbox.NewBiometric(sandbox.WithDefaultOutcome(sandbox.Approve(90, 0))),
		now:       t0,
	}
	router := gateway.NewRouter()
	_ = router.Register(models.VerifierDocument, h.documents)
	_ = router.Register(models.VerifierBiometric, h.biometric)
	h.engine = newEngine(router, opts...)
	return h
}

func newEngine(gw gateway.Gateway, opts ...Option) *Engine {
	cat := catalog.Default()
	return New(tier.New(tier.DefaultPolicy()), planner.New(cat), cat, validator.New(), gw, opts...)
}

// ctx returns a request context pinned to the harness clock.
func (h *harness) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), h.now)
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func subject() models.Subject {
	return models.Subject{ID: "0x52908400098527886e0f7030069857d2e4169ee7"}
}

func txContext(amount int64, counterparty models.Counterparty) models.TransactionContext {
	return models.TransactionContext{
		Amount:       decimal.NewFromInt(amount),
		Currency:     "USD",
		Counterparty: counterparty,
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

func thirdPartyRisk() map[string]string {
	return map[string]string{
		"beneficiary_name":            "Ravi Kumar",
		"beneficiary_wallet":          "0x52908400098527886E0F7030069857D2E4169EE7",
		"beneficiary_country":         "IN",
		"relationship_to_beneficiary": "family",
		"sanctions_declaration":       "true",
	}
}

func identityDocument() map[string]string {
	return map[string]string{"document_type": "passport", "issuing_country": "IN"}
}

func biometricLiveness() map[string]string {
	return map[string]string{"biometric_consent": "true"}
}

func review() map[string]string {
	return map[string]string{"confirm_accuracy": "true", "consent_to_processing": "true"}
}

func without(values map[string]string, field string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if k != field {
			out[k] = v
		}
	}
	return out
}
