// Package tier assigns the compliance tier for a transaction context.
package tier

import (
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"kycflow/internal/verification/models"
	dErrors "kycflow/pkg/domain-errors"
)

// Policy holds the amount thresholds. CurrencyThresholds override
// DefaultThreshold per ISO-4217 code.
type Policy struct {
	DefaultThreshold   decimal.Decimal
	CurrencyThresholds map[string]decimal.Decimal
}

// DefaultPolicy uses a threshold of 1000 in any currency.
func DefaultPolicy() Policy {
	return Policy{DefaultThreshold: decimal.NewFromInt(1000)}
}

// Classifier is safe for concurrent use.
type Classifier struct {
	policy   Policy
	validate *validator.Validate
}

func New(policy Policy) *Classifier {
	return &Classifier{policy: policy, validate: validator.New()}
}

// Threshold returns the amount at or below which the context is basic.
func (c *Classifier) Threshold(currency string) decimal.Decimal {
	if t, ok := c.policy.CurrencyThresholds[strings.ToUpper(currency)]; ok {
		return t
	}
	return c.policy.DefaultThreshold
}

// Classify is pure and deterministic. amount <= threshold is basic.
func (c *Classifier) Classify(ctx models.TransactionContext) (models.Tier, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}

	if ctx.Amount.LessThanOrEqual(c.Threshold(ctx.Currency)) {
		return models.TierBasic, nil
	}
	if ctx.IsThirdParty() {
		return models.TierEnhancedThirdParty, nil
	}
	return models.TierEnhanced, nil
}

func (c *Classifier) check(ctx models.TransactionContext) error {
	if ctx.Amount.IsNegative() {
		return classificationError("amount must not be negative")
	}
	if err := c.validate.Var(ctx.Currency, "required,iso4217"); err != nil {
		return classificationError("currency must be an ISO-4217 code")
	}
	if !ctx.Counterparty.IsValid() {
		return classificationError("counterparty must be self or third_party")
	}
	// empty codes are collected again by the financial step when the tier needs them
	if ctx.PurposeCode != "" && !slices.Contains(models.PurposeCodes, ctx.PurposeCode) {
		return classificationError("unknown purpose code")
	}
	if ctx.SourceOfFundsCode != "" && !slices.Contains(models.SourceOfFundsCodes, ctx.SourceOfFundsCode) {
		return classificationError("unknown source of funds code")
	}
	return nil
}

func classificationError(msg string) error {
	return dErrors.New(dErrors.CodeClassification, msg)
}
