package tier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/verification/models"
	dErrors "kycflow/pkg/domain-errors"
)

func txContext(amount string, counterparty models.Counterparty) models.TransactionContext {
	return models.TransactionContext{
		Amount:       decimal.RequireFromString(amount),
		Currency:     "USD",
		Counterparty: counterparty,
	}
}

func TestClassify(t *testing.T) {
	c := New(DefaultPolicy())

	cases := []struct {
		name         string
		amount       string
		counterparty models.Counterparty
		want         models.Tier
	}{
		{"small self transfer", "500", models.CounterpartySelf, models.TierBasic},
		{"small third party transfer stays basic", "500", models.CounterpartyThirdParty, models.TierBasic},
		{"zero amount", "0", models.CounterpartySelf, models.TierBasic},
		{"exactly at threshold is basic", "1000", models.CounterpartySelf, models.TierBasic},
		{"exactly at threshold third party is basic", "1000.00", models.CounterpartyThirdParty, models.TierBasic},
		{"one cent above threshold", "1000.01", models.CounterpartySelf, models.TierEnhanced},
		{"large self transfer", "5000", models.CounterpartySelf, models.TierEnhanced},
		{"large third party transfer", "5000", models.CounterpartyThirdParty, models.TierEnhancedThirdParty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(txContext(tc.amount, tc.counterparty))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	c := New(DefaultPolicy())
	ctx := txContext("1000", models.CounterpartyThirdParty)

	first, err := c.Classify(ctx)
	require.NoError(t, err)
	for range 50 {
		again, err := c.Classify(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestClassify_CurrencyThresholds(t *testing.T) {
	c := New(Policy{
		DefaultThreshold: decimal.NewFromInt(1000),
		CurrencyThresholds: map[string]decimal.Decimal{
			"INR": decimal.NewFromInt(50000),
		},
	})

	ctx := txContext("40000", models.CounterpartySelf)
	ctx.Currency = "INR"
	got, err := c.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TierBasic, got)

	ctx.Amount = decimal.NewFromInt(50001)
	got, err = c.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TierEnhanced, got)
}

func TestClassify_MalformedContext(t *testing.T) {
	c := New(DefaultPolicy())

	cases := map[string]func(*models.TransactionContext){
		"negative amount":      func(x *models.TransactionContext) { x.Amount = decimal.NewFromInt(-1) },
		"missing currency":     func(x *models.TransactionContext) { x.Currency = "" },
		"unknown currency":     func(x *models.TransactionContext) { x.Currency = "XYZ" },
		"unknown counterparty": func(x *models.TransactionContext) { x.Counterparty = "cousin" },
		"unknown purpose":      func(x *models.TransactionContext) { x.PurposeCode = "gambling" },
		"unknown source":       func(x *models.TransactionContext) { x.SourceOfFundsCode = "lottery" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := txContext("10", models.CounterpartySelf)
			mutate(&ctx)

			got, err := c.Classify(ctx)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeClassification))
		})
	}
}
