package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/verification/models"
)

func TestDefault_Ordering(t *testing.T) {
	c := Default()

	var ids []string
	for _, s := range c.AllSteps() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{
		StepPersonalInfo,
		StepAddress,
		StepFinancialInfo,
		StepThirdPartyRisk,
		StepIdentityDocument,
		StepBiometricLiveness,
		StepReview,
	}, ids)
}

func TestDefault_Predicates(t *testing.T) {
	c := Default()
	tiers := []models.Tier{models.TierBasic, models.TierEnhanced, models.TierEnhancedThirdParty}

	// every predicate is total and the review step applies everywhere
	for _, step := range c.AllSteps() {
		for _, tier := range tiers {
			assert.NotPanics(t, func() { step.AppliesTo(tier) })
		}
	}
	review, ok := c.Lookup(StepReview)
	require.True(t, ok)
	for _, tier := range tiers {
		assert.True(t, review.AppliesTo(tier))
	}

	thirdParty, _ := c.Lookup(StepThirdPartyRisk)
	assert.False(t, thirdParty.AppliesTo(models.TierBasic))
	assert.False(t, thirdParty.AppliesTo(models.TierEnhanced))
	assert.True(t, thirdParty.AppliesTo(models.TierEnhancedThirdParty))
}

func TestDefault_AsyncStepsHaveVerifiers(t *testing.T) {
	for _, step := range Default().AllSteps() {
		if step.IsAsync() {
			assert.NotEmpty(t, step.Verifier, step.ID)
		}
	}
}

func TestAllSteps_ReturnsCopy(t *testing.T) {
	c := Default()
	steps := c.AllSteps()
	steps[0].ID = "tampered"

	assert.Equal(t, StepPersonalInfo, c.AllSteps()[0].ID)
}

func TestNew_RejectsInvalidCatalogs(t *testing.T) {
	reviewStep := models.StepDefinition{ID: StepReview, Mode: models.ModeSync}

	t.Run("empty", func(t *testing.T) {
		_, err := New()
		assert.Error(t, err)
	})
	t.Run("duplicate ids", func(t *testing.T) {
		_, err := New(models.StepDefinition{ID: "a"}, models.StepDefinition{ID: "a"}, reviewStep)
		assert.Error(t, err)
	})
	t.Run("missing review", func(t *testing.T) {
		_, err := New(models.StepDefinition{ID: "a"})
		assert.Error(t, err)
	})
	t.Run("review not applying everywhere", func(t *testing.T) {
		restricted := reviewStep
		restricted.Applicability = models.OnlyTiers(models.TierBasic)
		_, err := New(restricted)
		assert.Error(t, err)
	})
	t.Run("async without verifier", func(t *testing.T) {
		_, err := New(models.StepDefinition{ID: "doc", Mode: models.ModeAsync}, reviewStep)
		assert.Error(t, err)
	})
	t.Run("valid custom catalog", func(t *testing.T) {
		c, err := New(models.StepDefinition{ID: "a"}, reviewStep)
		require.NoError(t, err)
		assert.Len(t, c.AllSteps(), 2)
	})
}
