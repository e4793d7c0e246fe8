package models

import (
	"strings"

	dErrors "kycflow/pkg/domain-errors"
)

// Tier is the compliance tier assigned once per session.
type Tier string

const (
	TierBasic              Tier = "basic"
	TierEnhanced           Tier = "enhanced"
	TierEnhancedThirdParty Tier = "enhanced_third_party"
)

var tierRanks = map[Tier]int{
	TierBasic:              1,
	TierEnhanced:           2,
	TierEnhancedThirdParty: 3,
}

// Rank orders tiers by how much verification they demand. Unknown tiers rank 0.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// AtLeast reports whether t demands at least as much as other.
func (t Tier) AtLeast(other Tier) bool {
	return t.IsValid() && t.Rank() >= other.Rank()
}

func (t Tier) IsValid() bool {
	_, ok := tierRanks[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown tier")
	}
	return t, nil
}

// RiskCategory is the subject-level risk label derived from the session tier.
type RiskCategory string

const (
	RiskLow    RiskCategory = "low"
	RiskMedium RiskCategory = "medium"
	RiskHigh   RiskCategory = "high"
)

// RiskFor maps a tier to the subject risk category.
func RiskFor(t Tier) RiskCategory {
	switch t {
	case TierEnhancedThirdParty:
		return RiskHigh
	case TierEnhanced:
		return RiskMedium
	default:
		return RiskLow
	}
}
