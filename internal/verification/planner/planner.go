// Package planner derives the ordered step plan for a tier.
package planner

import (
	"fmt"

	"kycflow/internal/verification/catalog"
	"kycflow/internal/verification/models"
	dErrors "kycflow/pkg/domain-errors"
)

// StepSource supplies the canonical step ordering.
type StepSource interface {
	AllSteps() []models.StepDefinition
}

type Planner struct {
	source StepSource
}

func New(source StepSource) *Planner {
	return &Planner{source: source}
}

// Plan filters the catalog by AppliesTo and keeps catalog order. The result is
// non-empty and ends with the review step, or an error is returned.
func (p *Planner) Plan(tier models.Tier) ([]models.StepDefinition, error) {
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown tier %q", tier))
	}

	var plan []models.StepDefinition
	for _, step := range p.source.AllSteps() {
		if step.AppliesTo(tier) {
			plan = append(plan, step)
		}
	}

	if len(plan) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "plan is empty for tier "+string(tier))
	}
	if plan[len(plan)-1].ID != catalog.StepReview {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "plan does not end with review for tier "+string(tier))
	}
	return plan, nil
}
