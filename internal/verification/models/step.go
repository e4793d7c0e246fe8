package models

import (
	"maps"
	"time"
)

// FieldType selects the validation rule set for a field.
type FieldType string

const (
	FieldText          FieldType = "text"
	FieldEmail         FieldType = "email"
	FieldPhone         FieldType = "phone"
	FieldDate          FieldType = "date"
	FieldEnum          FieldType = "enum"
	FieldMultiEnum     FieldType = "multi_enum"
	FieldBoolean       FieldType = "boolean"
	FieldCountry       FieldType = "country"
	FieldPostalCode    FieldType = "postal_code"
	FieldGovernmentID  FieldType = "government_id"
	FieldBankAccount   FieldType = "bank_account"
	FieldBankCode      FieldType = "bank_code"
	FieldUPI           FieldType = "upi"
	FieldWalletAddress FieldType = "wallet_address"
)

// Condition makes a field conditionally present: the field is required when
// Field's value (a comma-separated list) contains Contains, and must be empty
// otherwise.
type Condition struct {
	Field    string `json:"field"`
	Contains string `json:"contains"`
}

// FieldSpec declares one input of a step.
type FieldSpec struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Type       FieldType  `json:"type"`
	Required   bool       `json:"required"`
	Pattern    string     `json:"pattern,omitempty"`
	MaxLength  int        `json:"max_length,omitempty"`
	Options    []string   `json:"options,omitempty"`
	MustBeTrue bool       `json:"must_be_true,omitempty"`
	RequiredIf *Condition `json:"required_if,omitempty"`
	// DependsOn names the sibling field that selects the format: the country
	// for phones and postal codes, the id type for government ids.
	DependsOn string `json:"depends_on,omitempty"`
	MinAge    int    `json:"min_age,omitempty"`
}

// StepMode says whether a step completes locally or through a gateway.
type StepMode string

const (
	ModeSync  StepMode = "sync"
	ModeAsync StepMode = "async"
)

// VerifierKind routes async steps to a gateway backend.
type VerifierKind string

const (
	VerifierDocument  VerifierKind = "document"
	VerifierBiometric VerifierKind = "biometric"
)

// StepDefinition is a catalog entry. Applicability is evaluated through AppliesTo.
type StepDefinition struct {
	ID            string
	Title         string
	Fields        []FieldSpec
	Mode          StepMode
	Verifier      VerifierKind
	Applicability func(Tier) bool
}

// AppliesTo reports whether the step is part of the plan for t. A nil
// predicate applies to every tier.
func (d StepDefinition) AppliesTo(t Tier) bool {
	if d.Applicability == nil {
		return true
	}
	return d.Applicability(t)
}

func (d StepDefinition) IsAsync() bool {
	return d.Mode == ModeAsync
}

// Field looks up a field spec by name.
func (d StepDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// AllTiers applies to every tier.
func AllTiers() func(Tier) bool {
	return func(Tier) bool { return true }
}

// AtLeastTier applies to min and every tier ranked above it.
func AtLeastTier(min Tier) func(Tier) bool {
	return func(t Tier) bool { return t.AtLeast(min) }
}

// OnlyTiers applies to the listed tiers.
func OnlyTiers(tiers ...Tier) func(Tier) bool {
	return func(t Tier) bool {
		for _, allowed := range tiers {
			if t == allowed {
				return true
			}
		}
		return false
	}
}

// StepStatus is the lifecycle of one step instance.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// VerificationErrorKey carries gateway failures in the error map.
const VerificationErrorKey = "_verification"

// StepInstance is a step bound to a session.
type StepInstance struct {
	StepID        string            `json:"step_id"`
	Title         string            `json:"title"`
	Mode          StepMode          `json:"mode"`
	Verifier      VerifierKind      `json:"verifier,omitempty"`
	Status        StepStatus        `json:"status"`
	Values        map[string]string `json:"values,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	RetryCount    int               `json:"retry_count"`
	Handle        string            `json:"handle,omitempty"`
	RedirectURL   string            `json:"redirect_url,omitempty"`
	Confidence    int               `json:"confidence,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	StartedAt     time.Time         `json:"started_at,omitzero"`
	InitiatedAt   time.Time         `json:"initiated_at,omitzero"`
	CompletedAt   time.Time         `json:"completed_at,omitzero"`
}

// NewStepInstance binds a definition as a pending instance.
func NewStepInstance(def StepDefinition) StepInstance {
	return StepInstance{
		StepID:   def.ID,
		Title:    def.Title,
		Mode:     def.Mode,
		Verifier: def.Verifier,
		Status:   StepPending,
	}
}

func (s StepInstance) IsAsync() bool {
	return s.Mode == ModeAsync
}

// AwaitingVerification reports whether an external check is in flight.
func (s StepInstance) AwaitingVerification() bool {
	return s.IsAsync() && s.Status == StepInProgress && s.Handle != ""
}

// Reopen discards submitted data and puts the step back in progress.
func (s *StepInstance) Reopen(now time.Time) {
	s.Status = StepInProgress
	s.Values = nil
	s.Errors = nil
	s.Handle = ""
	s.RedirectURL = ""
	s.Confidence = 0
	s.FailureReason = ""
	s.StartedAt = now
	s.InitiatedAt = time.Time{}
	s.CompletedAt = time.Time{}
}

// Revisit puts a completed step back in progress with its values kept for
// editing. Verification results are dropped and must be earned again.
func (s *StepInstance) Revisit(now time.Time) {
	values := s.Values
	s.Reopen(now)
	s.Values = values
}

// Reset returns the step to pending and clears its data, keeping RetryCount.
func (s *StepInstance) Reset() {
	s.Reopen(time.Time{})
	s.Status = StepPending
}

func (s StepInstance) clone() StepInstance {
	s.Values = maps.Clone(s.Values)
	s.Errors = maps.Clone(s.Errors)
	return s
}
