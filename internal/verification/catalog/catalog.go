// Package catalog holds the static, ordered registry of verification steps.
package catalog

import (
	"fmt"

	"kycflow/internal/verification/models"
)

// Step ids of the default catalog.
const (
	StepPersonalInfo      = "personal_info"
	StepAddress           = "address"
	StepFinancialInfo     = "financial_info"
	StepThirdPartyRisk    = "third_party_risk"
	StepIdentityDocument  = "identity_document"
	StepBiometricLiveness = "biometric_liveness"
	StepReview            = "review"
)

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	steps []models.StepDefinition
	index map[string]int
}

// New builds a catalog. Ids must be unique and the last step must be the
// review step, which applies to every tier.
func New(defs ...models.StepDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog needs at least one step")
	}
	c := &Catalog{
		steps: make([]models.StepDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("step without id")
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", d.ID)
		}
		if d.IsAsync() && d.Verifier == "" {
			return nil, fmt.Errorf("async step %q has no verifier", d.ID)
		}
		c.index[d.ID] = len(c.steps)
		c.steps = append(c.steps, d)
	}
	if last := c.steps[len(c.steps)-1]; last.ID != StepReview || last.Applicability != nil {
		return nil, fmt.Errorf("catalog must end with the %q step applying to every tier", StepReview)
	}
	return c, nil
}

// AllSteps returns the canonical ordering. The slice is a copy.
func (c *Catalog) AllSteps() []models.StepDefinition {
	out := make([]models.StepDefinition, len(c.steps))
	copy(out, c.steps)
	return out
}

func (c *Catalog) Lookup(stepID string) (models.StepDefinition, bool) {
	i, ok := c.index[stepID]
	if !ok {
		return models.StepDefinition{}, false
	}
	return c.steps[i], true
}

// Default returns the standard catalog.
func Default() *Catalog {
	c, err := New(
		personalInfo(),
		address(),
		financialInfo(),
		thirdPartyRisk(),
		identityDocument(),
		biometricLiveness(),
		review(),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Government id types accepted in personal info.
var GovernmentIDTypes = []string{"pan", "aadhaar", "passport", "ssn"}

func personalInfo() models.StepDefinition {
	return models.StepDefinition{
		ID:    StepPersonalInfo,
		Title: "Personal information",
		Mode:  models.ModeSync,
		Fields: []models.FieldSpec{
			{Name: "legal_name", Label: "Full legal name", Type: models.FieldText, Required: true, MaxLength: 120},
			{Name: "date_of_birth", Label: "Date of birth", Type: models.FieldDate, Required: true, MinAge: 18},
			{Name: "email", Label: "Email address", Type: models.FieldEmail, Required: true},
			{Name: "nationality", Label: "Nationality", Type: models.FieldCountry, Required: true},
			{Name: "phone", Label: "Phone number", Type: models.FieldPhone, Required: true, DependsOn: "nationality"},
			{Name: "government_id_type", Label: "ID type", Type: models.FieldEnum, Required: true, Options: GovernmentIDTypes},
			{Name: "government_id_number", Label: "ID number", Type: models.FieldGovernmentID, Required: true, DependsOn: "government_id_type"},
			{Name: "wallet_address", Label: "Wallet address", Type: models.FieldWalletAddress},
		},
	}
}

func address() models.StepDefinition {
	return models.StepDefinition{
		ID:    StepAddress,
		Title: "Residential address",
		Mode:  models.ModeSync,
		Fields: []models.FieldSpec{
			{Name: "address_line1", Label: "Address line 1", Type: models.FieldText, Required: true, MaxLength: 200},
			{Name: "address_line2", Label: "Address line 2", Type: models.FieldText, MaxLength: 200},
			{Name: "city", Label: "City", Type: models.FieldText, Required: true, MaxLength: 100},
			{Name: "state", Label: "State / region", Type: models.FieldText, MaxLength: 100},
			{Name: "country", Label: "Country", Type: models.FieldCountry, Required: true},
			{Name: "postal_code", Label: "Postal code", Type: models.FieldPostalCode, Required: true, DependsOn: "country"},
		},
	}
}

func financialInfo() models.StepDefinition {
	return models.StepDefinition{
		ID:            StepFinancialInfo,
		Title:         "Financial information",
		Mode:          models.ModeSync,
		Applicability: models.AtLeastTier(models.TierEnhanced),
		Fields: []models.FieldSpec{
			{Name: "source_of_funds", Label: "Source of funds", Type: models.FieldEnum, Required: true,
				Options: models.SourceOfFundsCodes},
			{Name: "purpose_of_transaction", Label: "Purpose of transaction", Type: models.FieldEnum, Required: true,
				Options: models.PurposeCodes},
			{Name: "occupation", Label: "Occupation", Type: models.FieldText, Required: true, MaxLength: 100},
			{Name: "annual_income", Label: "Annual income band", Type: models.FieldEnum,
				Options: []string{"under_10k", "10k_50k", "50k_100k", "over_100k"}},
			{Name: "payment_method", Label: "Payment method", Type: models.FieldMultiEnum, Required: true,
				Options: []string{"bank", "upi"}},
			{Name: "bank_account_number", Label: "Bank account number", Type: models.FieldBankAccount,
				RequiredIf: &models.Condition{Field: "payment_method", Contains: "bank"}},
			{Name: "ifsc", Label: "IFSC code", Type: models.FieldBankCode,
				RequiredIf: &models.Condition{Field: "payment_method", Contains: "bank"}},
			{Name: "upi_id", Label: "UPI id", Type: models.FieldUPI,
				RequiredIf: &models.Condition{Field: "payment_method", Contains: "upi"}},
		},
	}
}

func thirdPartyRisk() models.StepDefinition {
	return models.StepDefinition{
		ID:            StepThirdPartyRisk,
		Title:         "Third-party risk",
		Mode:          models.ModeSync,
		Applicability: models.OnlyTiers(models.TierEnhancedThirdParty),
		Fields: []models.FieldSpec{
			{Name: "beneficiary_name", Label: "Beneficiary name", Type: models.FieldText, Required: true, MaxLength: 120},
			{Name: "beneficiary_wallet", Label: "Beneficiary wallet", Type: models.FieldWalletAddress, Required: true},
			{Name: "beneficiary_country", Label: "Beneficiary country", Type: models.FieldCountry, Required: true},
			{Name: "relationship_to_beneficiary", Label: "Relationship to beneficiary", Type: models.FieldEnum, Required: true,
				Options: []string{"family", "friend", "business_partner", "employer", "other"}},
			{Name: "sanctions_declaration", Label: "Beneficiary is not sanctioned", Type: models.FieldBoolean, Required: true, MustBeTrue: true},
		},
	}
}

func identityDocument() models.StepDefinition {
	return models.StepDefinition{
		ID:            StepIdentityDocument,
		Title:         "Identity document check",
		Mode:          models.ModeAsync,
		Verifier:      models.VerifierDocument,
		Applicability: models.AtLeastTier(models.TierEnhanced),
		Fields: []models.FieldSpec{
			{Name: "document_type", Label: "Document type", Type: models.FieldEnum, Required: true,
				Options: []string{"passport", "national_id", "driving_licence"}},
			{Name: "issuing_country", Label: "Issuing country", Type: models.FieldCountry, Required: true},
		},
	}
}

func biometricLiveness() models.StepDefinition {
	return models.StepDefinition{
		ID:            StepBiometricLiveness,
		Title:         "Biometric liveness check",
		Mode:          models.ModeAsync,
		Verifier:      models.VerifierBiometric,
		Applicability: models.OnlyTiers(models.TierEnhancedThirdParty),
		Fields: []models.FieldSpec{
			{Name: "biometric_consent", Label: "I consent to a liveness check", Type: models.FieldBoolean, Required: true, MustBeTrue: true},
		},
	}
}

func review() models.StepDefinition {
	return models.StepDefinition{
		ID:    StepReview,
		Title: "Review and confirm",
		Mode:  models.ModeSync,
		Fields: []models.FieldSpec{
			{Name: "confirm_accuracy", Label: "The information provided is accurate", Type: models.FieldBoolean, Required: true, MustBeTrue: true},
			{Name: "consent_to_processing", Label: "I consent to data processing", Type: models.FieldBoolean, Required: true, MustBeTrue: true},
		},
	}
}
