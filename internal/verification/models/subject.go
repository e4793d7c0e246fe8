package models

import (
	"maps"
	"strings"

	id "kycflow/pkg/domain"
)

// Subject is the party being verified. It is only changed by Apply and Clear
// as steps complete or are reopened.
type Subject struct {
	ID            id.SubjectID      `json:"id"`
	LegalName     string            `json:"legal_name,omitempty"`
	DateOfBirth   string            `json:"date_of_birth,omitempty"`
	Email         string            `json:"email,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	Nationality   string            `json:"nationality,omitempty"`
	WalletAddress string            `json:"wallet_address,omitempty"`
	Address       Address           `json:"address"`
	GovernmentID  GovernmentID      `json:"government_id"`
	Banking       Banking           `json:"banking"`
	RiskCategory  RiskCategory      `json:"risk_category,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type GovernmentID struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

type Banking struct {
	PaymentMethod string `json:"payment_method,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	UPI           string `json:"upi,omitempty"`
}

var subjectSetters = map[string]func(*Subject, string){
	"legal_name":           func(s *Subject, v string) { s.LegalName = v },
	"date_of_birth":        func(s *Subject, v string) { s.DateOfBirth = v },
	"email":                func(s *Subject, v string) { s.Email = strings.ToLower(v) },
	"phone":                func(s *Subject, v string) { s.Phone = v },
	"nationality":          func(s *Subject, v string) { s.Nationality = strings.ToUpper(v) },
	"government_id_type":   func(s *Subject, v string) { s.GovernmentID.Type = v },
	"government_id_number": func(s *Subject, v string) { s.GovernmentID.Number = v },
	"address_line1":        func(s *Subject, v string) { s.Address.Line1 = v },
	"address_line2":        func(s *Subject, v string) { s.Address.Line2 = v },
	"city":                 func(s *Subject, v string) { s.Address.City = v },
	"state":                func(s *Subject, v string) { s.Address.State = v },
	"postal_code":          func(s *Subject, v string) { s.Address.PostalCode = v },
	"country":              func(s *Subject, v string) { s.Address.Country = strings.ToUpper(v) },
	"payment_method":       func(s *Subject, v string) { s.Banking.PaymentMethod = v },
	"bank_account_number":  func(s *Subject, v string) { s.Banking.AccountNumber = v },
	"ifsc":                 func(s *Subject, v string) { s.Banking.IFSC = v },
	"upi_id":               func(s *Subject, v string) { s.Banking.UPI = v },
	"wallet_address":       func(s *Subject, v string) { s.WalletAddress = v },
}

// seededFields may be supplied when a session starts, so a step that leaves
// them blank does not erase them.
var seededFields = map[string]bool{
	"email":          true,
	"wallet_address": true,
}

// Apply replaces the data a step owns with a completed submission. Every
// field the step declares is cleared first, so a resubmitted step never
// leaves values from an earlier answer behind. Fields without a structured
// slot land in Attributes as "<step>.<field>".
func (s *Subject) Apply(step StepDefinition, values map[string]string) {
	s.clear(step, values)
	for name, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if set, ok := subjectSetters[name]; ok {
			set(s, value)
			continue
		}
		if s.Attributes == nil {
			s.Attributes = make(map[string]string)
		}
		s.Attributes[step.ID+"."+name] = value
	}
}

// Clear drops the data a step owns, for steps that are no longer completed.
func (s *Subject) Clear(step StepDefinition) {
	s.clear(step, nil)
}

func (s *Subject) clear(step StepDefinition, values map[string]string) {
	for _, f := range step.Fields {
		if seededFields[f.Name] && strings.TrimSpace(values[f.Name]) == "" {
			continue
		}
		if set, ok := subjectSetters[f.Name]; ok {
			set(s, "")
		}
	}
	prefix := step.ID + "."
	maps.DeleteFunc(s.Attributes, func(key, _ string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// Clone returns a deep copy.
func (s Subject) Clone() Subject {
	s.Attributes = maps.Clone(s.Attributes)
	return s
}
