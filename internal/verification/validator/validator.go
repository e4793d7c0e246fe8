// Package validator checks submitted step values against a step's field specs.
// It is synchronous and side-effect free.
package validator

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"

	"kycflow/internal/verification/models"
	kstrings "kycflow/pkg/platform/strings"
)

const dateLayout = "2006-01-02"

// Field error messages.
const (
	MsgRequired     = "is required"
	MsgUnknownField = "is not a field of this step"
)

// Validator is safe for concurrent use.
type Validator struct {
	v        *playground.Validate
	now      func() time.Time
	patterns sync.Map
}

type Option func(*Validator)

// WithClock sets the clock used for date checks by Validate.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{v: playground.New(), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns field -> message. The map is empty when the step may advance.
func (v *Validator) Validate(step models.StepDefinition, values map[string]string) map[string]string {
	return v.ValidateAt(step, values, v.now())
}

// ValidateAt is Validate with an explicit reference time for age and
// future-date rules.
func (v *Validator) ValidateAt(step models.StepDefinition, values map[string]string, now time.Time) map[string]string {
	errs := make(map[string]string)

	for name := range values {
		if _, ok := step.Field(name); !ok {
			errs[name] = MsgUnknownField
		}
	}

	for _, f := range step.Fields {
		raw := strings.TrimSpace(values[f.Name])

		required := f.Required
		if f.RequiredIf != nil {
			required = listContains(values[f.RequiredIf.Field], f.RequiredIf.Contains)
			if !required && raw != "" {
				errs[f.Name] = fmt.Sprintf("must be empty unless %s includes %s", f.RequiredIf.Field, f.RequiredIf.Contains)
				continue
			}
		}

		if raw == "" {
			if required {
				errs[f.Name] = MsgRequired
			}
			continue
		}

		if f.MaxLength > 0 && utf8.RuneCountInString(raw) > f.MaxLength {
			errs[f.Name] = fmt.Sprintf("must be at most %d characters", f.MaxLength)
			continue
		}

		if msg := v.checkType(f, raw, values, now); msg != "" {
			errs[f.Name] = msg
			continue
		}

		if f.Pattern != "" && !v.pattern(f.Pattern).MatchString(raw) {
			errs[f.Name] = "has an invalid format"
		}
	}

	return errs
}

func (v *Validator) checkType(f models.FieldSpec, raw string, values map[string]string, now time.Time) string {
	switch f.Type {
	case models.FieldText:
		return ""

	case models.FieldEmail:
		if v.v.Var(raw, "email") != nil {
			return "must be a valid email address"
		}

	case models.FieldPhone:
		return v.checkPhone(raw, dependency(f, values))

	case models.FieldDate:
		return checkDate(f, raw, now)

	case models.FieldEnum:
		if !slices.Contains(f.Options, raw) {
			return "must be one of: " + strings.Join(f.Options, ", ")
		}

	case models.FieldMultiEnum:
		items := kstrings.DedupeAndTrimLower(strings.Split(raw, ","))
		if len(items) == 0 {
			return MsgRequired
		}
		for _, item := range items {
			if !slices.Contains(f.Options, item) {
				return "must only contain: " + strings.Join(f.Options, ", ")
			}
		}

	case models.FieldBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return "must be true or false"
		}
		if f.MustBeTrue && !b {
			return "must be accepted"
		}

	case models.FieldCountry:
		if v.v.Var(strings.ToUpper(raw), "iso3166_1_alpha2") != nil {
			return "must be an ISO 3166-1 alpha-2 country code"
		}

	case models.FieldPostalCode:
		country := strings.ToUpper(dependency(f, values))
		re, ok := postalFormats[country]
		if !ok {
			re = genericPostalRE
		}
		if !re.MatchString(strings.ToUpper(raw)) {
			return "must be a valid postal code"
		}

	case models.FieldGovernmentID:
		idType := strings.ToLower(dependency(f, values))
		re, ok := governmentIDFormats[idType]
		if !ok {
			return fmt.Sprintf("requires a valid %s", f.DependsOn)
		}
		if idType == "aadhaar" {
			raw = strings.ReplaceAll(raw, " ", "")
		}
		if !re.MatchString(raw) {
			return fmt.Sprintf("is not a valid %s number", strings.ToUpper(idType))
		}

	case models.FieldBankAccount:
		if !bankAccountRE.MatchString(raw) {
			return "must be 9 to 18 digits"
		}

	case models.FieldBankCode:
		if !ifscRE.MatchString(raw) {
			return "must be a valid IFSC code"
		}

	case models.FieldUPI:
		if !upiRE.MatchString(raw) {
			return "must be a valid UPI id"
		}

	case models.FieldWalletAddress:
		if v.v.Var(raw, "eth_addr") != nil {
			return "must be a valid wallet address"
		}

	default:
		return "has an unsupported field type"
	}
	return ""
}

func (v *Validator) checkPhone(raw, country string) string {
	normalized := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(raw)
	if re, ok := phoneFormats[strings.ToUpper(country)]; ok {
		if !re.MatchString(normalized) {
			return "must be a valid phone number for " + strings.ToUpper(country)
		}
		return ""
	}
	if v.v.Var(normalized, "e164") != nil {
		return "must be a valid phone number in international format"
	}
	return ""
}

func checkDate(f models.FieldSpec, raw string, now time.Time) string {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "must be a date in YYYY-MM-DD format"
	}
	if d.After(now) {
		return "must not be in the future"
	}
	if f.MinAge > 0 && d.AddDate(f.MinAge, 0, 0).After(now) {
		return fmt.Sprintf("must be at least %d years ago", f.MinAge)
	}
	return ""
}

func (v *Validator) pattern(p string) *regexp.Regexp {
	if re, ok := v.patterns.Load(p); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(p)
	v.patterns.Store(p, re)
	return re
}

func dependency(f models.FieldSpec, values map[string]string) string {
	if f.DependsOn == "" {
		return ""
	}
	return strings.TrimSpace(values[f.DependsOn])
}

func listContains(list, item string) bool {
	return slices.Contains(kstrings.DedupeAndTrimLower(strings.Split(list, ",")), strings.ToLower(item))
}
