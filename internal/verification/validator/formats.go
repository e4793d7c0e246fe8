package validator

import "regexp"

// Government id formats, keyed by id type.
const (
	PANPattern      = `^[A-Z]{5}[0-9]{4}[A-Z]{1}$`
	AadhaarPattern  = `^[2-9][0-9]{11}$`
	PassportPattern = `^[A-Z0-9]{6,9}$`
	SSNPattern      = `^[0-9]{3}-[0-9]{2}-[0-9]{4}$`
)

// Financial formats.
const (
	IFSCPattern        = `^[A-Z]{4}0[A-Z0-9]{6}$`
	BankAccountPattern = `^[0-9]{9,18}$`
	UPIPattern         = `^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`
)

var (
	panRE         = regexp.MustCompile(PANPattern)
	ifscRE        = regexp.MustCompile(IFSCPattern)
	bankAccountRE = regexp.MustCompile(BankAccountPattern)
	upiRE         = regexp.MustCompile(UPIPattern)

	governmentIDFormats = map[string]*regexp.Regexp{
		"pan":      panRE,
		"aadhaar":  regexp.MustCompile(AadhaarPattern),
		"passport": regexp.MustCompile(PassportPattern),
		"ssn":      regexp.MustCompile(SSNPattern),
	}

	// national numbers, optionally with the country prefix
	phoneFormats = map[string]*regexp.Regexp{
		"IN": regexp.MustCompile(`^(\+91)?[6-9][0-9]{9}$`),
		"US": regexp.MustCompile(`^(\+1)?[2-9][0-9]{2}[2-9][0-9]{6}$`),
		"GB": regexp.MustCompile(`^(\+44|0)7[0-9]{9}$`),
	}

	postalFormats = map[string]*regexp.Regexp{
		"IN": regexp.MustCompile(`^[1-9][0-9]{5}$`),
		"US": regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`),
		"GB": regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`),
	}
	genericPostalRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{1,8}[A-Za-z0-9]$`)
)

// MatchesPAN reports whether s is a PAN-style id.
func MatchesPAN(s string) bool {
	return panRE.MatchString(s)
}

// MatchesIFSC reports whether s is an IFSC-style bank code.
func MatchesIFSC(s string) bool {
	return ifscRE.MatchString(s)
}
