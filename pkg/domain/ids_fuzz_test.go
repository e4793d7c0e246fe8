//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSessionID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE sessions;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err == nil {
			roundTrip, err2 := ParseSessionID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseSubjectID ensures subject ids never carry whitespace or invalid UTF-8.
func FuzzParseSubjectID(f *testing.F) {
	f.Add("0x52908400098527886E0F7030069857D2E4169EE7")
	f.Add("acct 1")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSubjectID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(string(id)) {
			t.Error("non-UTF8 subject id accepted")
		}
		if len(id) > maxSubjectIDLength {
			t.Error("oversized subject id accepted")
		}
	})
}
