package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// PAN and IFSC formats are load-bearing for downstream bank integrations.
func TestPANFormat(t *testing.T) {
	assert.True(t, MatchesPAN("ABCDE1234F"))

	for _, bad := range []string{
		"abcde1234f",  // lowercase
		"ABCDE1234",   // too short
		"ABCDE1234FG", // too long
		"ABCD11234F",  // digit in letter block
		"ABCDE12345",  // digit in check position
		" ABCDE1234F", // leading space
		"",
	} {
		assert.False(t, MatchesPAN(bad), "%q should be rejected", bad)
	}
}

func TestIFSCFormat(t *testing.T) {
	assert.True(t, MatchesIFSC("HDFC0001234"))
	assert.True(t, MatchesIFSC("SBIN0ABC123"))

	for _, bad := range []string{
		"hdfc0001234",  // lowercase
		"HDFC1001234",  // fifth character must be 0
		"HDFC000123",   // too short
		"HDFC00012345", // too long
		"HD1C0001234",  // digit in bank block
		"",
	} {
		assert.False(t, MatchesIFSC(bad), "%q should be rejected", bad)
	}
}
