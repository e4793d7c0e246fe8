package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "kycflow/pkg/domain-errors"
)

// SessionID identifies one verification session.
type SessionID uuid.UUID

// SubjectID identifies the verified party across sessions. It is either a
// wallet address or an account id issued upstream, so it is not a UUID.
type SubjectID string

const maxSubjectIDLength = 128

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText renders the nil id as "" so it round-trips through UnmarshalText.
func (id SessionID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = SessionID{}
		return nil
	}
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseSessionID parses a non-nil UUID session id.
func ParseSessionID(s string) (SessionID, error) {
	parsed, err := parseUUID(s, "session_id")
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(parsed), nil
}

func (id SubjectID) String() string {
	return string(id)
}

func (id SubjectID) IsNil() bool {
	return id == ""
}

// ParseSubjectID accepts printable, whitespace-free identifiers up to 128 bytes.
func ParseSubjectID(s string) (SubjectID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject_id is required")
	}
	if len(s) > maxSubjectIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject_id is too long")
	}
	for _, r := range s {
		if r == unicode.ReplacementChar || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "subject_id contains invalid characters")
		}
	}
	return SubjectID(s), nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	// uuid.Parse also accepts urn and braced forms; only the canonical form is allowed here.
	if len(s) != 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return parsed, nil
}
