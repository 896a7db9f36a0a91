package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "prereg/pkg/domain-errors"
)

// PreRegistrationID identifies one application. Assigned once at creation and
// never reused.
type PreRegistrationID uuid.UUID

// GroupID ties together the applications submitted in one batch.
type GroupID uuid.UUID

// UserID is the subject identifier issued by the identity provider. It is
// opaque to this service (an email, a phone number or a UUID all occur).
type UserID string

const maxUserIDLength = 256

func (id PreRegistrationID) String() string { return uuid.UUID(id).String() }
func (id PreRegistrationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id GroupID) String() string { return uuid.UUID(id).String() }
func (id GroupID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string { return string(id) }
func (id UserID) IsNil() bool    { return id == "" }

// ParsePreRegistrationID parses external input into a PreRegistrationID.
// Errors carry CodeValidation.
func ParsePreRegistrationID(s string) (PreRegistrationID, error) {
	u, err := parseUUID(s, "pre-registration id")
	if err != nil {
		return PreRegistrationID{}, err
	}
	return PreRegistrationID(u), nil
}

// ParseGroupID parses external input into a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID(s, "group id")
	if err != nil {
		return GroupID{}, err
	}
	return GroupID(u), nil
}

// ParseUserID validates a subject identifier taken from a verified token.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "user id cannot be empty")
	}
	if len(s) > maxUserIDLength {
		return "", dErrors.New(dErrors.CodeValidation, "user id is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "user id must be valid UTF-8")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeValidation, "user id must not have surrounding whitespace")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeValidation, "user id contains control characters")
		}
	}
	return UserID(s), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be empty")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label+" format")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label+" format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be nil")
	}
	return u, nil
}

// MarshalText renders the canonical UUID form, so ids encode as JSON strings
// and work as JSON object keys.
func (id PreRegistrationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PreRegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParsePreRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id GroupID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *GroupID) UnmarshalText(b []byte) error {
	parsed, err := ParseGroupID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
