package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "prereg/pkg/domain-errors"
)

func TestParsePreRegistrationID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePreRegistrationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePreRegistrationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		id, err := ParsePreRegistrationID(u.String())
		require.NoError(t, err)
		assert.Equal(t, PreRegistrationID(u), id)
		assert.Equal(t, u.String(), id.String())
	})
}

func TestParseIDs_RejectHostileInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SQL injection attempt", "'; DROP TABLE applications;--"},
		{"Path traversal", "../../../etc/passwd"},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000"},
		{"Oversized input", strings.Repeat("a", 1000)},
		{"Whitespace only", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errPrid := ParsePreRegistrationID(tt.input)
			_, errGroup := ParseGroupID(tt.input)
			require.Error(t, errPrid)
			require.Error(t, errGroup)
		})
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"email subject", "applicant@example.com", false},
		{"phone subject", "+919876543210", false},
		{"empty", "", true},
		{"surrounding whitespace", " user ", true},
		{"control character", "user\x00id", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
		{"too long", strings.Repeat("u", 300), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestIDsEncodeAsJSONStrings(t *testing.T) {
	raw := "3f2b8c1e-7d4a-4b9e-9a51-2c6d8e0f1a23"
	preRegID, err := ParsePreRegistrationID(raw)
	require.NoError(t, err)

	b, err := json.Marshal(map[PreRegistrationID]GroupID{preRegID: GroupID(preRegID)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+raw+`":"`+raw+`"}`, string(b))

	var decoded PreRegistrationID
	require.NoError(t, json.Unmarshal([]byte(`"`+raw+`"`), &decoded))
	assert.Equal(t, preRegID, decoded)

	require.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &decoded))
}
