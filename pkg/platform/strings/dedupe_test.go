package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  fullName  ", "gender  "}, expected: []string{"fullName", "gender"}},
		{name: "removes duplicates preserving order", input: []string{"gender", "fullName", "gender"}, expected: []string{"gender", "fullName"}},
		{name: "drops blanks", input: []string{"", "   ", "gender"}, expected: []string{"gender"}},
		{name: "keeps case", input: []string{"Gender", "gender"}, expected: []string{"Gender", "gender"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimUpper(t *testing.T) {
	got := DedupeAndTrimUpper([]string{" individual", "INDIVIDUAL", "Registration_Officer", ""})
	assert.Equal(t, []string{"INDIVIDUAL", "REGISTRATION_OFFICER"}, got)
}
