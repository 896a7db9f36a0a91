package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePreRegistrationID checks parsing never panics and accepted ids
// round-trip through String.
func FuzzParsePreRegistrationID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE applications;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParsePreRegistrationID(input)
		if err == nil {
			roundTrip, err2 := ParsePreRegistrationID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

func FuzzParseUserID(f *testing.F) {
	f.Add("applicant@example.com")
	f.Add("")
	f.Add("\x00")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
		if id.String() != input {
			t.Error("accepted user id was altered")
		}
	})
}
