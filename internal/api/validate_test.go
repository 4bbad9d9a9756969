package api

import (
	"encoding/json"
	"testing"
)

func TestValidateE164(t *testing.T) {
	tests := []struct {
		value  string
		wantOK bool
	}{
		{"+441234567890", true},
		{"+14155552671", true},
		{"", false},
		{"01234 567890", false},     // national format
		{"+44 1234 567890", false},  // spaces
		{"441234567890", false},     // missing plus
		{"+4400000000000000", false}, // not a real number
	}

	for _, tt := range tests {
		got := validateE164("number", tt.value)
		if (got == "") != tt.wantOK {
			t.Errorf("validateE164(%q) = %q, wantOK %v", tt.value, got, tt.wantOK)
		}
	}
}

func TestValidateHHMM(t *testing.T) {
	tests := []struct {
		value  string
		wantOK bool
	}{
		{"00:00", true},
		{"09:30", true},
		{"23:59", true},
		{"", false},
		{"9:30", false},  // not zero padded
		{"24:00", false}, // out of range
		{"12:60", false},
		{"12-30", false},
	}

	for _, tt := range tests {
		got := validateHHMM("start_time", tt.value)
		if (got == "") != tt.wantOK {
			t.Errorf("validateHHMM(%q) = %q, wantOK %v", tt.value, got, tt.wantOK)
		}
	}
}

func TestValidateDays(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
	}{
		{"weekdays", `[1,2,3,4,5]`, true},
		{"sunday only", `[0]`, true},
		{"all week", `[0,1,2,3,4,5,6]`, true},
		{"empty array", `[]`, false},
		{"out of range", `[1,7]`, false},
		{"negative", `[-1]`, false},
		{"duplicate", `[1,1]`, false},
		{"not an array", `"monday"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateDays("days", json.RawMessage(tt.raw))
			if (got == "") != tt.wantOK {
				t.Errorf("validateDays(%s) = %q, wantOK %v", tt.raw, got, tt.wantOK)
			}
		})
	}

	if got := validateDays("days", nil); got == "" {
		t.Error("validateDays(nil) should require the field")
	}
}

func TestValidateTimezone(t *testing.T) {
	if got := validateTimezone("timezone", "Europe/London"); got != "" {
		t.Errorf("valid timezone rejected: %q", got)
	}
	if got := validateTimezone("timezone", ""); got != "" {
		t.Errorf("empty timezone should be allowed (server default applies): %q", got)
	}
	if got := validateTimezone("timezone", "Not/AZone"); got == "" {
		t.Error("invalid timezone accepted")
	}
}

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"admin", "ops-user", "a.b_c", "abc"} {
		if got := validateUsername("username", ok); got != "" {
			t.Errorf("validateUsername(%q) = %q, want ok", ok, got)
		}
	}
	for _, bad := range []string{"", "ab", "has space", "way@wrong"} {
		if got := validateUsername("username", bad); got == "" {
			t.Errorf("validateUsername(%q) accepted", bad)
		}
	}
}
