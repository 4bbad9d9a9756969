package api

import (
	"encoding/json"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

// maxNameLen is the maximum length for name fields.
const maxNameLen = 200

// maxPasswordLen is the maximum length for passwords.
const maxPasswordLen = 256

// minPasswordLen keeps admin passwords out of trivially brute-forceable range.
const minPasswordLen = 8

// hhmmRe validates zero-padded 24-hour clock times. The schedule matcher
// compares these lexicographically, so the fixed width is load-bearing.
var hhmmRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// usernameRe validates admin usernames.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,64}$`)

// validateRequiredStringLen checks that a non-empty string fits maxLen runes.
// Returns an error message if invalid, empty string if OK.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateE164 checks that a string parses as a valid phone number in E.164
// form. The provider only delivers and dials E.164, so anything else would
// silently never match or never connect.
func validateE164(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	num, err := phonenumbers.Parse(value, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return field + " must be a valid E.164 phone number"
	}
	if phonenumbers.Format(num, phonenumbers.E164) != value {
		return field + " must be in E.164 format (e.g. +441234567890)"
	}
	return ""
}

// validateHHMM checks a zero-padded "HH:MM" clock time.
func validateHHMM(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if !hhmmRe.MatchString(value) {
		return field + " must be a zero-padded 24-hour time (HH:MM)"
	}
	return ""
}

// validateDays checks a JSON array of distinct weekday numbers, 0=Sunday
// through 6=Saturday, with at least one entry.
func validateDays(field string, raw json.RawMessage) string {
	if raw == nil {
		return field + " is required"
	}
	var days []int
	if err := json.Unmarshal(raw, &days); err != nil {
		return field + " must be a JSON array of weekday numbers"
	}
	if len(days) == 0 {
		return field + " must contain at least one weekday"
	}
	seen := map[int]bool{}
	for _, d := range days {
		if d < 0 || d > 6 {
			return field + " entries must be between 0 (Sunday) and 6 (Saturday)"
		}
		if seen[d] {
			return field + " entries must be distinct"
		}
		seen[d] = true
	}
	return ""
}

// validateTimezone checks an IANA timezone name. Empty is allowed; the line
// falls back to the server default.
func validateTimezone(field, value string) string {
	if value == "" {
		return ""
	}
	if _, err := time.LoadLocation(value); err != nil {
		return field + " is not a valid IANA timezone"
	}
	return ""
}

// validateUsername checks an admin username.
func validateUsername(field, value string) string {
	if !usernameRe.MatchString(value) {
		return field + " must be 3-64 characters (letters, digits, _ . -)"
	}
	return ""
}

// validatePassword checks admin password length bounds.
func validatePassword(field, value string) string {
	if len(value) < minPasswordLen {
		return field + " must be at least 8 characters"
	}
	if len(value) > maxPasswordLen {
		return field + " exceeds maximum length"
	}
	return ""
}
