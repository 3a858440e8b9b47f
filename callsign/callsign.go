// Package callsign holds the small set of rules used to tell real station
// callsigns apart from free text that happens to land in a call field.
package callsign

import (
	"regexp"
	"strings"
	"unicode"
)

var callsignPattern = regexp.MustCompile(`^[A-Z0-9]+(?:/[A-Z0-9]+)*$`)

// Normalize uppercases the string, trims whitespace, and removes trailing dots
// or slashes. Stored records are keyed by the normalized form.
func Normalize(call string) string {
	normalized := strings.ToUpper(strings.TrimSpace(call))
	normalized = strings.ReplaceAll(normalized, ".", "/")
	normalized = strings.TrimSuffix(normalized, "/")
	return strings.TrimSpace(normalized)
}

// HasDigit reports whether call contains at least one decimal digit. Every
// amateur callsign does; "CQ", "DX", "QRZ" and most decode garbage do not.
func HasDigit(call string) bool {
	return strings.IndexFunc(call, unicode.IsDigit) >= 0
}

// IsValid applies format checks to make sure call looks like an amateur call.
func IsValid(call string) bool {
	normalized := Normalize(call)
	if len(normalized) < 3 || len(normalized) > 12 {
		return false
	}
	if !HasDigit(normalized) {
		return false
	}
	return callsignPattern.MatchString(normalized)
}
