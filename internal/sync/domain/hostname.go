package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Hostname is a normalized blocklist entry: lower-cased, trimmed, no
// trailing dot. Equality is exact-string.
type Hostname string

// Placeholder occupies an otherwise-empty slot so the remote resource is
// neither deleted nor treated as a real block entry. The .invalid TLD is
// reserved (RFC 2606) and can never appear in live DNS traffic.
const Placeholder Hostname = "placeholder.invalid"

// String returns the hostname as a plain string.
func (h Hostname) String() string { return string(h) }

// NewHostname normalizes raw input into a Hostname and validates it.
// Normalization: trim whitespace, strip one trailing dot, lower-case.
func NewHostname(raw string) (Hostname, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".")
	s = strings.ToLower(s)
	if s == "" {
		return "", fmt.Errorf("hostname must not be empty")
	}
	if !isValidHostname(s) {
		return "", fmt.Errorf("invalid hostname: %q", raw)
	}
	return Hostname(s), nil
}

// isValidHostname checks the normalized string against hostname rules:
//   - total length at most 255 characters
//   - at least two labels (e.g., example.com)
//   - each label between 1 and 63 characters
//   - the first label starts with a letter or digit
func isValidHostname(name string) bool {
	if len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	runes := []rune(labels[0])
	return isAlphaNumeric(runes[0])
}

// isAlphaNumeric reports whether the given rune is a letter or digit.
func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
