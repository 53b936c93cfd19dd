// Package validation checks command names configured for the metrics allow-list.
// Command payloads themselves are never validated.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MaxCommandNameLength bounds allow-listed command names, in runes.
const MaxCommandNameLength = 32

// ErrCommandEmpty is returned when a name is empty or whitespace-only after trim.
var ErrCommandEmpty = errors.New("command name is required")

// ErrCommandTooLong is returned when a name exceeds MaxCommandNameLength.
var ErrCommandTooLong = errors.New("command name too long")

// ErrCommandInvalidChars is returned when a name contains characters other than
// lowercase letters, digits, underscore and hyphen.
var ErrCommandInvalidChars = errors.New("command name contains invalid characters")

// ValidateCommandName trims and lowercases input and checks it is usable as a metric label value.
// Returns the normalized name.
func ValidateCommandName(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	n := len([]rune(s))
	if n == 0 {
		return "", ErrCommandEmpty
	}
	if n > MaxCommandNameLength {
		return "", ErrCommandTooLong
	}
	for _, r := range s {
		if !allowedCommandRune(r) {
			return "", ErrCommandInvalidChars
		}
	}
	return s, nil
}

// allowedCommandRune permits ASCII lowercase letters, digits, '_' and '-'.
func allowedCommandRune(r rune) bool {
	if r > unicode.MaxASCII {
		return false
	}
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}
