package publish

import (
	"strings"
	"unicode"
)

const (
	maxDisplayNameLen   = 50
	fallbackDisplayName = "Asset"
)

// SanitizeDisplayName turns an arbitrary file name into a listing-safe
// display name: letters, digits and single spaces only, trailing index
// digits dropped, capped at 50 characters. An empty result falls back to
// a generic name so the listing is never rejected for a blank title.
func SanitizeDisplayName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	s := strings.TrimSpace(b.String())
	// File names commonly end in a counter ("shirt 0123"); the counter is
	// noise in a listing title.
	s = strings.TrimRight(s, "0123456789")
	s = strings.TrimSpace(s)

	if len(s) > maxDisplayNameLen {
		s = strings.TrimSpace(s[:maxDisplayNameLen])
	}
	if s == "" {
		return fallbackDisplayName
	}
	return s
}
