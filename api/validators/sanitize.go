package validators

import "strings"

// SanitizeString trims surrounding whitespace and caps the value at maxLen
// runes. Chat text is unicode-heavy, so truncation never splits a code point.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}
