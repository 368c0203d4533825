package usecase

import (
	"regexp"
	"strings"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	blankRuns      = regexp.MustCompile(`[ \t]{2,}`)
	unsafeMarkup   = regexp.MustCompile(`(?i)<[^>]+>|javascript:|data:text/html|on\w+\s*=`)
	unsafeSQLPairs = regexp.MustCompile(`(?i)\b(select|union|insert|update|delete|drop|alter|truncate)\b\s+\b(from|into|table|where|set)\b`)
)

// SanitizeInput strips control characters (keeping tab, LF and CR),
// collapses runs of spaces and tabs to one space and trims the result.
func SanitizeInput(value string) string {
	value = controlChars.ReplaceAllString(value, "")
	value = blankRuns.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// HasUnsafeInput reports markup, script URLs, inline event handlers or
// adjacent SQL keyword pairs such as "drop table".
func HasUnsafeInput(value string) bool {
	return unsafeMarkup.MatchString(value) || unsafeSQLPairs.MatchString(value)
}
