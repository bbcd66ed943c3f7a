package redact

import (
	"strings"
)

// LastN returns the last n bytes of s, or s itself when it is shorter.
func LastN(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// MaskKey hides an API key except for its last four characters. Keys of
// four characters or fewer are fully masked.
func MaskKey(key string) string {
	cleaned := strings.TrimSpace(key)
	n := len(cleaned)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return strings.Repeat("*", n-4) + cleaned[n-4:]
}

// Text keeps the first maxLen bytes of a free-text value for logging and
// marks the cut.
func Text(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
