package common

import "unicode/utf8"

// TruncateRunes returns s cut to at most n runes. n <= 0 leaves s intact.
func TruncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
