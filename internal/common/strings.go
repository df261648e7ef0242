package common

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
// Invalid bytes already in s are replaced so the result is always valid UTF-8.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "�")
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
