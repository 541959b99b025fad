// Package textutil holds small string helpers shared by prompt builders.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// TruncateRunes returns at most limit runes of s and whether it cut anything.
// It never splits a multi-byte character. A non-positive limit disables truncation.
func TruncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// Excerpt trims s and truncates it to limit runes, appending a marker when cut.
func Excerpt(s string, limit int) string {
	out, cut := TruncateRunes(strings.TrimSpace(s), limit)
	if cut {
		return strings.TrimRightFunc(out, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }) + "\n...[TRUNCATED]"
	}
	return out
}
