package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	out, cut := TruncateRunes("hello", 10)
	assert.Equal(t, "hello", out)
	assert.False(t, cut)

	out, cut = TruncateRunes("héllo wörld", 4)
	assert.Equal(t, "héll", out)
	assert.True(t, cut)
	assert.True(t, utf8.ValidString(out))

	out, cut = TruncateRunes("abc", 0)
	assert.Equal(t, "abc", out)
	assert.False(t, cut)
}

func TestExcerptMarksTruncation(t *testing.T) {
	text := strings.Repeat("€", 50)
	out := Excerpt(text, 20)
	assert.True(t, strings.HasSuffix(out, "...[TRUNCATED]"))
	assert.Equal(t, 20, utf8.RuneCountInString(strings.TrimSuffix(out, "\n...[TRUNCATED]")))

	assert.Equal(t, "short", Excerpt("  short \n", 20))
}
