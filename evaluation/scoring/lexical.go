package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minMeaningfulTokenLen is the shortest token that counts as evidence on its own.
const minMeaningfulTokenLen = 4

// MatchResult explains a lexical comparison.
type MatchResult struct {
	Matched bool
	Reason  string
}

// LexicalMatch reports whether two free-text values overlap enough to count
// as the same answer. After lowercasing and collapsing non-alphanumeric runs
// to single spaces, the values match when either is a substring of the
// other, or when they share a meaningful token (length >= 4; a value with no
// such token is treated as one short identifier, e.g. "UEPS").
//
// This is a coarse, explainable heuristic and it is part of the benchmark's
// scoring semantics. Plain substring containment credits plurals and stems
// ("Payment" in "Payments") but also short fragments inside unrelated words
// ("us" in "business"). It over-credits answers that share a generic word
// ("risk", "market") and under-credits paraphrases with no word in common.
func LexicalMatch(a, b string) MatchResult {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return MatchResult{Reason: "empty value"}
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return MatchResult{Matched: true, Reason: "substring"}
	}

	other := meaningfulTokens(nb)
	for _, tok := range orderedMeaningfulTokens(na) {
		if _, ok := other[tok]; ok {
			return MatchResult{Matched: true, Reason: "shared token \"" + tok + "\""}
		}
	}
	return MatchResult{Reason: "no lexical overlap"}
}

func normalizeText(s string) string {
	return strings.Join(tokenize(s), " ")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func orderedMeaningfulTokens(normalized string) []string {
	toks := strings.Fields(normalized)
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		if utf8.RuneCountInString(tok) >= minMeaningfulTokenLen {
			out = append(out, tok)
		}
	}
	if len(out) == 0 && normalized != "" {
		out = append(out, normalized)
	}
	return out
}

func meaningfulTokens(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range orderedMeaningfulTokens(normalized) {
		set[tok] = struct{}{}
	}
	return set
}
