package wallet

import (
	"sort"
	"strings"
)

// minKeywordLen is the shortest indexed prefix. Single characters match too
// much to be useful.
const minKeywordLen = 2

// Keywords derives the lowercase search index for a transaction: every
// progressive prefix (>= 2 chars) of each description word, plus the whole
// words of description, category and the amount. The result is deduplicated
// and sorted for stable storage.
func Keywords(description, category string, amountMinor int64) []string {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(description)) {
		for i := minKeywordLen; i <= len(w); i++ {
			set[w[:i]] = struct{}{}
		}
	}
	for _, w := range strings.Fields(strings.ToLower(category)) {
		if len(w) >= minKeywordLen {
			set[w] = struct{}{}
		}
	}
	if tok := amountToken(amountMinor); len(tok) >= minKeywordLen {
		set[tok] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MatchesPrefix reports whether the keyword index contains the given term
// (already lowercased by the caller) as an exact indexed token.
func MatchesPrefix(keywords []string, term string) bool {
	i := sort.SearchStrings(keywords, term)
	return i < len(keywords) && keywords[i] == term
}
