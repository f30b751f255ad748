package wallet

import "testing"

func TestKeywords_PrefixesAndTokens(t *testing.T) {
	kws := Keywords("Office Rent", "Misc", 1200000)

	want := []string{"of", "off", "offi", "offic", "office", "re", "ren", "rent", "misc", "12000"}
	for _, w := range want {
		if !MatchesPrefix(kws, w) {
			t.Fatalf("expected keyword %q in %v", w, kws)
		}
	}
	// single characters are never indexed
	for _, w := range []string{"o", "r", "m"} {
		if MatchesPrefix(kws, w) {
			t.Fatalf("did not expect single-char keyword %q", w)
		}
	}
	// index is stored lowercase; a mixed-case term is the caller's problem
	if MatchesPrefix(kws, "Office") {
		t.Fatalf("index should be lowercase only")
	}
}

func TestKeywords_DedupAndSorted(t *testing.T) {
	kws := Keywords("aa aa", "aa", 100)
	seen := map[string]bool{}
	for i, k := range kws {
		if seen[k] {
			t.Fatalf("duplicate keyword %q", k)
		}
		seen[k] = true
		if i > 0 && kws[i-1] > k {
			t.Fatalf("keywords not sorted: %v", kws)
		}
	}
}

func TestAmountToken(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{59900, "599"},
		{59950, "599.5"},
		{59905, "599.05"},
		{59912, "599.12"},
		{100, "1"},
	}
	for _, c := range cases {
		if got := amountToken(c.minor); got != c.want {
			t.Fatalf("amountToken(%d) = %q, want %q", c.minor, got, c.want)
		}
	}
}

func TestFormatMinor(t *testing.T) {
	if got := FormatMinor(59900); got != "599.00" {
		t.Fatalf("got %q", got)
	}
	if got := FormatMinor(5); got != "0.05" {
		t.Fatalf("got %q", got)
	}
	if got := FormatMinor(-1250); got != "-12.50" {
		t.Fatalf("got %q", got)
	}
}
