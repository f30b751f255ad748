package recon

import (
	"fmt"
	"strconv"
	"strings"
)

// HumanSummary renders the report as operator-readable text.
func HumanSummary(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gateway total:  %s (%d entries grouped into %d amounts, cross-check %s)\n",
		fmtMinor(r.GatewayTotalMinor), countEntries(r.AmountGroups), len(r.AmountGroups), fmtMinor(r.GroupedTotalMinor))
	fmt.Fprintf(&b, "Recorded total: %s\n", fmtMinor(r.RecordedTotalMinor))
	fmt.Fprintf(&b, "Difference:     %s\n", fmtMinor(r.GatewayTotalMinor-r.RecordedTotalMinor))

	if len(r.AmountGroups) > 0 {
		fmt.Fprintf(&b, "\nGateway amounts (desc):\n")
		for _, g := range r.AmountGroups {
			fmt.Fprintf(&b, "- %s x %d = %s\n", fmtMinor(g.AmountMinor), g.Count, fmtMinor(g.SubtotalMinor))
		}
	}

	fmt.Fprintf(&b, "\nExact matches: %d (sum %s)\n", len(r.Matches), fmtMinor(r.MatchedRecordedMinor))
	for _, m := range r.Matches {
		fmt.Fprintf(&b, "- recorded %s <-> gateway %s (%s)\n", fmtMinor(m.Recorded.AmountMinor), m.Gateway.ID, m.Gateway.Date)
	}
	fmt.Fprintf(&b, "\nUnmatched recorded (likely grouped): %d (sum %s)\n", len(r.UnmatchedRecorded), fmtMinor(r.UnmatchedRecordedMinor))
	for _, e := range r.UnmatchedRecorded {
		fmt.Fprintf(&b, "- %s (%s)\n", fmtMinor(e.AmountMinor), e.Date)
	}
	fmt.Fprintf(&b, "\nGateway entries never matched: %d\n", len(r.UnusedGateway))
	for _, g := range r.UnusedGateway {
		fmt.Fprintf(&b, "- %s %s (%s)\n", g.ID, fmtMinor(g.AmountMinor), g.Date)
	}

	if r.AdjustmentMinor != 0 {
		note := r.AdjustmentNote
		if note == "" {
			note = "documented offset"
		}
		fmt.Fprintf(&b, "\nAdjustment: -%s (%s), adjusted recorded total %s\n",
			fmtMinor(r.AdjustmentMinor), note, fmtMinor(r.AdjustedRecordedMinor))
	}
	fmt.Fprintf(&b, "\nGap (gateway - adjusted recorded): %s\n", fmtMinor(r.GapMinor))
	if r.GapMinor == 0 {
		fmt.Fprintf(&b, "Gap candidates: none needed\n")
		return b.String()
	}
	if len(r.GapCandidates) == 0 {
		fmt.Fprintf(&b, "Single-entry candidates: no candidate\n")
	} else {
		fmt.Fprintf(&b, "Single-entry candidates:\n")
		for _, g := range r.GapCandidates {
			fmt.Fprintf(&b, "- %s %s (%s) ~ gap\n", g.ID, fmtMinor(g.AmountMinor), g.Date)
		}
	}
	if len(r.HalfGapCandidates) == 0 {
		fmt.Fprintf(&b, "Half-gap (pair) candidates: no candidate\n")
	} else {
		fmt.Fprintf(&b, "Half-gap (pair) candidates:\n")
		for _, g := range r.HalfGapCandidates {
			fmt.Fprintf(&b, "- %s %s (%s) ~ gap/2\n", g.ID, fmtMinor(g.AmountMinor), g.Date)
		}
	}
	return b.String()
}

func countEntries(groups []AmountGroup) int {
	n := 0
	for _, g := range groups {
		n += g.Count
	}
	return n
}

// fmtMinor renders minor units with two decimals. The matcher is
// currency-agnostic, so no symbol is attached.
func fmtMinor(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	s := strconv.FormatInt(minor/100, 10)
	frac := minor % 100
	if frac < 10 {
		s += ".0" + strconv.FormatInt(frac, 10)
	} else {
		s += "." + strconv.FormatInt(frac, 10)
	}
	if neg {
		s = "-" + s
	}
	return s
}
