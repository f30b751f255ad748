// Package recon matches a payment gateway's transaction export against the
// wallet's own recorded entries and reports totals, exact matches and
// unexplained differences. It is a best-effort diagnostic batch computation:
// pure, single-threaded, no persistent state.
package recon

import "sort"

// DefaultGapToleranceMinor is the absolute tolerance (one major unit) used
// when searching gateway entries that could explain a residual gap.
const DefaultGapToleranceMinor = 100

// GatewayEntry is one row from the gateway's dashboard export.
type GatewayEntry struct {
	Date        string `json:"date"`
	ID          string `json:"id"`
	Counterpart string `json:"counterparty_ref,omitempty"`
	AmountMinor int64  `json:"amount_minor"`
}

// RecordedEntry is one row from the wallet's own records. A recorded entry
// may be an aggregate of several gateway rows merged by amount.
type RecordedEntry struct {
	Date        string `json:"date,omitempty"`
	AmountMinor int64  `json:"amount_minor"`
}

// Options tunes a reconciliation run.
type Options struct {
	// AdjustmentMinor is a documented fixed offset between the two sources
	// (e.g. a known fee), subtracted from the recorded total before the gap
	// is computed.
	AdjustmentMinor int64
	AdjustmentNote  string
	// GapToleranceMinor overrides DefaultGapToleranceMinor when > 0.
	GapToleranceMinor int64
}

// AmountGroup is the per-amount rollup of gateway entries.
type AmountGroup struct {
	AmountMinor   int64 `json:"amount_minor"`
	Count         int   `json:"count"`
	SubtotalMinor int64 `json:"subtotal_minor"`
}

// Match pairs one recorded entry with the gateway entry that consumed it.
type Match struct {
	Recorded RecordedEntry `json:"recorded"`
	Gateway  GatewayEntry  `json:"gateway"`
}

// Report is the full reconciliation result.
type Report struct {
	GatewayTotalMinor  int64 `json:"gateway_total_minor"`
	RecordedTotalMinor int64 `json:"recorded_total_minor"`

	// AmountGroups is ordered descending by amount; GroupedTotalMinor is the
	// sum of subtotals, a cross-check against GatewayTotalMinor.
	AmountGroups      []AmountGroup `json:"amount_groups"`
	GroupedTotalMinor int64         `json:"grouped_total_minor"`

	Matches                []Match         `json:"matches"`
	UnmatchedRecorded      []RecordedEntry `json:"unmatched_recorded"`
	MatchedRecordedMinor   int64           `json:"matched_recorded_minor"`
	UnmatchedRecordedMinor int64           `json:"unmatched_recorded_minor"`
	UnusedGateway          []GatewayEntry  `json:"unused_gateway"`

	AdjustmentMinor       int64  `json:"adjustment_minor"`
	AdjustmentNote        string `json:"adjustment_note,omitempty"`
	AdjustedRecordedMinor int64  `json:"adjusted_recorded_minor"`
	GapMinor              int64  `json:"gap_minor"`

	// Candidate gateway entries whose amount is within tolerance of the gap
	// (one entry explains it) or of half the gap (two such entries would).
	GapCandidates     []GatewayEntry `json:"gap_candidates"`
	HalfGapCandidates []GatewayEntry `json:"half_gap_candidates"`
}

// Run reconciles the two lists. Matching is greedy first-fit in input order
// with exact amount equality; when several entries share an amount the
// pairing depends on input order and is not guaranteed to be globally
// optimal.
func Run(gateway []GatewayEntry, recorded []RecordedEntry, opts Options) Report {
	r := Report{
		AdjustmentMinor: opts.AdjustmentMinor,
		AdjustmentNote:  opts.AdjustmentNote,
	}
	for _, g := range gateway {
		r.GatewayTotalMinor += g.AmountMinor
	}
	for _, e := range recorded {
		r.RecordedTotalMinor += e.AmountMinor
	}

	r.AmountGroups = groupByAmount(gateway)
	for _, g := range r.AmountGroups {
		r.GroupedTotalMinor += g.SubtotalMinor
	}

	// Greedy first-fit matching.
	used := make([]bool, len(gateway))
	for _, e := range recorded {
		idx := -1
		for i, g := range gateway {
			if !used[i] && g.AmountMinor == e.AmountMinor {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Presumed to be a grouped sum of several gateway rows.
			r.UnmatchedRecorded = append(r.UnmatchedRecorded, e)
			r.UnmatchedRecordedMinor += e.AmountMinor
			continue
		}
		used[idx] = true
		r.Matches = append(r.Matches, Match{Recorded: e, Gateway: gateway[idx]})
		r.MatchedRecordedMinor += e.AmountMinor
	}
	for i, g := range gateway {
		if !used[i] {
			r.UnusedGateway = append(r.UnusedGateway, g)
		}
	}

	r.AdjustedRecordedMinor = r.RecordedTotalMinor - r.AdjustmentMinor
	r.GapMinor = r.GatewayTotalMinor - r.AdjustedRecordedMinor

	tol := opts.GapToleranceMinor
	if tol <= 0 {
		tol = DefaultGapToleranceMinor
	}
	if r.GapMinor != 0 {
		for _, g := range gateway {
			if abs64(g.AmountMinor-r.GapMinor) < tol {
				r.GapCandidates = append(r.GapCandidates, g)
			}
			// |amount - gap/2| < tol, kept in integers.
			if abs64(2*g.AmountMinor-r.GapMinor) < 2*tol {
				r.HalfGapCandidates = append(r.HalfGapCandidates, g)
			}
		}
	}
	return r
}

// groupByAmount rolls gateway entries up per amount, descending by amount.
func groupByAmount(gateway []GatewayEntry) []AmountGroup {
	counts := make(map[int64]int)
	for _, g := range gateway {
		counts[g.AmountMinor]++
	}
	amounts := make([]int64, 0, len(counts))
	for a := range counts {
		amounts = append(amounts, a)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] > amounts[j] })
	out := make([]AmountGroup, 0, len(amounts))
	for _, a := range amounts {
		n := counts[a]
		out = append(out, AmountGroup{AmountMinor: a, Count: n, SubtotalMinor: a * int64(n)})
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
