package recon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fixture mirroring a real settlement shape: two 599.00 payouts and one
// 699.00, recorded as one exact 599.00 entry plus a 1298.00 aggregate.
func fixture() ([]GatewayEntry, []RecordedEntry) {
	gateway := []GatewayEntry{
		{Date: "2026-03-01", ID: "pay_A", AmountMinor: 59900},
		{Date: "2026-03-02", ID: "pay_B", AmountMinor: 59900},
		{Date: "2026-03-03", ID: "pay_C", AmountMinor: 69900},
	}
	recorded := []RecordedEntry{
		{Date: "2026-03-01", AmountMinor: 59900},
		{Date: "2026-03-04", AmountMinor: 129800},
	}
	return gateway, recorded
}

func TestRun_TotalsMatchesAndGap(t *testing.T) {
	gateway, recorded := fixture()
	r := Run(gateway, recorded, Options{})

	if r.GatewayTotalMinor != 189700 || r.RecordedTotalMinor != 189700 {
		t.Fatalf("totals: gateway=%d recorded=%d", r.GatewayTotalMinor, r.RecordedTotalMinor)
	}
	if r.GroupedTotalMinor != r.GatewayTotalMinor {
		t.Fatalf("grouped total %d != gateway total %d", r.GroupedTotalMinor, r.GatewayTotalMinor)
	}

	// greedy first-fit pairs the exact 599.00 with pay_A
	if len(r.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(r.Matches))
	}
	if r.Matches[0].Gateway.ID != "pay_A" || r.Matches[0].Recorded.AmountMinor != 59900 {
		t.Fatalf("unexpected match: %+v", r.Matches[0])
	}
	if r.MatchedRecordedMinor != 59900 {
		t.Fatalf("matched total: %d", r.MatchedRecordedMinor)
	}

	// the 1298.00 aggregate has no single gateway counterpart
	if len(r.UnmatchedRecorded) != 1 || r.UnmatchedRecorded[0].AmountMinor != 129800 {
		t.Fatalf("unmatched: %+v", r.UnmatchedRecorded)
	}
	if r.UnmatchedRecordedMinor != 129800 {
		t.Fatalf("unmatched total: %d", r.UnmatchedRecordedMinor)
	}

	// pay_B and pay_C stay unused; their amounts sum to the aggregate
	if len(r.UnusedGateway) != 2 {
		t.Fatalf("unused: %+v", r.UnusedGateway)
	}
	if r.UnusedGateway[0].AmountMinor+r.UnusedGateway[1].AmountMinor != 129800 {
		t.Fatalf("unused amounts: %+v", r.UnusedGateway)
	}

	if r.GapMinor != 0 {
		t.Fatalf("gap should be zero, got %d", r.GapMinor)
	}
	// no gap, no candidate search
	if r.GapCandidates != nil || r.HalfGapCandidates != nil {
		t.Fatalf("candidates must be empty when gap is zero")
	}
}

func TestRun_AmountGroupsDescending(t *testing.T) {
	gateway, _ := fixture()
	r := Run(gateway, nil, Options{})

	if len(r.AmountGroups) != 2 {
		t.Fatalf("groups: %+v", r.AmountGroups)
	}
	if r.AmountGroups[0].AmountMinor != 69900 || r.AmountGroups[0].Count != 1 {
		t.Fatalf("first group: %+v", r.AmountGroups[0])
	}
	if r.AmountGroups[1].AmountMinor != 59900 || r.AmountGroups[1].Count != 2 || r.AmountGroups[1].SubtotalMinor != 119800 {
		t.Fatalf("second group: %+v", r.AmountGroups[1])
	}
}

func TestRun_GapCandidates(t *testing.T) {
	// gateway has one extra 699.00 payout the records never saw
	gateway, recorded := fixture()
	recorded = recorded[:1] // drop the aggregate: gap = 59900 + 69900

	r := Run(gateway, recorded, Options{})
	if r.GapMinor != 129800 {
		t.Fatalf("gap: %d", r.GapMinor)
	}
	// nothing is within 1.00 of the full gap
	if len(r.GapCandidates) != 0 {
		t.Fatalf("gap candidates: %+v", r.GapCandidates)
	}
	// but 649.00 would be half of it; no entry is within tolerance either
	if len(r.HalfGapCandidates) != 0 {
		t.Fatalf("half-gap candidates: %+v", r.HalfGapCandidates)
	}

	// single missing payout: gap equals one gateway amount exactly
	r = Run(gateway, []RecordedEntry{{AmountMinor: 119800}}, Options{})
	if r.GapMinor != 69900 {
		t.Fatalf("gap: %d", r.GapMinor)
	}
	if len(r.GapCandidates) != 1 || r.GapCandidates[0].ID != "pay_C" {
		t.Fatalf("expected pay_C as gap candidate: %+v", r.GapCandidates)
	}

	// gap explained by two equal payouts: half-gap candidates fire
	r = Run(gateway, []RecordedEntry{{AmountMinor: 69900}}, Options{})
	if r.GapMinor != 119800 {
		t.Fatalf("gap: %d", r.GapMinor)
	}
	if len(r.HalfGapCandidates) != 2 {
		t.Fatalf("expected both 599.00 payouts as half-gap candidates: %+v", r.HalfGapCandidates)
	}
}

func TestRun_Adjustment(t *testing.T) {
	gateway, _ := fixture()
	// records are short by a documented 11.98 fee
	recorded := []RecordedEntry{{AmountMinor: 189700 + 1198}}

	r := Run(gateway, recorded, Options{AdjustmentMinor: 1198, AdjustmentNote: "gateway fee"})
	if r.AdjustedRecordedMinor != 189700 {
		t.Fatalf("adjusted: %d", r.AdjustedRecordedMinor)
	}
	if r.GapMinor != 0 {
		t.Fatalf("gap after adjustment: %d", r.GapMinor)
	}
	if r.AdjustmentNote != "gateway fee" {
		t.Fatalf("note lost")
	}
}

func TestHumanSummary(t *testing.T) {
	gateway, recorded := fixture()
	out := HumanSummary(Run(gateway, recorded, Options{}))

	for _, want := range []string{"1897.00", "599.00", "699.00", "pay_A"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestParseDecimalToMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"599.00", 59900},
		{"599", 59900},
		{"599.5", 59950},
		{"1,298.00", 129800},
		{"-12.50", -1250},
	}
	for _, c := range cases {
		got, err := ParseDecimalToMinor(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q = %d, want %d", c.in, got, c.want)
		}
	}
	// sub-minor precision is truncated, not rejected
	if got, err := ParseDecimalToMinor("12.345"); err != nil || got != 1234 {
		t.Fatalf("parse 12.345 = %d, %v", got, err)
	}
	if _, err := ParseDecimalToMinor("abc"); err == nil {
		t.Fatalf("expected error for garbage")
	}
}

func TestReadCSVs(t *testing.T) {
	dir := t.TempDir()
	gwPath := filepath.Join(dir, "gateway.csv")
	recPath := filepath.Join(dir, "recorded.csv")

	gwCSV := "date,id,counterparty_ref,amount\n2026-03-01,pay_A,ref1,599.00\n2026-03-03,pay_C,ref2,699.00\n"
	recCSV := "date,amount\n2026-03-01,599.00\n"
	if err := os.WriteFile(gwPath, []byte(gwCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(recPath, []byte(recCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	gw, err := ReadGatewayCSV(gwPath)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	if len(gw) != 2 || gw[0].ID != "pay_A" || gw[0].AmountMinor != 59900 || gw[1].AmountMinor != 69900 {
		t.Fatalf("gateway rows: %+v", gw)
	}

	rec, err := ReadRecordedCSV(recPath)
	if err != nil {
		t.Fatalf("recorded: %v", err)
	}
	if len(rec) != 1 || rec[0].AmountMinor != 59900 {
		t.Fatalf("recorded rows: %+v", rec)
	}
}
