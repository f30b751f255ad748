package wallet

import (
	"errors"
	"reflect"
	"testing"

	"github.com/crmops/wallet/internal/errs"
)

func mustNew(t *testing.T, minor int64, typ Type, cat, desc string) Transaction {
	t.Helper()
	txn, err := New(minor, typ, cat, desc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return txn
}

func TestNew_ValidationAndDefaults(t *testing.T) {
	if _, err := New(0, TypeIncome, "", ""); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for zero amount, got %v", err)
	}
	if _, err := New(-100, TypeExpense, "", ""); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for negative amount, got %v", err)
	}
	if _, err := New(100, Type("transfer"), "", ""); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown type, got %v", err)
	}

	txn := mustNew(t, 100, TypeIncome, "", "")
	if txn.Category != DefaultCategory || txn.Description != DefaultDescription {
		t.Fatalf("defaults not applied: %+v", txn)
	}
	if len(txn.Keywords) == 0 {
		t.Fatalf("keywords not derived")
	}
	if !txn.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt must be left for the store")
	}
}

func TestAddDelta_OmitsDescription(t *testing.T) {
	txn := mustNew(t, 59900, TypeExpense, "Shipping", "Courier fees")
	d := AddDelta(txn)
	if d.BalanceMinor != -59900 || d.ExpenseMinor != 59900 || d.IncomeMinor != 0 {
		t.Fatalf("unexpected delta: %+v", d)
	}
	if d.Description != nil {
		t.Fatalf("add delta must not carry description increments")
	}
	if d.Category[TypeExpense]["Shipping"] != 59900 {
		t.Fatalf("missing category increment: %+v", d.Category)
	}
}

func TestApplyReverse_ExactRoundTrip(t *testing.T) {
	base := NewSummary()
	t1 := mustNew(t, 59900, TypeIncome, "Sales", "Order 1042")
	t2 := mustNew(t, 12500, TypeExpense, "Shipping", "Courier fees")
	base.Apply(t1)
	base.Apply(t2)

	snapshot := base.Clone()
	t3 := mustNew(t, 69900, TypeIncome, "Sales", "Order 1043")
	base.Apply(t3)
	base.Reverse(t3)

	if !reflect.DeepEqual(base, snapshot) {
		t.Fatalf("apply+reverse drifted:\n got %+v\nwant %+v", base, snapshot)
	}
}

func TestReverse_DropsZeroedKeys(t *testing.T) {
	sum := NewSummary()
	txn := mustNew(t, 1000, TypeExpense, "Packaging", "Boxes")
	sum.Apply(txn)
	sum.Reverse(txn)
	if _, ok := sum.Category.Expense["Packaging"]; ok {
		t.Fatalf("zeroed category key should be removed")
	}
	if _, ok := sum.Description.Expense["Boxes"]; ok {
		t.Fatalf("zeroed description key should be removed")
	}
}

func TestReverse_ClampsDriftedTotals(t *testing.T) {
	// A summary that undercounts (drift) must clamp at zero instead of going
	// negative; the signed balance is exempt.
	sum := NewSummary()
	sum.IncomeMinor = 100
	sum.BalanceMinor = 100
	sum.Category.Income["Sales"] = 100

	txn := mustNew(t, 500, TypeIncome, "Sales", "Order 9")
	sum.Reverse(txn)

	if sum.IncomeMinor != 0 {
		t.Fatalf("income not clamped: %d", sum.IncomeMinor)
	}
	if _, ok := sum.Category.Income["Sales"]; ok {
		t.Fatalf("clamped key should be removed")
	}
	if sum.BalanceMinor != -400 {
		t.Fatalf("balance must not clamp, got %d", sum.BalanceMinor)
	}
}

func TestMerge_Commutes(t *testing.T) {
	t1 := mustNew(t, 300, TypeIncome, "Sales", "a")
	t2 := mustNew(t, 200, TypeExpense, "Shipping", "b")

	a := NewSummary()
	a.Merge(AddDelta(t1))
	a.Merge(AddDelta(t2))

	b := NewSummary()
	b.Merge(AddDelta(t2))
	b.Merge(AddDelta(t1))

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("merge order changed result:\n%+v\n%+v", a, b)
	}
	if a.BalanceMinor != 100 || a.IncomeMinor != 300 || a.ExpenseMinor != 200 {
		t.Fatalf("unexpected totals: %+v", a)
	}
}
