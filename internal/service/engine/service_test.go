package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/audit"
	"github.com/crmops/wallet/internal/authz"
	"github.com/crmops/wallet/internal/errs"
	"github.com/crmops/wallet/internal/service/engine"
	"github.com/crmops/wallet/internal/storage/memory"
	"github.com/crmops/wallet/internal/wallet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var owner = engine.Actor{ID: "owner", Label: "Owner"}

func setup(t *testing.T, batchSize int) (*memory.Store, *audit.MemoryLog, *engine.Service) {
	t.Helper()
	store := memory.New()
	log := audit.NewMemoryLog()
	svc := engine.New(store, log, authz.NewAllowlist(nil), testLogger(), batchSize)
	return store, log, svc
}

func addIncome(t *testing.T, svc *engine.Service, minor int64, cat, desc string) wallet.Transaction {
	t.Helper()
	txn, err := svc.AddTransaction(context.Background(), engine.AddInput{
		AmountMinor: minor, Type: wallet.TypeIncome, Category: cat, Description: desc,
	}, owner)
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	return txn
}

func addExpense(t *testing.T, svc *engine.Service, minor int64, cat, desc string) wallet.Transaction {
	t.Helper()
	txn, err := svc.AddTransaction(context.Background(), engine.AddInput{
		AmountMinor: minor, Type: wallet.TypeExpense, Category: cat, Description: desc,
	}, owner)
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	return txn
}

func TestAddTransaction_UpdatesSummary(t *testing.T) {
	store, _, svc := setup(t, 0)
	ctx := context.Background()

	txn := addIncome(t, svc, 59900, "Sales", "Order 1042")
	if txn.CreatedAt.IsZero() {
		t.Fatalf("store must assign CreatedAt")
	}

	sum, ok, err := store.Summary(ctx)
	if err != nil || !ok {
		t.Fatalf("summary: ok=%v err=%v", ok, err)
	}
	if sum.BalanceMinor != 59900 || sum.IncomeMinor != 59900 || sum.ExpenseMinor != 0 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if sum.Category.Income["Sales"] != 59900 {
		t.Fatalf("category breakdown missing: %+v", sum.Category)
	}
	// the hot add path never grows the description breakdown
	if len(sum.Description.Income) != 0 {
		t.Fatalf("description breakdown must stay empty on add: %+v", sum.Description)
	}

	addExpense(t, svc, 12500, "Shipping", "Courier fees")
	sum, _, _ = store.Summary(ctx)
	if sum.BalanceMinor != 47400 || sum.ExpenseMinor != 12500 {
		t.Fatalf("unexpected totals after expense: %+v", sum)
	}
}

func TestAddTransaction_AppliesDefaults(t *testing.T) {
	_, _, svc := setup(t, 0)
	txn := addIncome(t, svc, 100, "", "")
	if txn.Category != wallet.DefaultCategory || txn.Description != wallet.DefaultDescription {
		t.Fatalf("defaults not applied: %+v", txn)
	}
}

func TestAddTransaction_RejectsInvalidInput(t *testing.T) {
	store, _, svc := setup(t, 0)
	ctx := context.Background()

	_, err := svc.AddTransaction(ctx, engine.AddInput{AmountMinor: 0, Type: wallet.TypeIncome}, owner)
	if !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	_, err = svc.AddTransaction(ctx, engine.AddInput{AmountMinor: 100, Type: "transfer"}, owner)
	if !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("invalid input must not persist anything")
	}
}

func TestDeleteTransaction_ExactRoundTrip(t *testing.T) {
	store, _, svc := setup(t, 0)
	ctx := context.Background()

	addIncome(t, svc, 59900, "Sales", "Order 1042")
	victim := addExpense(t, svc, 12500, "Shipping", "Courier fees")

	// rebuild so the description breakdown is populated before the delete
	if _, err := svc.Recalculate(ctx, owner); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	before, _, _ := store.Summary(ctx)

	if _, err := svc.DeleteTransaction(ctx, victim.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("transaction not removed")
	}

	after, _, _ := store.Summary(ctx)
	want := before.Clone()
	want.Reverse(victim)
	if !reflect.DeepEqual(after, want) {
		t.Fatalf("delete did not reverse exactly:\n got %+v\nwant %+v", after, want)
	}
	if _, ok := after.Category.Expense["Shipping"]; ok {
		t.Fatalf("zeroed category key should be gone")
	}
}

func TestDeleteTransaction_MissingSummary(t *testing.T) {
	store, _, svc := setup(t, 0)
	txn := store.SeedTransaction(mustTxn(t, 100, wallet.TypeIncome, "Sales", "x"))

	_, err := svc.DeleteTransaction(context.Background(), txn.ID, owner)
	if !errors.Is(err, errs.ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("failed delete must not remove the transaction")
	}
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	_, _, svc := setup(t, 0)
	_, err := svc.DeleteTransaction(context.Background(), uuid.New(), owner)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMutations_ForbiddenActor(t *testing.T) {
	store := memory.New()
	svc := engine.New(store, audit.NewMemoryLog(), authz.NewAllowlist([]string{"alice"}), testLogger(), 0)
	ctx := context.Background()
	mallory := engine.Actor{ID: "mallory"}

	if _, err := svc.AddTransaction(ctx, engine.AddInput{AmountMinor: 100, Type: wallet.TypeIncome}, mallory); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("add: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.DeleteTransaction(ctx, uuid.New(), mallory); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("delete: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Recalculate(ctx, mallory); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("recalculate: expected ErrForbidden, got %v", err)
	}
	if err := svc.MigrateSearchIndex(ctx, mallory, nil); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("migrate: expected ErrForbidden, got %v", err)
	}
}

func TestAddTransaction_TransientCommitIsAtomic(t *testing.T) {
	store, _, svc := setup(t, 0)
	store.FailCommits(1)

	_, err := svc.AddTransaction(context.Background(), engine.AddInput{
		AmountMinor: 100, Type: wallet.TypeIncome,
	}, owner)
	if !errors.Is(err, errs.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed commit must leave no transaction behind")
	}
	if _, ok, _ := store.Summary(context.Background()); ok {
		t.Fatalf("failed commit must leave no summary behind")
	}
}

func TestRecalculate_RepairsDriftAcrossPages(t *testing.T) {
	// batch size 2 forces multiple pages over 5 transactions
	store, _, svc := setup(t, 2)
	ctx := context.Background()

	addIncome(t, svc, 59900, "Sales", "Order 1")
	addIncome(t, svc, 69900, "Sales", "Order 2")
	addExpense(t, svc, 10000, "Shipping", "Courier")
	addExpense(t, svc, 5000, "Packaging", "Boxes")
	addIncome(t, svc, 100, "Cashback", "Card cashback")

	// inject drift; the rebuild must be correct regardless of prior state
	store.SeedSummary(wallet.Summary{BalanceMinor: -999999})

	sum, err := svc.Recalculate(ctx, owner)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if sum.IncomeMinor != 129900 || sum.ExpenseMinor != 15000 || sum.BalanceMinor != 114900 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if sum.Category.Income["Sales"] != 129800 || sum.Category.Expense["Shipping"] != 10000 {
		t.Fatalf("unexpected category breakdown: %+v", sum.Category)
	}
	// the rebuild is the one path that maintains the description breakdown
	if sum.Description.Income["Order 1"] != 59900 || sum.Description.Expense["Boxes"] != 5000 {
		t.Fatalf("unexpected description breakdown: %+v", sum.Description)
	}
	if got := sum.Category.Income.TotalMinor(); got != sum.IncomeMinor {
		t.Fatalf("category income sum %d != income total %d", got, sum.IncomeMinor)
	}

	stored, ok, _ := store.Summary(ctx)
	if !ok || !reflect.DeepEqual(stored, sum) {
		t.Fatalf("rebuilt summary not persisted")
	}
}

func TestMigrateSearchIndex_BackfillsAndReportsProgress(t *testing.T) {
	store, _, svc := setup(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		txn := mustTxn(t, 1000+int64(i), wallet.TypeExpense, "Shipping", "Office Rent")
		txn.Keywords = nil
		store.SeedTransaction(txn)
	}

	var progress []int
	err := svc.MigrateSearchIndex(ctx, owner, func(n int) { progress = append(progress, n) })
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if want := []int{2, 4, 5}; !reflect.DeepEqual(progress, want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}

	found, err := svc.SearchTransactions(ctx, "off", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 5 {
		t.Fatalf("expected all 5 reindexed transactions, got %d", len(found))
	}
}

func TestMigrateSearchIndex_Rerunnable(t *testing.T) {
	store, _, svc := setup(t, 0)
	addIncome(t, svc, 59900, "Sales", "Order 1042")

	for i := 0; i < 2; i++ {
		if err := svc.MigrateSearchIndex(context.Background(), owner, nil); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if store.Len() != 1 {
		t.Fatalf("migration must not change the transaction count")
	}
}

func TestSearchTransactions(t *testing.T) {
	_, _, svc := setup(t, 0)
	ctx := context.Background()

	rent := addExpense(t, svc, 1200000, "Misc", "Office Rent")
	addIncome(t, svc, 59900, "Sales", "Order 1042")

	found, err := svc.SearchTransactions(ctx, "OFF", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != rent.ID {
		t.Fatalf("expected the rent transaction, got %+v", found)
	}

	// amount token
	found, _ = svc.SearchTransactions(ctx, "599", 10)
	if len(found) != 1 {
		t.Fatalf("amount search failed: %+v", found)
	}

	if found, _ := svc.SearchTransactions(ctx, "zzz", 10); len(found) != 0 {
		t.Fatalf("expected no matches, got %+v", found)
	}
	if _, err := svc.SearchTransactions(ctx, "   ", 10); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("blank term: expected ErrInvalid, got %v", err)
	}
}

func TestListTransactions_OrderAndCursor(t *testing.T) {
	_, _, svc := setup(t, 0)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, addIncome(t, svc, 100+int64(i), "Sales", "x").ID)
	}

	first, err := svc.ListTransactions(ctx, nil, 3)
	if err != nil || len(first) != 3 {
		t.Fatalf("first page: %v %d", err, len(first))
	}
	last := first[len(first)-1]
	rest, err := svc.ListTransactions(ctx, &engine.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, 3)
	if err != nil || len(rest) != 2 {
		t.Fatalf("second page: %v %d", err, len(rest))
	}
	got := append(first, rest...)
	for i, txn := range got {
		if txn.ID != ids[i] {
			t.Fatalf("order mismatch at %d", i)
		}
		if i > 0 && got[i-1].CreatedAt.After(txn.CreatedAt) {
			t.Fatalf("timestamps out of order")
		}
	}
}

func TestAuditTrail(t *testing.T) {
	_, log, svc := setup(t, 0)
	ctx := context.Background()

	txn := addIncome(t, svc, 59900, "Sales", "Order 1042")
	if _, err := svc.Recalculate(ctx, owner); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if _, err := svc.DeleteTransaction(ctx, txn.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.MigrateSearchIndex(ctx, owner, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	entries := log.Entries()
	wantActions := []string{
		audit.ActionAddTransaction,
		audit.ActionRecalculate,
		audit.ActionDeleteTransaction,
		audit.ActionMigrateIndex,
	}
	if len(entries) != len(wantActions) {
		t.Fatalf("expected %d audit entries, got %d", len(wantActions), len(entries))
	}
	for i, e := range entries {
		if e.Action != wantActions[i] {
			t.Fatalf("entry %d action = %s, want %s", i, e.Action, wantActions[i])
		}
		if e.ActorID != owner.ID {
			t.Fatalf("entry %d actor = %s", i, e.ActorID)
		}
	}
	if entries[0].Metadata["transaction_id"] != txn.ID.String() {
		t.Fatalf("add entry missing transaction id: %+v", entries[0].Metadata)
	}
}

func TestAuditFailure_DoesNotFailOperation(t *testing.T) {
	store := memory.New()
	log := audit.NewMemoryLog()
	log.FailWith = errors.New("audit store down")
	svc := engine.New(store, log, authz.NewAllowlist(nil), testLogger(), 0)

	if _, err := svc.AddTransaction(context.Background(), engine.AddInput{
		AmountMinor: 100, Type: wallet.TypeIncome,
	}, owner); err != nil {
		t.Fatalf("add must succeed despite audit failure: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("transaction not persisted")
	}
}

func mustTxn(t *testing.T, minor int64, typ wallet.Type, cat, desc string) wallet.Transaction {
	t.Helper()
	txn, err := wallet.New(minor, typ, cat, desc)
	if err != nil {
		t.Fatalf("wallet.New: %v", err)
	}
	return txn
}
