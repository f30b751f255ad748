package postgres

// Package postgres provides a pgx-backed implementation of the engine's
// store contract and of the audit log. Atomicity comes from serializable
// transactions with a bounded retry loop on serialization failures; summary
// increments are expressed as commutative SQL updates so concurrent adds
// never lose an update. Schema lives under db/migrations.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmops/wallet/internal/audit"
	"github.com/crmops/wallet/internal/errs"
	"github.com/crmops/wallet/internal/service/engine"
	"github.com/crmops/wallet/internal/wallet"
)

// summaryKey is the fixed id of the singleton summary row.
const summaryKey = "current"

// maxTxAttempts bounds automatic retries on serialization failure.
const maxTxAttempts = 5

// Store holds a pgx pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// RunAtomic implements engine.Store. fn runs inside a serializable
// transaction; serialization failures are retried up to maxTxAttempts, then
// surface as errs.ErrTransient.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx engine.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("%w: begin: %v", errs.ErrTransient, err)
		}
		pt := &pgTx{ctx: ctx, tx: tx}
		err = fn(pt)
		if err == nil {
			err = pt.err
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%w: commit: %v", errs.ErrTransient, err)
		}
		return nil
	}
	return fmt.Errorf("%w: retries exhausted: %v", errs.ErrTransient, lastErr)
}

// TransactionsPage implements engine.Store using keyset pagination.
func (s *Store) TransactionsPage(ctx context.Context, after *engine.Cursor, limit int) ([]wallet.Transaction, error) {
	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = s.pool.Query(ctx, `
			select id, amount_minor, type, category, description, created_at, keywords
			from wallet_transactions
			order by created_at asc, id asc
			limit $1
		`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			select id, amount_minor, type, category, description, created_at, keywords
			from wallet_transactions
			where (created_at, id) > ($1, $2)
			order by created_at asc, id asc
			limit $3
		`, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]wallet.Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetKeywords implements engine.Store.
func (s *Store) SetKeywords(ctx context.Context, id uuid.UUID, keywords []string) error {
	ct, err := s.pool.Exec(ctx, `
		update wallet_transactions set keywords = $1 where id = $2
	`, keywords, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Summary implements engine.Store.
func (s *Store) Summary(ctx context.Context) (wallet.Summary, bool, error) {
	return readSummary(ctx, s.pool)
}

// ReplaceSummary implements engine.Store with a wholesale upsert.
func (s *Store) ReplaceSummary(ctx context.Context, sum wallet.Summary) error {
	return upsertSummary(ctx, s.pool, sum)
}

// Record implements audit.Log by inserting into audit_log.
func (s *Store) Record(ctx context.Context, e audit.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	md, err := e.Metadata.MarshalStableJSON()
	if err != nil {
		return err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		insert into audit_log (id, actor_id, actor_label, action, description, metadata, at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.ActorID, e.ActorLabel, e.Action, e.Description, md, at)
	return err
}

// Recent implements audit.Reader, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		select id, actor_id, actor_label, action, description, metadata, at
		from audit_log
		order by at desc, id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]audit.Entry, 0, limit)
	for rows.Next() {
		var e audit.Entry
		var md []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorLabel, &e.Action, &e.Description, &md, &e.At); err != nil {
			return nil, err
		}
		if len(md) > 0 {
			_ = e.Metadata.UnmarshalJSON(md)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// pgTx adapts a pgx transaction to engine.Tx. The interface's write methods
// carry no error returns, so the first statement error is latched and
// surfaced by RunAtomic before commit.
type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
	err error
}

func (t *pgTx) Transaction(id uuid.UUID) (wallet.Transaction, error) {
	row := t.tx.QueryRow(t.ctx, `
		select id, amount_minor, type, category, description, created_at, keywords
		from wallet_transactions where id = $1
	`, id)
	txn, err := scanTxn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return wallet.Transaction{}, errs.ErrNotFound
	}
	return txn, err
}

func (t *pgTx) Summary() (wallet.Summary, bool, error) {
	return readSummary(t.ctx, t.tx)
}

func (t *pgTx) Create(txn wallet.Transaction) wallet.Transaction {
	if t.err != nil {
		return txn
	}
	// created_at comes from the database clock, not the client.
	err := t.tx.QueryRow(t.ctx, `
		insert into wallet_transactions (id, amount_minor, type, category, description, keywords)
		values ($1,$2,$3,$4,$5,$6)
		returning created_at
	`, txn.ID, txn.AmountMinor, txn.Type, txn.Category, txn.Description, txn.Keywords).Scan(&txn.CreatedAt)
	if err != nil {
		t.err = err
	}
	return txn
}

func (t *pgTx) Delete(id uuid.UUID) {
	if t.err != nil {
		return
	}
	if _, err := t.tx.Exec(t.ctx, `delete from wallet_transactions where id = $1`, id); err != nil {
		t.err = err
	}
}

func (t *pgTx) MergeDelta(d wallet.Delta) {
	if t.err != nil {
		return
	}
	_, err := t.tx.Exec(t.ctx, `
		insert into wallet_summary (id, balance_minor, income_minor, expense_minor)
		values ($1,$2,$3,$4)
		on conflict (id) do update set
			balance_minor = wallet_summary.balance_minor + excluded.balance_minor,
			income_minor  = wallet_summary.income_minor  + excluded.income_minor,
			expense_minor = wallet_summary.expense_minor + excluded.expense_minor
	`, summaryKey, d.BalanceMinor, d.IncomeMinor, d.ExpenseMinor)
	if err != nil {
		t.err = err
		return
	}
	t.bumpBreakdown("category_income", "category_expense", d.Category)
	t.bumpBreakdown("description_income", "description_expense", d.Description)
}

// bumpBreakdown increments individual jsonb keys in place.
func (t *pgTx) bumpBreakdown(incomeCol, expenseCol string, m map[wallet.Type]map[string]int64) {
	for typ, kv := range m {
		col := incomeCol
		if typ == wallet.TypeExpense {
			col = expenseCol
		}
		for k, v := range kv {
			if t.err != nil {
				return
			}
			q := fmt.Sprintf(`
				update wallet_summary
				set %[1]s = jsonb_set(%[1]s, array[$1], to_jsonb(coalesce((%[1]s->>$1)::bigint, 0) + $2))
				where id = $3
			`, col)
			if _, err := t.tx.Exec(t.ctx, q, k, v, summaryKey); err != nil {
				t.err = err
				return
			}
		}
	}
}

func (t *pgTx) PutSummary(sum wallet.Summary) {
	if t.err != nil {
		return
	}
	if err := upsertSummary(t.ctx, t.tx, sum); err != nil {
		t.err = err
	}
}

// querier covers both pool and tx for shared summary helpers.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func readSummary(ctx context.Context, q querier) (wallet.Summary, bool, error) {
	sum := wallet.NewSummary()
	var ci, ce, di, de []byte
	err := q.QueryRow(ctx, `
		select balance_minor, income_minor, expense_minor,
		       category_income, category_expense, description_income, description_expense
		from wallet_summary where id = $1
	`, summaryKey).Scan(&sum.BalanceMinor, &sum.IncomeMinor, &sum.ExpenseMinor, &ci, &ce, &di, &de)
	if errors.Is(err, pgx.ErrNoRows) {
		return wallet.Summary{}, false, nil
	}
	if err != nil {
		return wallet.Summary{}, false, err
	}
	for _, p := range []struct {
		raw []byte
		dst *wallet.Breakdown
	}{
		{ci, &sum.Category.Income}, {ce, &sum.Category.Expense},
		{di, &sum.Description.Income}, {de, &sum.Description.Expense},
	} {
		if len(p.raw) > 0 {
			if err := json.Unmarshal(p.raw, p.dst); err != nil {
				return wallet.Summary{}, false, err
			}
		}
	}
	return sum, true, nil
}

func upsertSummary(ctx context.Context, q querier, sum wallet.Summary) error {
	ci, _ := json.Marshal(sum.Category.Income)
	ce, _ := json.Marshal(sum.Category.Expense)
	di, _ := json.Marshal(sum.Description.Income)
	de, _ := json.Marshal(sum.Description.Expense)
	_, err := q.Exec(ctx, `
		insert into wallet_summary
			(id, balance_minor, income_minor, expense_minor,
			 category_income, category_expense, description_income, description_expense)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		on conflict (id) do update set
			balance_minor = excluded.balance_minor,
			income_minor = excluded.income_minor,
			expense_minor = excluded.expense_minor,
			category_income = excluded.category_income,
			category_expense = excluded.category_expense,
			description_income = excluded.description_income,
			description_expense = excluded.description_expense
	`, summaryKey, sum.BalanceMinor, sum.IncomeMinor, sum.ExpenseMinor, ci, ce, di, de)
	return err
}

func scanTxn(row pgx.Row) (wallet.Transaction, error) {
	var t wallet.Transaction
	var typ string
	if err := row.Scan(&t.ID, &t.AmountMinor, &typ, &t.Category, &t.Description, &t.CreatedAt, &t.Keywords); err != nil {
		return wallet.Transaction{}, err
	}
	t.Type = wallet.Type(typ)
	return t, nil
}

// isSerializationFailure matches postgres serialization and deadlock errors.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
