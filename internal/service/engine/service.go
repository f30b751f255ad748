// Package engine implements the wallet ledger engine: atomic double-entry
// style bookkeeping over a transaction collection and its derived summary,
// plus the paginated maintenance scans (full rebuild, search-index migration).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/audit"
	"github.com/crmops/wallet/internal/authz"
	"github.com/crmops/wallet/internal/errs"
	"github.com/crmops/wallet/internal/meta"
	"github.com/crmops/wallet/internal/wallet"
)

// DefaultBatchSize bounds memory during full scans.
const DefaultBatchSize = 500

// Actor identifies who triggered a mutation, for audit purposes.
type Actor struct {
	ID    string
	Label string
}

// Cursor resumes an ordered transaction scan after the given position.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Tx is the view of the store inside one atomic unit of work. All reads
// observe a single consistent snapshot; all writes commit together or not at
// all.
type Tx interface {
	// Transaction reads a transaction by id; errs.ErrNotFound if absent.
	Transaction(id uuid.UUID) (wallet.Transaction, error)
	// Summary reads the singleton summary; ok is false if it was never written.
	Summary() (wallet.Summary, bool, error)
	// Create persists a new transaction, assigning its CreatedAt server-side.
	Create(t wallet.Transaction) wallet.Transaction
	// Delete removes a transaction by id.
	Delete(id uuid.UUID)
	// MergeDelta applies commutative increments to the summary, creating it
	// implicitly if missing. Concurrent deltas never lose updates.
	MergeDelta(d wallet.Delta)
	// PutSummary overwrites the summary wholesale within the transaction.
	PutSummary(s wallet.Summary)
}

// Store is the document-store boundary the engine runs against.
type Store interface {
	// RunAtomic executes fn inside an atomic transaction with snapshot
	// isolation. Conflicting writers are retried by the store; exhausted
	// retries or connectivity failures surface as errs.ErrTransient and
	// leave no partial state.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error
	// TransactionsPage returns up to limit transactions ordered by
	// (CreatedAt, ID) ascending, starting after the cursor (nil = start).
	TransactionsPage(ctx context.Context, after *Cursor, limit int) ([]wallet.Transaction, error)
	// SetKeywords patches a single transaction's keyword index.
	SetKeywords(ctx context.Context, id uuid.UUID, keywords []string) error
	// Summary reads the current summary outside any transaction.
	Summary(ctx context.Context) (wallet.Summary, bool, error)
	// ReplaceSummary atomically overwrites the summary document.
	ReplaceSummary(ctx context.Context, s wallet.Summary) error
}

// AddInput carries caller-supplied fields for a new transaction.
type AddInput struct {
	AmountMinor int64
	Type        wallet.Type
	Category    string
	Description string
}

// Service is the wallet ledger engine.
type Service struct {
	store     Store
	audit     audit.Log
	authz     authz.Checker
	log       *slog.Logger
	batchSize int
}

// New constructs the engine. batchSize <= 0 falls back to DefaultBatchSize.
func New(store Store, auditLog audit.Log, checker authz.Checker, logger *slog.Logger, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{store: store, audit: auditLog, authz: checker, log: logger, batchSize: batchSize}
}

// AddTransaction creates a transaction and increments the summary in one
// atomic commit. The description breakdown is not touched here; only the
// rebuild maintains it.
func (s *Service) AddTransaction(ctx context.Context, in AddInput, actor Actor) (wallet.Transaction, error) {
	if err := s.mayMutate(ctx, actor); err != nil {
		return wallet.Transaction{}, err
	}
	t, err := wallet.New(in.AmountMinor, in.Type, in.Category, in.Description)
	if err != nil {
		return wallet.Transaction{}, err
	}
	err = s.store.RunAtomic(ctx, func(tx Tx) error {
		// Read the summary first so the commit conflicts with any concurrent
		// rebuild overwriting it.
		if _, _, err := tx.Summary(); err != nil {
			return err
		}
		t = tx.Create(t)
		tx.MergeDelta(wallet.AddDelta(t))
		return nil
	})
	if err != nil {
		return wallet.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	s.recordAudit(ctx, actor, audit.ActionAddTransaction,
		"added "+string(t.Type)+" "+wallet.FormatMinor(t.AmountMinor)+" ("+t.Category+")",
		meta.Metadata{"transaction_id": t.ID.String()})
	return t, nil
}

// DeleteTransaction removes a transaction and reverses exactly its stored
// contribution. The reversal uses the snapshot-read transaction values, never
// caller-supplied ones.
func (s *Service) DeleteTransaction(ctx context.Context, id uuid.UUID, actor Actor) (wallet.Transaction, error) {
	if err := s.mayMutate(ctx, actor); err != nil {
		return wallet.Transaction{}, err
	}
	if id == uuid.Nil {
		return wallet.Transaction{}, errs.ErrInvalid
	}
	var deleted wallet.Transaction
	err := s.store.RunAtomic(ctx, func(tx Tx) error {
		t, err := tx.Transaction(id)
		if err != nil {
			return err
		}
		sum, ok, err := tx.Summary()
		if err != nil {
			return err
		}
		if !ok {
			// No summary baseline to reverse against; a rebuild must run first.
			return errs.ErrInconsistentState
		}
		next := sum.Clone()
		next.Reverse(t)
		tx.Delete(id)
		tx.PutSummary(next)
		deleted = t
		return nil
	})
	if err != nil {
		return wallet.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	s.recordAudit(ctx, actor, audit.ActionDeleteTransaction,
		"deleted "+string(deleted.Type)+" "+wallet.FormatMinor(deleted.AmountMinor)+" ("+deleted.Category+")",
		meta.Metadata{"transaction_id": deleted.ID.String()})
	return deleted, nil
}

// Recalculate rebuilds the summary from a full ordered scan of the
// transaction set and overwrites the stored summary with the result. It is
// correct independent of prior summary state and is the sole repair path for
// any drift, including the description breakdown.
func (s *Service) Recalculate(ctx context.Context, actor Actor) (wallet.Summary, error) {
	if err := s.mayMutate(ctx, actor); err != nil {
		return wallet.Summary{}, err
	}
	sum := wallet.NewSummary()
	var total int
	err := s.scan(ctx, func(page []wallet.Transaction) error {
		for i := range page {
			sum.Apply(page[i])
		}
		total += len(page)
		return nil
	})
	if err != nil {
		return wallet.Summary{}, fmt.Errorf("recalculate: %w", err)
	}
	if err := s.store.ReplaceSummary(ctx, sum); err != nil {
		return wallet.Summary{}, fmt.Errorf("recalculate: replace summary: %w", err)
	}
	s.recordAudit(ctx, actor, audit.ActionRecalculate,
		fmt.Sprintf("recalculated summary over %d transactions", total), nil)
	return sum, nil
}

// MigrateSearchIndex recomputes and persists every transaction's keyword
// index using the same paginated scan as the rebuild. Re-runnable and
// order-independent. onProgress, if non-nil, receives the cumulative count
// after each page.
func (s *Service) MigrateSearchIndex(ctx context.Context, actor Actor, onProgress func(count int)) error {
	if err := s.mayMutate(ctx, actor); err != nil {
		return err
	}
	var count int
	err := s.scan(ctx, func(page []wallet.Transaction) error {
		for i := range page {
			t := page[i]
			kws := wallet.Keywords(t.Description, t.Category, t.AmountMinor)
			if err := s.store.SetKeywords(ctx, t.ID, kws); err != nil {
				return err
			}
		}
		count += len(page)
		if onProgress != nil {
			onProgress(count)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate search index: %w", err)
	}
	s.recordAudit(ctx, actor, audit.ActionMigrateIndex,
		fmt.Sprintf("reindexed %d transactions", count), nil)
	return nil
}

// CurrentSummary reads the summary without mutating anything. ok is false
// when no summary has ever been written.
func (s *Service) CurrentSummary(ctx context.Context) (wallet.Summary, bool, error) {
	return s.store.Summary(ctx)
}

// ListTransactions returns one ordered page.
func (s *Service) ListTransactions(ctx context.Context, after *Cursor, limit int) ([]wallet.Transaction, error) {
	if limit <= 0 || limit > s.batchSize {
		limit = s.batchSize
	}
	return s.store.TransactionsPage(ctx, after, limit)
}

// SearchTransactions scans the collection for transactions whose keyword
// index contains the term. The term is lowercased; results are capped.
func (s *Service) SearchTransactions(ctx context.Context, term string, limit int) ([]wallet.Transaction, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, errs.ErrInvalid
	}
	if limit <= 0 || limit > s.batchSize {
		limit = 50
	}
	out := make([]wallet.Transaction, 0, limit)
	err := s.scan(ctx, func(page []wallet.Transaction) error {
		for i := range page {
			if wallet.MatchesPrefix(page[i].Keywords, term) {
				out = append(out, page[i])
				if len(out) >= limit {
					return errStopScan
				}
			}
		}
		return nil
	})
	if err != nil && err != errStopScan {
		return nil, err
	}
	return out, nil
}

var errStopScan = fmt.Errorf("stop scan")

// scan pages through the full transaction set in (CreatedAt, ID) order,
// stopping when a page comes back short or empty.
func (s *Service) scan(ctx context.Context, fn func(page []wallet.Transaction) error) error {
	var after *Cursor
	for {
		page, err := s.store.TransactionsPage(ctx, after, s.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < s.batchSize {
			return nil
		}
		last := page[len(page)-1]
		after = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func (s *Service) mayMutate(ctx context.Context, actor Actor) error {
	ok, err := s.authz.CanMutateWallet(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !ok {
		return errs.ErrForbidden
	}
	return nil
}

// recordAudit persists an audit entry after a successful commit. A failure
// here degrades to a warning; the financial write is never rolled back.
func (s *Service) recordAudit(ctx context.Context, actor Actor, action, desc string, md meta.Metadata) {
	e := audit.Entry{
		ActorID:     actor.ID,
		ActorLabel:  actor.Label,
		Action:      action,
		Description: desc,
		Metadata:    md,
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.Warn("audit write failed", "action", action, "actor_id", actor.ID, "err", err)
	}
}
