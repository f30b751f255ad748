package memory

// Package memory provides an in-memory implementation of the engine's store
// contract, used for development and tests. Transactions are staged and
// applied on commit, so a failed commit leaves no partial state.
import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/errs"
	"github.com/crmops/wallet/internal/service/engine"
	"github.com/crmops/wallet/internal/wallet"
)

// txnKey orders transactions asc by (CreatedAt, ID) for paged scans.
type txnKey struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Store is an in-memory document store guarded by a mutex. Holding the lock
// for the whole atomic unit gives snapshot isolation trivially.
type Store struct {
	mu      sync.Mutex
	txns    map[uuid.UUID]wallet.Transaction
	keys    []txnKey
	summary *wallet.Summary
	// lastCreated enforces monotonic server-assigned timestamps.
	lastCreated time.Time
	// failCommits makes the next n commits fail with errs.ErrTransient,
	// simulating conflict-retry exhaustion.
	failCommits int
}

// New constructs an empty store.
func New() *Store {
	return &Store{txns: make(map[uuid.UUID]wallet.Transaction)}
}

// Reset clears all state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns = make(map[uuid.UUID]wallet.Transaction)
	s.keys = nil
	s.summary = nil
	s.lastCreated = time.Time{}
	s.failCommits = 0
}

// FailCommits makes the next n RunAtomic commits fail atomically.
func (s *Store) FailCommits(n int) {
	s.mu.Lock()
	s.failCommits = n
	s.mu.Unlock()
}

// SeedTransaction inserts a transaction directly, assigning CreatedAt when
// zero. Test helper.
func (s *Store) SeedTransaction(t wallet.Transaction) wallet.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.nextCreatedLocked()
	}
	s.insertLocked(t)
	return t
}

// SeedSummary overwrites the stored summary directly. Test helper for
// injecting drift.
func (s *Store) SeedSummary(sum wallet.Summary) {
	s.mu.Lock()
	c := sum.Clone()
	s.summary = &c
	s.mu.Unlock()
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

// RunAtomic implements engine.Store. Writes are buffered in the tx and
// applied only on successful commit.
func (s *Store) RunAtomic(_ context.Context, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stage := &stagedTx{store: s}
	if err := fn(stage); err != nil {
		return err
	}
	if s.failCommits > 0 {
		s.failCommits--
		return errs.ErrTransient
	}
	stage.applyLocked()
	return nil
}

// TransactionsPage implements engine.Store.
func (s *Store) TransactionsPage(_ context.Context, after *engine.Cursor, limit int) ([]wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if after != nil {
		k := txnKey{CreatedAt: after.CreatedAt, ID: after.ID}
		start = sort.Search(len(s.keys), func(i int) bool { return keyAfter(s.keys[i], k) })
	}
	out := make([]wallet.Transaction, 0, limit)
	for i := start; i < len(s.keys) && len(out) < limit; i++ {
		if t, ok := s.txns[s.keys[i].ID]; ok {
			out = append(out, cloneTxn(t))
		}
	}
	return out, nil
}

// SetKeywords implements engine.Store.
func (s *Store) SetKeywords(_ context.Context, id uuid.UUID, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[id]
	if !ok {
		return errs.ErrNotFound
	}
	t.Keywords = append([]string(nil), keywords...)
	s.txns[id] = t
	return nil
}

// Summary implements engine.Store.
func (s *Store) Summary(_ context.Context) (wallet.Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return wallet.Summary{}, false, nil
	}
	return s.summary.Clone(), true, nil
}

// ReplaceSummary implements engine.Store.
func (s *Store) ReplaceSummary(_ context.Context, sum wallet.Summary) error {
	s.mu.Lock()
	c := sum.Clone()
	s.summary = &c
	s.mu.Unlock()
	return nil
}

// stagedTx buffers writes until commit. Reads see the pre-transaction state,
// which is a stable snapshot because the store lock is held throughout.
type stagedTx struct {
	store      *Store
	creates    []wallet.Transaction
	deletes    []uuid.UUID
	deltas     []wallet.Delta
	putSummary *wallet.Summary
}

func (tx *stagedTx) Transaction(id uuid.UUID) (wallet.Transaction, error) {
	t, ok := tx.store.txns[id]
	if !ok {
		return wallet.Transaction{}, errs.ErrNotFound
	}
	return cloneTxn(t), nil
}

func (tx *stagedTx) Summary() (wallet.Summary, bool, error) {
	if tx.store.summary == nil {
		return wallet.Summary{}, false, nil
	}
	return tx.store.summary.Clone(), true, nil
}

func (tx *stagedTx) Create(t wallet.Transaction) wallet.Transaction {
	t.CreatedAt = tx.store.nextCreatedLocked()
	tx.creates = append(tx.creates, cloneTxn(t))
	return t
}

func (tx *stagedTx) Delete(id uuid.UUID) { tx.deletes = append(tx.deletes, id) }

func (tx *stagedTx) MergeDelta(d wallet.Delta) { tx.deltas = append(tx.deltas, d) }

func (tx *stagedTx) PutSummary(sum wallet.Summary) {
	c := sum.Clone()
	tx.putSummary = &c
}

// applyLocked commits the buffered writes. Caller holds the store lock.
func (tx *stagedTx) applyLocked() {
	for _, t := range tx.creates {
		tx.store.insertLocked(t)
	}
	for _, id := range tx.deletes {
		tx.store.removeLocked(id)
	}
	if tx.putSummary != nil {
		tx.store.summary = tx.putSummary
	}
	for _, d := range tx.deltas {
		if tx.store.summary == nil {
			s := wallet.NewSummary()
			tx.store.summary = &s
		}
		tx.store.summary.Merge(d)
	}
}

// nextCreatedLocked returns a server-assigned timestamp that is strictly
// monotonic per write.
func (s *Store) nextCreatedLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = now
	return now
}

// insertLocked stores t and inserts its key into the sorted index.
func (s *Store) insertLocked(t wallet.Transaction) {
	s.txns[t.ID] = t
	k := txnKey{CreatedAt: t.CreatedAt, ID: t.ID}
	i := sort.Search(len(s.keys), func(i int) bool { return keyAfter(s.keys[i], k) })
	if i == len(s.keys) {
		s.keys = append(s.keys, k)
		return
	}
	s.keys = append(s.keys, txnKey{})
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = k
}

func (s *Store) removeLocked(id uuid.UUID) {
	t, ok := s.txns[id]
	if !ok {
		return
	}
	delete(s.txns, id)
	k := txnKey{CreatedAt: t.CreatedAt, ID: t.ID}
	i := sort.Search(len(s.keys), func(i int) bool { return !keyAfter(k, s.keys[i]) })
	if i < len(s.keys) && s.keys[i] == k {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
}

// keyAfter reports a > b in (CreatedAt, ID) order.
func keyAfter(a, b txnKey) bool {
	if a.CreatedAt.After(b.CreatedAt) {
		return true
	}
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() > b.ID.String()
	}
	return false
}

func cloneTxn(t wallet.Transaction) wallet.Transaction {
	t.Keywords = append([]string(nil), t.Keywords...)
	return t
}
