// Package audit records who did what to the wallet. Writes happen after the
// financial commit; a failed audit write is reported to the caller but never
// rolls back the money movement.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/meta"
)

// Action codes recorded by the wallet engine.
const (
	ActionAddTransaction    = "wallet.transaction.add"
	ActionDeleteTransaction = "wallet.transaction.delete"
	ActionRecalculate       = "wallet.stats.recalculate"
	ActionMigrateIndex      = "wallet.search_index.migrate"
)

// Entry is one persisted audit record.
type Entry struct {
	ID          uuid.UUID     `json:"id"`
	ActorID     string        `json:"actor_id"`
	ActorLabel  string        `json:"actor_label"`
	Action      string        `json:"action"`
	Description string        `json:"description"`
	Metadata    meta.Metadata `json:"metadata,omitempty"`
	At          time.Time     `json:"at"`
}

// Log accepts audit entries for persistence.
type Log interface {
	Record(ctx context.Context, e Entry) error
}

// Reader exposes the recorded trail, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// MemoryLog is an in-memory Log for development and tests.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
	// FailWith, when set, makes Record return the error without storing.
	FailWith error
}

// NewMemoryLog constructs an empty in-memory audit log.
func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

// Record stores the entry, assigning ID and timestamp if unset.
func (l *MemoryLog) Record(_ context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWith != nil {
		return l.FailWith
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a copy of all recorded entries, oldest first.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent implements Reader, newest first.
func (l *MemoryLog) Recent(_ context.Context, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}
