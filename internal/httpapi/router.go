// Package httpapi wires the HTTP surface of the wallet service.
// Handlers stay thin; bookkeeping rules live in the engine.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/audit"
	"github.com/crmops/wallet/internal/service/engine"
	"github.com/crmops/wallet/internal/wallet"
)

// Engine is the slice of the ledger engine the API consumes.
type Engine interface {
	AddTransaction(ctx context.Context, in engine.AddInput, actor engine.Actor) (wallet.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID, actor engine.Actor) (wallet.Transaction, error)
	Recalculate(ctx context.Context, actor engine.Actor) (wallet.Summary, error)
	MigrateSearchIndex(ctx context.Context, actor engine.Actor, onProgress func(int)) error
	CurrentSummary(ctx context.Context) (wallet.Summary, bool, error)
	ListTransactions(ctx context.Context, after *engine.Cursor, limit int) ([]wallet.Transaction, error)
	SearchTransactions(ctx context.Context, term string, limit int) ([]wallet.Transaction, error)
}

// ReadyChecker reports backing-store connectivity for /readyz.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server wires handlers and middleware using Chi.
type Server struct {
	svc      Engine
	auditRd  audit.Reader
	ready    ReadyChecker
	currency string
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware. ready may be
// nil when the backing store needs no connectivity check.
func New(svc Engine, auditRd audit.Reader, ready ReadyChecker, currency string, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{svc: svc, auditRd: auditRd, ready: ready, currency: currency, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and per-route middleware.
func (s *Server) routes() {
	// Wallet transactions (v1)
	s.rt.With(s.validatePostTransaction()).Post("/v1/transactions", s.postTransaction)
	s.rt.Get("/v1/transactions", s.listTransactions)
	s.rt.Get("/v1/transactions/search", s.searchTransactions)
	s.rt.Delete("/v1/transactions/{id}", s.deleteTransaction)
	// Summary + maintenance (v1)
	s.rt.Get("/v1/summary", s.getSummary)
	s.rt.Post("/v1/summary/recalculate", s.recalculate)
	s.rt.Post("/v1/search-index/migrate", s.migrateSearchIndex)
	// Category vocabulary for client pickers (v1)
	s.rt.Get("/v1/dictionary/categories", s.getCategoriesDictionary)
	// Audit trail (v1)
	s.rt.Get("/v1/audit", s.listAudit)
	// Health + metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
