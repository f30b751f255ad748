package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/service/engine"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// postTransaction records a new wallet transaction. The body has already been
// validated by validatePostTransaction.
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyPostTransaction).(validatedPost)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "request not validated", "")
		return
	}
	t, err := s.svc.AddTransaction(r.Context(), in.input, in.actor)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toTransactionResponse(t))
}

// listTransactions returns a page of transactions in (created_at, id) order.
// Pagination uses an opaque cursor returned alongside each full page.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	var after *engine.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		c, err := decodeCursor(raw)
		if err != nil {
			badRequest(w, "invalid cursor")
			return
		}
		after = &c
	}

	items, err := s.svc.ListTransactions(r.Context(), after, limit)
	if err != nil {
		writeEngineErr(w, err)
		return
	}

	resp := listTransactionsResponse{Items: make([]transactionResponse, 0, len(items))}
	for _, t := range items {
		resp.Items = append(resp.Items, s.toTransactionResponse(t))
	}
	if len(items) == limit {
		last := items[len(items)-1]
		c := encodeCursor(engine.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		resp.NextCursor = &c
	}
	toJSON(w, http.StatusOK, resp)
}

// searchTransactions matches the query term against the keyword index.
func (s *Server) searchTransactions(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		badRequest(w, "q is required")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	items, err := s.svc.SearchTransactions(r.Context(), term, limit)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	resp := listTransactionsResponse{Items: make([]transactionResponse, 0, len(items))}
	for _, t := range items {
		resp.Items = append(resp.Items, s.toTransactionResponse(t))
	}
	toJSON(w, http.StatusOK, resp)
}

// deleteTransaction removes a transaction and rolls its contribution out of
// the summary. The acting user is passed via query parameters so the body
// stays empty.
func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}
	actorID := r.URL.Query().Get("actor_id")
	if actorID == "" {
		badRequest(w, "actor_id is required")
		return
	}
	actor := engine.Actor{ID: actorID, Label: r.URL.Query().Get("actor_label")}

	t, err := s.svc.DeleteTransaction(r.Context(), id, actor)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toTransactionResponse(t))
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultPageLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultPageLimit
	}
	if n > maxPageLimit {
		return maxPageLimit
	}
	return n
}

// Cursors are base64("<RFC3339Nano created_at>|<uuid>"). Opaque to clients.
func encodeCursor(c engine.Cursor) string {
	raw := c.CreatedAt.Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (engine.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return engine.Cursor{}, err
	}
	at, idStr, ok := strings.Cut(string(raw), "|")
	if !ok {
		return engine.Cursor{}, errInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return engine.Cursor{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return engine.Cursor{}, err
	}
	return engine.Cursor{CreatedAt: ts, ID: id}, nil
}

var errInvalidCursor = errors.New("malformed cursor")
