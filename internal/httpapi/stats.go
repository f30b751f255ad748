package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/crmops/wallet/internal/service/engine"
)

// getSummary returns the current running summary. initialized=false means no
// summary document exists yet and all totals read as zero.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok, err := s.svc.CurrentSummary(r.Context())
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toSummaryResponse(sum, ok))
}

// recalculate rebuilds the summary from the full transaction history and
// returns the rebuilt document.
func (s *Server) recalculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := decodeActor(w, r)
	if !ok {
		return
	}
	sum, err := s.svc.Recalculate(r.Context(), actor)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toSummaryResponse(sum, true))
}

// migrateSearchIndex backfills the keyword index over every stored
// transaction and reports how many were touched.
func (s *Server) migrateSearchIndex(w http.ResponseWriter, r *http.Request) {
	actor, ok := decodeActor(w, r)
	if !ok {
		return
	}
	count := 0
	err := s.svc.MigrateSearchIndex(r.Context(), actor, func(n int) { count = n })
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, migrateResponse{Count: count})
}

// listAudit returns the most recent audit entries, newest first.
func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRd == nil {
		writeErr(w, http.StatusNotFound, "audit log not readable", "not_found")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := s.auditRd.Recent(r.Context(), limit)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, entries)
}

func decodeActor(w http.ResponseWriter, r *http.Request) (engine.Actor, bool) {
	var req actorRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return engine.Actor{}, false
	}
	if req.ActorID == "" {
		badRequest(w, "actor_id is required")
		return engine.Actor{}, false
	}
	return engine.Actor{ID: req.ActorID, Label: req.ActorLabel}, true
}
