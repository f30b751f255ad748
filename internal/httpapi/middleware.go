package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/govalues/money"

	"github.com/crmops/wallet/internal/service/engine"
)

type ctxKey string

const ctxKeyPostTransaction ctxKey = "validatedPostTransaction"

// validatePostTransaction parses and validates the POST /v1/transactions body
// and stores the resulting engine input in the request context.
func (s *Server) validatePostTransaction() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postTransactionRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.ActorID == "" {
				badRequest(w, "actor_id is required")
				return
			}
			if !req.Type.Valid() {
				badRequest(w, "type must be income or expense")
				return
			}
			minor := req.AmountMinor
			if minor == 0 && req.Amount != "" {
				a, err := money.ParseAmount(s.currency, req.Amount)
				if err != nil {
					badRequest(w, "invalid amount: "+err.Error())
					return
				}
				minor, _ = a.MinorUnits()
			}
			if minor <= 0 {
				badRequest(w, "amount must be a positive number")
				return
			}
			in := validatedPost{
				input: engine.AddInput{
					AmountMinor: minor,
					Type:        req.Type,
					Category:    req.Category,
					Description: req.Description,
				},
				actor: engine.Actor{ID: req.ActorID, Label: req.ActorLabel},
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostTransaction, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type validatedPost struct {
	input engine.AddInput
	actor engine.Actor
}
