package httpapi

import (
	"errors"
	"net/http"

	"github.com/crmops/wallet/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }

// writeEngineErr maps engine sentinel errors to HTTP statuses.
func writeEngineErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
	case errors.Is(err, errs.ErrForbidden):
		writeErr(w, http.StatusForbidden, "actor may not mutate the wallet", "forbidden")
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "not_found")
	case errors.Is(err, errs.ErrInconsistentState):
		writeErr(w, http.StatusConflict, "summary missing; run a recalculation first", "inconsistent_state")
	case errors.Is(err, errs.ErrTransient):
		writeErr(w, http.StatusServiceUnavailable, "store commit failed; retry the operation", "transient_store_error")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}
