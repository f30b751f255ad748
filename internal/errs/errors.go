package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid")
	// ErrInconsistentState indicates the wallet summary is missing where an
	// operation needs it as a baseline; the remedy is a full recalculation.
	ErrInconsistentState = errors.New("inconsistent_state")
	// ErrTransient indicates an atomic commit failed (conflict retries
	// exhausted or connectivity); the whole operation is safe to retry.
	ErrTransient = errors.New("transient_store_error")
)
