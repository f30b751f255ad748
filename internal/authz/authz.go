// Package authz answers the single question the wallet engine asks before
// touching the store: may this actor mutate the wallet?
package authz

import "context"

// Checker yields a per-actor wallet-mutation decision.
type Checker interface {
	CanMutateWallet(ctx context.Context, actorID string) (bool, error)
}

// Allowlist permits exactly the listed actor IDs. An empty list permits
// everyone, which matches the development default.
type Allowlist struct {
	ids map[string]struct{}
}

// NewAllowlist builds a Checker from actor IDs.
func NewAllowlist(actorIDs []string) *Allowlist {
	ids := make(map[string]struct{}, len(actorIDs))
	for _, id := range actorIDs {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return &Allowlist{ids: ids}
}

// CanMutateWallet implements Checker.
func (a *Allowlist) CanMutateWallet(_ context.Context, actorID string) (bool, error) {
	if len(a.ids) == 0 {
		return true, nil
	}
	_, ok := a.ids[actorID]
	return ok, nil
}
