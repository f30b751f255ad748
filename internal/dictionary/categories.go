// Package dictionary holds the curated category vocabulary surfaced to API
// clients. Categories on transactions are free text; this list only feeds
// pickers and reports.
package dictionary

import "github.com/crmops/wallet/internal/wallet"

type CategoryDef struct {
	Label string `json:"label"`
	// Fallback marks the category applied when a transaction carries none.
	Fallback bool `json:"fallback,omitempty"`
}

var curated = map[wallet.Type][]CategoryDef{
	wallet.TypeIncome: {
		{Label: "Sales"},
		{Label: "Refund Received"},
		{Label: "Cashback"},
		{Label: "Investment"},
		{Label: wallet.DefaultCategory, Fallback: true},
	},
	wallet.TypeExpense: {
		{Label: "Shipping"},
		{Label: "Packaging"},
		{Label: "Marketing"},
		{Label: "Refund Issued"},
		{Label: "Salaries"},
		{Label: "Software"},
		{Label: wallet.DefaultCategory, Fallback: true},
	},
}

// CategoriesFor returns the curated categories for one type, or for all types
// when t is nil.
func CategoriesFor(t *wallet.Type) []CategoryDef {
	if t == nil {
		out := make([]CategoryDef, 0)
		out = append(out, curated[wallet.TypeIncome]...)
		out = append(out, curated[wallet.TypeExpense]...)
		return out
	}
	return curated[*t]
}
