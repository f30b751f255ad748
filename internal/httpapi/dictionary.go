package httpapi

import (
	"net/http"

	"github.com/crmops/wallet/internal/dictionary"
	"github.com/crmops/wallet/internal/wallet"
)

// GET /v1/dictionary/categories?type=
func (s *Server) getCategoriesDictionary(w http.ResponseWriter, r *http.Request) {
	var t *wallet.Type
	if ts := r.URL.Query().Get("type"); ts != "" {
		tt := wallet.Type(ts)
		if !tt.Valid() {
			badRequest(w, "type must be income or expense")
			return
		}
		t = &tt
	}
	type categoryItem struct {
		Type       wallet.Type              `json:"type"`
		Categories []dictionary.CategoryDef `json:"categories"`
	}
	out := struct {
		Items []categoryItem `json:"items"`
	}{Items: []categoryItem{}}
	for _, typ := range []wallet.Type{wallet.TypeIncome, wallet.TypeExpense} {
		if t != nil && *t != typ {
			continue
		}
		out.Items = append(out.Items, categoryItem{Type: typ, Categories: dictionary.CategoriesFor(&typ)})
	}
	toJSON(w, http.StatusOK, out)
}
