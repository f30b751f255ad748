package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/crmops/wallet/internal/wallet"
)

type postTransactionRequest struct {
	ActorID    string `json:"actor_id"`
	ActorLabel string `json:"actor_label"`
	// Either amount_minor or amount (decimal string, e.g. "599.00") is
	// required; amount_minor wins when both are present.
	AmountMinor int64       `json:"amount_minor,omitempty"`
	Amount      string      `json:"amount,omitempty"`
	Type        wallet.Type `json:"type"`
	Category    string      `json:"category,omitempty"`
	Description string      `json:"description,omitempty"`
}

type actorRequest struct {
	ActorID    string `json:"actor_id"`
	ActorLabel string `json:"actor_label"`
}

type transactionResponse struct {
	ID          uuid.UUID   `json:"id"`
	AmountMinor int64       `json:"amount_minor"`
	Amount      string      `json:"amount"`
	Type        wallet.Type `json:"type"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
}

type listTransactionsResponse struct {
	Items      []transactionResponse `json:"items"`
	NextCursor *string               `json:"next_cursor,omitempty"`
}

type summaryResponse struct {
	Initialized bool           `json:"initialized"`
	Balance     string         `json:"balance"`
	Income      string         `json:"income"`
	Expense     string         `json:"expense"`
	Summary     wallet.Summary `json:"summary"`
}

type migrateResponse struct {
	Count int `json:"count"`
}

func (s *Server) toTransactionResponse(t wallet.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AmountMinor: t.AmountMinor,
		Amount:      s.fmtAmount(t.AmountMinor),
		Type:        t.Type,
		Category:    t.Category,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

func (s *Server) toSummaryResponse(sum wallet.Summary, initialized bool) summaryResponse {
	return summaryResponse{
		Initialized: initialized,
		Balance:     s.fmtAmount(sum.BalanceMinor),
		Income:      s.fmtAmount(sum.IncomeMinor),
		Expense:     s.fmtAmount(sum.ExpenseMinor),
		Summary:     sum,
	}
}

func (s *Server) fmtAmount(minor int64) string {
	a, err := money.NewAmountFromMinorUnits(s.currency, minor)
	if err != nil {
		return wallet.FormatMinor(minor)
	}
	return a.String()
}
