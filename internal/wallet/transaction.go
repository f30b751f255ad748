package wallet

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crmops/wallet/internal/errs"
)

// Type classifies a transaction as money coming in or going out.
type Type string

const (
	// TypeIncome increases the wallet balance.
	TypeIncome Type = "income"
	// TypeExpense decreases the wallet balance.
	TypeExpense Type = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t Type) Valid() bool { return t == TypeIncome || t == TypeExpense }

// Default labels applied when the caller leaves the field empty.
const (
	DefaultCategory    = "Misc"
	DefaultDescription = "Unknown"
)

// Transaction is a single immutable financial event. Amounts are stored as
// positive minor units (e.g. paise); Type carries the sign.
type Transaction struct {
	ID          uuid.UUID
	AmountMinor int64
	Type        Type
	Category    string
	Description string
	// CreatedAt is assigned by the store on creation, never by the caller.
	CreatedAt time.Time
	// Keywords is the derived prefix-search index for this transaction.
	// It must be regenerated whenever description, category or amount change.
	Keywords []string
}

// New builds a Transaction from caller input, resolving defaults once at
// construction and deriving the keyword index. ID is assigned here;
// CreatedAt is left zero for the store to fill in.
func New(amountMinor int64, typ Type, category, description string) (Transaction, error) {
	if amountMinor <= 0 {
		return Transaction{}, errs.ErrInvalid
	}
	if !typ.Valid() {
		return Transaction{}, errs.ErrInvalid
	}
	if category == "" {
		category = DefaultCategory
	}
	if description == "" {
		description = DefaultDescription
	}
	return Transaction{
		ID:          uuid.New(),
		AmountMinor: amountMinor,
		Type:        typ,
		Category:    category,
		Description: description,
		Keywords:    Keywords(description, category, amountMinor),
	}, nil
}

// SignedMinor returns the transaction's contribution to the balance:
// positive for income, negative for expense.
func (t Transaction) SignedMinor() int64 {
	if t.Type == TypeExpense {
		return -t.AmountMinor
	}
	return t.AmountMinor
}

// FormatMinor renders minor units with two decimals for human-readable
// output, e.g. 59900 -> "599.00".
func FormatMinor(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	s := strconv.FormatInt(minor/100, 10) + "." + pad2(minor%100)
	if neg {
		s = "-" + s
	}
	return s
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// amountToken renders a minor-unit amount as the plain decimal string users
// type when searching, e.g. 59900 -> "599", 59950 -> "599.5".
func amountToken(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	units := minor / 100
	frac := minor % 100
	s := strconv.FormatInt(units, 10)
	switch {
	case frac == 0:
	case frac%10 == 0:
		s += "." + strconv.FormatInt(frac/10, 10)
	case frac < 10:
		s += ".0" + strconv.FormatInt(frac, 10)
	default:
		s += "." + strconv.FormatInt(frac, 10)
	}
	if neg {
		s = "-" + s
	}
	return s
}
