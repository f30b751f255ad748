package wallet

// Breakdown holds per-label running totals for one transaction type.
// Values are non-negative minor units.
type Breakdown map[string]int64

// Clone returns a deep copy; nil stays usable as an empty map.
func (b Breakdown) Clone() Breakdown {
	out := make(Breakdown, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// TotalMinor sums all label totals in the breakdown.
func (b Breakdown) TotalMinor() int64 {
	var sum int64
	for _, v := range b {
		sum += v
	}
	return sum
}

// BreakdownSet groups the income and expense breakdowns of one dimension
// (category or description).
type BreakdownSet struct {
	Income  Breakdown `json:"income"`
	Expense Breakdown `json:"expense"`
}

func newBreakdownSet() BreakdownSet {
	return BreakdownSet{Income: Breakdown{}, Expense: Breakdown{}}
}

func (s BreakdownSet) clone() BreakdownSet {
	return BreakdownSet{Income: s.Income.Clone(), Expense: s.Expense.Clone()}
}

// ByType returns the breakdown for the given transaction type.
func (s BreakdownSet) ByType(t Type) Breakdown {
	if t == TypeExpense {
		return s.Expense
	}
	return s.Income
}

// Summary is the singleton aggregate over all live transactions.
// Invariant: BalanceMinor == IncomeMinor - ExpenseMinor, and each breakdown's
// per-type sum equals the corresponding total (exactly after a rebuild; the
// description breakdown is allowed to lag between rebuilds, see Apply).
type Summary struct {
	BalanceMinor int64        `json:"balance_minor"`
	IncomeMinor  int64        `json:"income_minor"`
	ExpenseMinor int64        `json:"expense_minor"`
	Category     BreakdownSet `json:"category_breakdown"`
	Description  BreakdownSet `json:"description_breakdown"`
}

// NewSummary returns an all-zero summary with initialized maps.
func NewSummary() Summary {
	return Summary{Category: newBreakdownSet(), Description: newBreakdownSet()}
}

// Clone returns a deep copy of the summary.
func (s Summary) Clone() Summary {
	out := s
	out.Category = s.Category.clone()
	out.Description = s.Description.clone()
	return out
}

// Delta is a set of commutative increments to apply to the summary. Breakdown
// increments carry their own sign; concurrent deltas merge in any order.
type Delta struct {
	BalanceMinor int64
	IncomeMinor  int64
	ExpenseMinor int64
	Category     map[Type]map[string]int64
	Description  map[Type]map[string]int64
}

// AddDelta is the increment applied when t is created. The description
// breakdown is deliberately left out of the hot add path: description is
// free text with unbounded cardinality, and the summary document must stay
// small. Only Recalculate maintains it.
func AddDelta(t Transaction) Delta {
	d := Delta{
		BalanceMinor: t.SignedMinor(),
		Category:     map[Type]map[string]int64{t.Type: {t.Category: t.AmountMinor}},
	}
	if t.Type == TypeExpense {
		d.ExpenseMinor = t.AmountMinor
	} else {
		d.IncomeMinor = t.AmountMinor
	}
	return d
}

// Merge folds a delta into the summary in place, creating breakdown keys as
// needed. No clamping: deltas are raw increments.
func (s *Summary) Merge(d Delta) {
	if s.Category.Income == nil {
		s.Category = newBreakdownSet()
	}
	if s.Description.Income == nil {
		s.Description = newBreakdownSet()
	}
	s.BalanceMinor += d.BalanceMinor
	s.IncomeMinor += d.IncomeMinor
	s.ExpenseMinor += d.ExpenseMinor
	for typ, m := range d.Category {
		b := s.Category.ByType(typ)
		for k, v := range m {
			b[k] += v
		}
	}
	for typ, m := range d.Description {
		b := s.Description.ByType(typ)
		for k, v := range m {
			b[k] += v
		}
	}
}

// Apply replays t's full contribution, including the description breakdown.
// Used by the rebuild, which derives the summary from scratch.
func (s *Summary) Apply(t Transaction) {
	s.Merge(AddDelta(t))
	s.Description.ByType(t.Type)[t.Description] += t.AmountMinor
}

// Reverse cancels t's contribution using the stored transaction values.
// Every conceptually non-negative field is clamped at zero so pre-existing
// drift can never push a running total negative; the signed balance is not
// clamped.
func (s *Summary) Reverse(t Transaction) {
	s.BalanceMinor -= t.SignedMinor()
	if t.Type == TypeExpense {
		s.ExpenseMinor = clampSub(s.ExpenseMinor, t.AmountMinor)
	} else {
		s.IncomeMinor = clampSub(s.IncomeMinor, t.AmountMinor)
	}
	reverseKey(s.Category.ByType(t.Type), t.Category, t.AmountMinor)
	reverseKey(s.Description.ByType(t.Type), t.Description, t.AmountMinor)
}

// reverseKey decrements one breakdown label, dropping it once it reaches zero
// so an add/delete round trip leaves the map exactly as it was.
func reverseKey(b Breakdown, key string, by int64) {
	next := clampSub(b[key], by)
	if next == 0 {
		delete(b, key)
		return
	}
	b[key] = next
}

func clampSub(cur, by int64) int64 {
	if cur <= by {
		return 0
	}
	return cur - by
}
