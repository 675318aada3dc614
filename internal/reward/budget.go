package reward

import "github.com/shopspring/decimal"

// BudgetTracker clamps per-user rewards against the remaining global PSWAP
// budget within one run. Grant order matters: the deterministic user
// processing order decides who receives the last partial allocation.
type BudgetTracker struct {
	max  decimal.Decimal
	paid decimal.Decimal
}

func NewBudgetTracker(max, alreadyPaid decimal.Decimal) *BudgetTracker {
	return &BudgetTracker{max: max, paid: alreadyPaid}
}

// Exhausted reports whether the whole budget has been paid out.
func (t *BudgetTracker) Exhausted() bool {
	return t.paid.GreaterThanOrEqual(t.max)
}

// Grant returns the amount actually awarded for the requested reward and
// records it: zero when the budget is exhausted, the remaining budget when
// the reward would overflow it (truncate, don't skip), otherwise the full
// reward.
func (t *BudgetTracker) Grant(requested decimal.Decimal) decimal.Decimal {
	if t.Exhausted() {
		return decimal.Zero
	}
	if t.paid.Add(requested).LessThan(t.max) {
		t.paid = t.paid.Add(requested)
		return requested
	}
	granted := t.max.Sub(t.paid)
	t.paid = t.max
	return granted
}

// Paid returns the cumulative amount paid including prior runs.
func (t *BudgetTracker) Paid() decimal.Decimal {
	return t.paid
}
