package core

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SpentForCategory sums Expense transactions of categoryID dated in month.
func SpentForCategory(categoryID uuid.UUID, month Month, txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Kind == Expense && refersTo(t.CategoryID, categoryID) && month.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// SpentForMonth sums every Expense transaction dated in month.
func SpentForMonth(month Month, txs []Transaction) decimal.Decimal {
	return sumKind(Expense, month, txs)
}

// EarnedForMonth sums every Income transaction dated in month.
func EarnedForMonth(month Month, txs []Transaction) decimal.Decimal {
	return sumKind(Income, month, txs)
}

func sumKind(kind Kind, month Month, txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Kind == kind && month.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// CategoryUsagePercent is spent / allocated * 100 for the allocation's month
// and category, or 0 when nothing is allocated. The result is not clamped.
func CategoryUsagePercent(cb CategoryBudget, txs []Transaction) decimal.Decimal {
	return usagePercent(SpentForCategory(cb.CategoryID, cb.Month, txs), cb.Allocated)
}

func usagePercent(spent, allocated decimal.Decimal) decimal.Decimal {
	if allocated.IsZero() {
		return decimal.Zero
	}
	return spent.Div(allocated).Mul(hundred)
}

// MonthlyRemaining is the budget total minus all expenses of its month.
// Negative means over budget.
func MonthlyRemaining(mb MonthlyBudget, txs []Transaction) decimal.Decimal {
	return mb.Total.Sub(SpentForMonth(mb.Month, txs))
}

// AllocatedTotal sums the budget's category allocations.
func AllocatedTotal(mb MonthlyBudget) decimal.Decimal {
	total := decimal.Zero
	for _, a := range mb.Allocations {
		total = total.Add(a.Allocated)
	}
	return total
}

// RemainingToAllocate is the total minus allocations. Negative values mean
// the month is over-allocated, which is allowed.
func RemainingToAllocate(mb MonthlyBudget) decimal.Decimal {
	return mb.Total.Sub(AllocatedTotal(mb))
}

// IsOverAllocated reports whether allocations exceed the total.
func IsOverAllocated(mb MonthlyBudget) bool {
	return RemainingToAllocate(mb).IsNegative()
}
