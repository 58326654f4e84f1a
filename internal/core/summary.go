package core

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryRollup is the budget state of one category in a month.
type CategoryRollup struct {
	CategoryID   uuid.UUID
	Name         string
	Allocated    decimal.Decimal
	Spent        decimal.Decimal
	Remaining    decimal.Decimal
	UsagePercent decimal.Decimal
	OverBudget   bool
	Budgeted     bool // false for categories with spend but no allocation
}

// MonthOverview is the allocated vs. spent vs. remaining view of a month.
type MonthOverview struct {
	Month               Month
	HasBudget           bool
	Total               decimal.Decimal
	Allocated           decimal.Decimal
	RemainingToAllocate decimal.Decimal
	Spent               decimal.Decimal
	Earned              decimal.Decimal
	Remaining           decimal.Decimal
	OverAllocated       bool
	OverBudget          bool
	Categories          []CategoryRollup
}

// BuildOverview aggregates txs for month against mb. Pass hasBudget=false
// when the month has no MonthlyBudget; totals are then zero and only spend
// is reported. Category names come from categories; unknown IDs keep an
// empty name.
func BuildOverview(month Month, mb MonthlyBudget, hasBudget bool, categories []Category, txs []Transaction) MonthOverview {
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	ov := MonthOverview{
		Month:     month,
		HasBudget: hasBudget,
		Spent:     SpentForMonth(month, txs),
		Earned:    EarnedForMonth(month, txs),
	}
	if hasBudget {
		ov.Total = mb.Total
		ov.Allocated = AllocatedTotal(mb)
		ov.RemainingToAllocate = RemainingToAllocate(mb)
		ov.OverAllocated = ov.RemainingToAllocate.IsNegative()
	}
	ov.Remaining = ov.Total.Sub(ov.Spent)
	ov.OverBudget = hasBudget && ov.Remaining.IsNegative()

	seen := make(map[uuid.UUID]struct{})
	if hasBudget {
		for _, a := range mb.Allocations {
			seen[a.CategoryID] = struct{}{}
			spent := SpentForCategory(a.CategoryID, month, txs)
			remaining := a.Allocated.Sub(spent)
			ov.Categories = append(ov.Categories, CategoryRollup{
				CategoryID:   a.CategoryID,
				Name:         names[a.CategoryID],
				Allocated:    a.Allocated,
				Spent:        spent,
				Remaining:    remaining,
				UsagePercent: usagePercent(spent, a.Allocated),
				OverBudget:   remaining.IsNegative(),
				Budgeted:     true,
			})
		}
	}

	for _, t := range txs {
		if t.Kind != Expense || t.CategoryID == nil || !month.Contains(t.Date) {
			continue
		}
		if _, ok := seen[*t.CategoryID]; ok {
			continue
		}
		seen[*t.CategoryID] = struct{}{}
		spent := SpentForCategory(*t.CategoryID, month, txs)
		ov.Categories = append(ov.Categories, CategoryRollup{
			CategoryID:   *t.CategoryID,
			Name:         names[*t.CategoryID],
			Allocated:    decimal.Zero,
			Spent:        spent,
			Remaining:    spent.Neg(),
			UsagePercent: decimal.Zero,
			OverBudget:   spent.IsPositive(),
		})
	}

	sort.SliceStable(ov.Categories, func(i, j int) bool {
		if ov.Categories[i].Budgeted != ov.Categories[j].Budgeted {
			return ov.Categories[i].Budgeted
		}
		return ov.Categories[i].Name < ov.Categories[j].Name
	})
	return ov
}
