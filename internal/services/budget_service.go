package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BudgetService struct {
	store ports.Store
	clock core.Clock
}

func NewBudgetService(store ports.Store, clock core.Clock) *BudgetService {
	return &BudgetService{store: store, clock: clock}
}

// AllocationInput assigns part of a month's budget to an expense category.
type AllocationInput struct {
	CategoryID uuid.UUID
	Allocated  decimal.Decimal
}

// SaveResult carries the stored budget and the over-allocation warning.
type SaveResult struct {
	Budget              core.MonthlyBudget
	OverAllocated       bool
	RemainingToAllocate decimal.Decimal
}

// SaveBudget creates or overwrites the budget of month. The given
// allocations replace every allocation previously stored for that month.
// Allocating more than total is allowed and reported in the result.
func (s *BudgetService) SaveBudget(ctx context.Context, month core.Month, total decimal.Decimal, allocations []AllocationInput) (SaveResult, error) {
	mb := core.MonthlyBudget{Month: month, Total: total}
	for _, a := range allocations {
		mb.Allocations = append(mb.Allocations, core.CategoryBudget{
			CategoryID: a.CategoryID,
			Month:      month,
			Allocated:  a.Allocated,
		})
	}
	if err := mb.Validate(); err != nil {
		return SaveResult{}, err
	}

	if len(allocations) > 0 {
		cats, err := s.store.Categories(ctx, core.CategoryFilter{})
		if err != nil {
			return SaveResult{}, persistErr("save budget", err)
		}
		byID := make(map[uuid.UUID]core.Category, len(cats))
		for _, c := range cats {
			byID[c.ID] = c
		}
		for _, a := range allocations {
			c, ok := byID[a.CategoryID]
			if !ok {
				return SaveResult{}, fmt.Errorf("allocation category %s: %w", a.CategoryID, core.ErrNotFound)
			}
			if err := core.CheckCategoryKind(c, core.Expense); err != nil {
				return SaveResult{}, err
			}
		}
	}

	var saved core.MonthlyBudget
	if err := withTx(ctx, s.store, "save budget", func(tx ports.Tx) error {
		var err error
		saved, err = tx.SaveMonthlyBudget(ctx, mb)
		return err
	}); err != nil {
		return SaveResult{}, err
	}

	res := SaveResult{
		Budget:              saved,
		OverAllocated:       core.IsOverAllocated(saved),
		RemainingToAllocate: core.RemainingToAllocate(saved),
	}
	if res.OverAllocated {
		slog.WarnContext(ctx, "Budget is over-allocated",
			"month", month.String(),
			"total", total.String(),
			"remaining_to_allocate", res.RemainingToAllocate.String())
	}
	slog.InfoContext(ctx, "Saved monthly budget",
		"month", month.String(),
		"allocations", len(saved.Allocations))
	return res, nil
}

// Overview aggregates the month from a fresh read of the store. A month
// without a budget still reports its spending.
func (s *BudgetService) Overview(ctx context.Context, month core.Month) (core.MonthOverview, error) {
	mb, ok, err := s.store.MonthlyBudget(ctx, month)
	if err != nil {
		return core.MonthOverview{}, persistErr("load budget", err)
	}
	cats, err := s.store.Categories(ctx, core.CategoryFilter{})
	if err != nil {
		return core.MonthOverview{}, persistErr("load categories", err)
	}
	txs, err := s.store.Transactions(ctx, core.ForMonth(month))
	if err != nil {
		return core.MonthOverview{}, persistErr("load transactions", err)
	}
	return core.BuildOverview(month, mb, ok, cats, txs), nil
}

// CurrentOverview is Overview for the month containing the clock's now.
func (s *BudgetService) CurrentOverview(ctx context.Context) (core.MonthOverview, error) {
	return s.Overview(ctx, core.MonthOf(s.clock.Now()))
}

func (s *BudgetService) DeleteBudget(ctx context.Context, month core.Month) error {
	return withTx(ctx, s.store, "delete budget", func(tx ports.Tx) error {
		return tx.DeleteMonthlyBudget(ctx, month)
	})
}
