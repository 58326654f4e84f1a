package services

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetOverviewMarchScenario(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 15), core.FastForward)
	b := NewBudgetService(store, core.FixedClock(day(2025, 3, 15)))
	food := mustCategory(t, l, "Food", core.Expense)
	rent := mustCategory(t, l, "Rent", core.Expense)
	march := core.NewMonth(2025, time.March, time.UTC)

	res, err := b.SaveBudget(ctx, march, dec("1000"), []AllocationInput{{CategoryID: food.ID, Allocated: dec("300")}})
	require.NoError(t, err)
	assert.False(t, res.OverAllocated)
	assert.True(t, res.RemainingToAllocate.Equal(dec("700")))

	for _, tr := range []core.Transaction{
		{Name: "Market", Date: day(2025, 3, 3), Amount: dec("70"), Kind: core.Expense, CategoryID: &food.ID},
		{Name: "Bakery", Date: day(2025, 3, 20), Amount: dec("50"), Kind: core.Expense, CategoryID: &food.ID},
		{Name: "Salary", Date: day(2025, 3, 27), Amount: dec("2500"), Kind: core.Income},
		{Name: "April market", Date: day(2025, 4, 1), Amount: dec("99"), Kind: core.Expense, CategoryID: &food.ID},
	} {
		_, err := l.CreateTransaction(ctx, tr)
		require.NoError(t, err)
	}

	ov, err := b.Overview(ctx, march)
	require.NoError(t, err)
	assert.True(t, ov.HasBudget)
	assert.True(t, ov.Spent.Equal(dec("120")))
	assert.True(t, ov.Earned.Equal(dec("2500")))
	assert.True(t, ov.Remaining.Equal(dec("880")))
	assert.False(t, ov.OverBudget)

	require.NotEmpty(t, ov.Categories)
	foodRow := ov.Categories[0]
	assert.Equal(t, "Food", foodRow.Name)
	assert.True(t, foodRow.Spent.Equal(dec("120")))
	assert.True(t, foodRow.UsagePercent.Equal(dec("40")), "got %s", foodRow.UsagePercent)
	assert.True(t, foodRow.Remaining.Equal(dec("180")))

	for _, row := range ov.Categories {
		assert.NotEqual(t, rent.ID, row.CategoryID, "categories without allocation or spend are omitted")
	}

	current, err := b.CurrentOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, ov.Month.String(), current.Month.String())
}

func TestSaveBudgetOverAllocationIsFlaggedNotRejected(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	b := NewBudgetService(store, core.FixedClock(day(2025, 3, 1)))
	food := mustCategory(t, l, "Food", core.Expense)
	rent := mustCategory(t, l, "Rent", core.Expense)

	res, err := b.SaveBudget(ctx, core.NewMonth(2025, time.March, time.UTC), dec("1000"), []AllocationInput{
		{CategoryID: food.ID, Allocated: dec("400")},
		{CategoryID: rent.ID, Allocated: dec("700")},
	})
	require.NoError(t, err)
	assert.True(t, res.OverAllocated)
	assert.True(t, res.RemainingToAllocate.Equal(dec("-100")))
	assert.Len(t, res.Budget.Allocations, 2)
}

func TestSaveBudgetReplacesPreviousAllocations(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	b := NewBudgetService(store, core.FixedClock(day(2025, 3, 1)))
	food := mustCategory(t, l, "Food", core.Expense)
	rent := mustCategory(t, l, "Rent", core.Expense)
	march := core.NewMonth(2025, time.March, time.UTC)

	first, err := b.SaveBudget(ctx, march, dec("1000"), []AllocationInput{
		{CategoryID: food.ID, Allocated: dec("300")},
		{CategoryID: rent.ID, Allocated: dec("600")},
	})
	require.NoError(t, err)

	second, err := b.SaveBudget(ctx, march, dec("1200"), []AllocationInput{{CategoryID: food.ID, Allocated: dec("350")}})
	require.NoError(t, err)
	assert.Equal(t, first.Budget.ID, second.Budget.ID)

	stored, ok, err := store.MonthlyBudget(ctx, march)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Total.Equal(dec("1200")))
	require.Len(t, stored.Allocations, 1)
	assert.Equal(t, food.ID, stored.Allocations[0].CategoryID)
	assert.True(t, stored.Allocations[0].Allocated.Equal(dec("350")))
}

func TestSaveBudgetRejectsInvalidAllocations(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	b := NewBudgetService(store, core.FixedClock(day(2025, 3, 1)))
	food := mustCategory(t, l, "Food", core.Expense)
	salary := mustCategory(t, l, "Salary", core.Income)
	march := core.NewMonth(2025, time.March, time.UTC)

	tests := []struct {
		name    string
		total   string
		allocs  []AllocationInput
		wantErr error
	}{
		{
			name:    "duplicate category",
			total:   "1000",
			allocs:  []AllocationInput{{CategoryID: food.ID, Allocated: dec("1")}, {CategoryID: food.ID, Allocated: dec("2")}},
			wantErr: core.ErrDuplicateAllocation,
		},
		{
			name:    "income category",
			total:   "1000",
			allocs:  []AllocationInput{{CategoryID: salary.ID, Allocated: dec("1")}},
			wantErr: core.ErrCategoryKindMismatch,
		},
		{
			name:    "unknown category",
			total:   "1000",
			allocs:  []AllocationInput{{CategoryID: uuid.New(), Allocated: dec("1")}},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "negative total",
			total:   "-1",
			wantErr: core.ErrNegativeAmount,
		},
		{
			name:    "negative allocation",
			total:   "10",
			allocs:  []AllocationInput{{CategoryID: food.ID, Allocated: dec("-1")}},
			wantErr: core.ErrNegativeAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SaveBudget(ctx, march, dec(tt.total), tt.allocs)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, ok, err := store.MonthlyBudget(ctx, march)
	require.NoError(t, err)
	assert.False(t, ok, "rejected saves leave nothing behind")
}

func TestOverviewWithoutBudgetIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	_, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	b := NewBudgetService(store, core.FixedClock(day(2025, 3, 1)))

	ov, err := b.Overview(ctx, core.NewMonth(2025, time.March, time.UTC))
	require.NoError(t, err)
	assert.False(t, ov.HasBudget)
	assert.True(t, ov.Spent.IsZero())
	assert.True(t, ov.Remaining.IsZero())
	assert.False(t, ov.OverBudget)
	assert.Empty(t, ov.Categories)

	assert.ErrorIs(t, b.DeleteBudget(ctx, core.NewMonth(2025, time.March, time.UTC)), core.ErrNotFound)
}
