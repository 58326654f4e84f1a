package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOverview(t *testing.T) {
	mb, food, txs := marchFixture()
	transport := uuid.New()
	txs = append(txs, Transaction{Name: "Bus", Date: date(2025, 3, 12), Amount: dec("40"), Kind: Expense, CategoryID: &transport})

	cats := []Category{
		{ID: food, Name: "Food", Kind: Expense},
		{ID: transport, Name: "Transport", Kind: Expense},
	}

	ov := BuildOverview(mb.Month, mb, true, cats, txs)

	assert.True(t, ov.HasBudget)
	assert.True(t, ov.Total.Equal(dec("1000")))
	assert.True(t, ov.Allocated.Equal(dec("300")))
	assert.True(t, ov.RemainingToAllocate.Equal(dec("700")))
	assert.True(t, ov.Spent.Equal(dec("160")))
	assert.True(t, ov.Remaining.Equal(dec("840")))
	assert.True(t, ov.Earned.Equal(dec("2520")))
	assert.False(t, ov.OverAllocated)
	assert.False(t, ov.OverBudget)

	require.Len(t, ov.Categories, 2)
	foodRow := ov.Categories[0]
	assert.Equal(t, "Food", foodRow.Name)
	assert.True(t, foodRow.Budgeted)
	assert.True(t, foodRow.Spent.Equal(dec("120")))
	assert.True(t, foodRow.Remaining.Equal(dec("180")))
	assert.True(t, foodRow.UsagePercent.Equal(dec("40")))

	unbudgeted := ov.Categories[1]
	assert.Equal(t, "Transport", unbudgeted.Name)
	assert.False(t, unbudgeted.Budgeted)
	assert.True(t, unbudgeted.Spent.Equal(dec("40")))
	assert.True(t, unbudgeted.OverBudget)
}

func TestBuildOverviewWithoutBudget(t *testing.T) {
	_, food, txs := marchFixture()
	march := NewMonth(2025, time.March, time.UTC)

	ov := BuildOverview(march, MonthlyBudget{}, false, []Category{{ID: food, Name: "Food", Kind: Expense}}, txs)

	assert.False(t, ov.HasBudget)
	assert.False(t, ov.OverBudget)
	assert.True(t, ov.Total.IsZero())
	assert.True(t, ov.Spent.Equal(dec("120")))
	require.Len(t, ov.Categories, 1)
	assert.False(t, ov.Categories[0].Budgeted)
}

func TestBuildOverviewOverBudget(t *testing.T) {
	food := uuid.New()
	march := NewMonth(2025, time.March, time.UTC)
	mb := MonthlyBudget{
		Month: march,
		Total: dec("100"),
		Allocations: []CategoryBudget{
			{CategoryID: food, Month: march, Allocated: dec("150")},
		},
	}
	txs := []Transaction{{Date: date(2025, 3, 2), Amount: dec("160"), Kind: Expense, CategoryID: &food}}

	ov := BuildOverview(march, mb, true, nil, txs)

	assert.True(t, ov.OverAllocated)
	assert.True(t, ov.OverBudget)
	assert.True(t, ov.Remaining.Equal(dec("-60")))
	require.Len(t, ov.Categories, 1)
	assert.True(t, ov.Categories[0].OverBudget)
	assert.Empty(t, ov.Categories[0].Name)
}
