package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func marchFixture() (MonthlyBudget, uuid.UUID, []Transaction) {
	food := uuid.New()
	march := NewMonth(2025, time.March, time.UTC)

	mb := MonthlyBudget{
		ID:    uuid.New(),
		Month: march,
		Total: dec("1000"),
		Allocations: []CategoryBudget{
			{ID: uuid.New(), CategoryID: food, Month: march, Allocated: dec("300")},
		},
	}
	txs := []Transaction{
		{Name: "Market", Date: date(2025, 3, 3), Amount: dec("70"), Kind: Expense, CategoryID: &food},
		{Name: "Bakery", Date: date(2025, 3, 31), Amount: dec("50"), Kind: Expense, CategoryID: &food},
		// Outside March or not an expense.
		{Name: "Market", Date: date(2025, 2, 28), Amount: dec("99"), Kind: Expense, CategoryID: &food},
		{Name: "Market", Date: date(2025, 4, 1), Amount: dec("99"), Kind: Expense, CategoryID: &food},
		{Name: "Refund", Date: date(2025, 3, 10), Amount: dec("20"), Kind: Income, CategoryID: &food},
		{Name: "Salary", Date: date(2025, 3, 27), Amount: dec("2500"), Kind: Income},
	}
	return mb, food, txs
}

func TestMarchBudgetScenario(t *testing.T) {
	mb, food, txs := marchFixture()

	assert.True(t, SpentForCategory(food, mb.Month, txs).Equal(dec("120")))
	assert.True(t, CategoryUsagePercent(mb.Allocations[0], txs).Equal(dec("40")))
	assert.True(t, MonthlyRemaining(mb, txs).Equal(dec("880")))
	assert.True(t, SpentForMonth(mb.Month, txs).Equal(dec("120")))
	assert.True(t, EarnedForMonth(mb.Month, txs).Equal(dec("2520")))
}

func TestMonthlyRemainingCountsUncategorizedExpenses(t *testing.T) {
	mb, _, txs := marchFixture()
	txs = append(txs, Transaction{Name: "Taxi", Date: date(2025, 3, 15), Amount: dec("30"), Kind: Expense})

	assert.True(t, MonthlyRemaining(mb, txs).Equal(dec("850")))
}

func TestOverAllocationIsFlagged(t *testing.T) {
	march := NewMonth(2025, time.March, time.UTC)
	mb := MonthlyBudget{
		Month: march,
		Total: dec("1000"),
		Allocations: []CategoryBudget{
			{CategoryID: uuid.New(), Allocated: dec("600")},
			{CategoryID: uuid.New(), Allocated: dec("500")},
		},
	}

	assert.NoError(t, mb.Validate())
	assert.True(t, AllocatedTotal(mb).Equal(dec("1100")))
	assert.True(t, RemainingToAllocate(mb).Equal(dec("-100")))
	assert.True(t, IsOverAllocated(mb))
}

func TestUsagePercentEdgeCases(t *testing.T) {
	food := uuid.New()
	march := NewMonth(2025, time.March, time.UTC)
	txs := []Transaction{{Date: date(2025, 3, 1), Amount: dec("450"), Kind: Expense, CategoryID: &food}}

	zero := CategoryBudget{CategoryID: food, Month: march, Allocated: decimal.Zero}
	assert.True(t, CategoryUsagePercent(zero, txs).IsZero())

	over := CategoryBudget{CategoryID: food, Month: march, Allocated: dec("300")}
	assert.True(t, CategoryUsagePercent(over, txs).Equal(dec("150")), "usage is not clamped")
}

func TestMonthMatchingUsesBudgetLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	food := uuid.New()
	march := NewMonth(2025, time.March, loc)

	// 23:30 UTC on Feb 28 is already March 1 at UTC+2.
	txs := []Transaction{{Date: time.Date(2025, 2, 28, 23, 30, 0, 0, time.UTC), Amount: dec("10"), Kind: Expense, CategoryID: &food}}
	assert.True(t, SpentForCategory(food, march, txs).Equal(dec("10")))
}
