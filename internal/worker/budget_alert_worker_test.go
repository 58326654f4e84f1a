package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

type stubOverviews struct {
	ov    core.MonthOverview
	err   error
	asked []string
}

func (s *stubOverviews) Overview(_ context.Context, month core.Month) (core.MonthOverview, error) {
	s.asked = append(s.asked, month.String())
	return s.ov, s.err
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBudgetAlertWorker(t *testing.T) {
	food, rent := uuid.New(), uuid.New()
	march := core.NewMonth(2025, time.March, time.UTC)
	overview := core.MonthOverview{
		Month:      march,
		HasBudget:  true,
		Total:      dec("1000"),
		Spent:      dec("1050"),
		Remaining:  dec("-50"),
		OverBudget: true,
		Categories: []core.CategoryRollup{
			{CategoryID: food, Name: "Food", Allocated: dec("300"), Spent: dec("270"), UsagePercent: dec("90"), Budgeted: true},
			{CategoryID: rent, Name: "Rent", Allocated: dec("700"), Spent: dec("700"), UsagePercent: dec("100"), Budgeted: true},
		},
	}
	event := func(kind core.Kind, cat *uuid.UUID) *amqp.TransactionEvent {
		return &amqp.TransactionEvent{
			Type: amqp.EventTransactionCreated, TransactionID: uuid.New(), Kind: kind,
			Date: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), Month: "2025-03", CategoryID: cat,
		}
	}

	t.Run("category above threshold and month over budget", func(t *testing.T) {
		src := &stubOverviews{ov: overview}
		w := NewBudgetAlertWorker(src, time.UTC, dec("80"), currency.EUR, language.Italian)

		alerts, err := w.Check(context.Background(), event(core.Expense, &food))
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		assert.Equal(t, "Food", alerts[0].Name)
		assert.Contains(t, alerts[0].Message, "€")
		assert.Equal(t, "month", alerts[1].Name)
		assert.Equal(t, []string{"2025-03"}, src.asked)
	})

	t.Run("below threshold only reports the month", func(t *testing.T) {
		src := &stubOverviews{ov: overview}
		w := NewBudgetAlertWorker(src, time.UTC, dec("95"), currency.EUR, language.Italian)

		alerts, err := w.Check(context.Background(), event(core.Expense, &food))
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "month", alerts[0].Name)
	})

	t.Run("uncategorized event checks every category", func(t *testing.T) {
		src := &stubOverviews{ov: overview}
		w := NewBudgetAlertWorker(src, time.UTC, dec("80"), currency.EUR, language.Italian)

		alerts, err := w.Check(context.Background(), event(core.Expense, nil))
		require.NoError(t, err)
		assert.Len(t, alerts, 3)
	})

	t.Run("income is ignored", func(t *testing.T) {
		src := &stubOverviews{ov: overview}
		w := NewBudgetAlertWorker(src, time.UTC, dec("80"), currency.EUR, language.Italian)

		alerts, err := w.Check(context.Background(), event(core.Income, nil))
		require.NoError(t, err)
		assert.Empty(t, alerts)
		assert.Empty(t, src.asked)
	})

	t.Run("month without budget", func(t *testing.T) {
		src := &stubOverviews{ov: core.MonthOverview{Month: march}}
		w := NewBudgetAlertWorker(src, time.UTC, dec("80"), currency.EUR, language.Italian)

		assert.NoError(t, w.HandleTransactionEvent(context.Background(), event(core.Expense, &food)))
	})

	t.Run("store failure is returned for requeue", func(t *testing.T) {
		src := &stubOverviews{err: errors.New("locked")}
		w := NewBudgetAlertWorker(src, time.UTC, dec("80"), currency.EUR, language.Italian)

		assert.Error(t, w.HandleTransactionEvent(context.Background(), event(core.Expense, &food)))
	})
}
