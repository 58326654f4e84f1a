package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// OverviewSource loads the aggregated state of a month.
type OverviewSource interface {
	Overview(ctx context.Context, month core.Month) (core.MonthOverview, error)
}

// Alert describes a budget line that crossed its threshold.
type Alert struct {
	Month        string
	CategoryID   string // empty for the whole-month alert
	Name         string
	Spent        decimal.Decimal
	Allocated    decimal.Decimal
	UsagePercent decimal.Decimal
	Message      string
}

// BudgetAlertWorker reacts to transaction events by recomputing the
// affected month and warning about categories near or over their allocation.
type BudgetAlertWorker struct {
	budgets   OverviewSource
	loc       *time.Location
	threshold decimal.Decimal
	unit      currency.Unit
	tag       language.Tag
}

func NewBudgetAlertWorker(budgets OverviewSource, loc *time.Location, threshold decimal.Decimal, unit currency.Unit, tag language.Tag) *BudgetAlertWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &BudgetAlertWorker{
		budgets:   budgets,
		loc:       loc,
		threshold: threshold,
		unit:      unit,
		tag:       tag,
	}
}

// HandleTransactionEvent is the AMQP handler. Income events and months
// without a budget produce no alerts.
func (w *BudgetAlertWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	_, err := w.Check(ctx, msg)
	return err
}

// Check returns the alerts raised by msg and logs each of them.
func (w *BudgetAlertWorker) Check(ctx context.Context, msg *amqp.TransactionEvent) ([]Alert, error) {
	if msg.Kind != core.Expense {
		return nil, nil
	}

	month, err := core.ParseMonth(msg.Month, w.loc)
	if err != nil {
		month = core.MonthOf(msg.Date.In(w.loc))
	}

	slog.InfoContext(ctx, "Processing transaction event",
		"transaction_id", msg.TransactionID,
		"month", month.String())

	ov, err := w.budgets.Overview(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load overview for %s: %w", month, err)
	}
	if !ov.HasBudget {
		return nil, nil
	}

	var alerts []Alert
	for _, row := range ov.Categories {
		if !row.Budgeted {
			continue
		}
		if msg.CategoryID != nil && row.CategoryID != *msg.CategoryID {
			continue
		}
		if row.UsagePercent.LessThan(w.threshold) && !row.OverBudget {
			continue
		}
		alerts = append(alerts, Alert{
			Month:        ov.Month.String(),
			CategoryID:   row.CategoryID.String(),
			Name:         row.Name,
			Spent:        row.Spent,
			Allocated:    row.Allocated,
			UsagePercent: row.UsagePercent,
			Message: fmt.Sprintf("%s: spent %s of %s (%s%%)", row.Name,
				core.FormatAmount(row.Spent, w.unit, w.tag),
				core.FormatAmount(row.Allocated, w.unit, w.tag),
				row.UsagePercent.Round(1).String()),
		})
	}
	if ov.OverBudget {
		alerts = append(alerts, Alert{
			Month:     ov.Month.String(),
			Name:      "month",
			Spent:     ov.Spent,
			Allocated: ov.Total,
			Message: fmt.Sprintf("%s over budget by %s", ov.Month,
				core.FormatAmount(ov.Remaining.Neg(), w.unit, w.tag)),
		})
	}

	for _, a := range alerts {
		slog.WarnContext(ctx, "Budget alert",
			"month", a.Month,
			"category_id", a.CategoryID,
			"usage_percent", a.UsagePercent.String(),
			"message", a.Message)
	}
	return alerts, nil
}
