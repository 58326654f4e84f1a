// Package ports declares the collaborators the finance services depend on.
package ports

import (
	"context"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

// Ports for outbound adapters.
type (
	// Store is the collection store behind every entity. Reads return
	// snapshots; writes go through a Tx.
	Store interface {
		Begin(ctx context.Context) (Tx, error)

		Transactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
		Categories(ctx context.Context, f core.CategoryFilter) ([]core.Category, error)
		Subscriptions(ctx context.Context, f core.SubscriptionFilter) ([]core.RecurringSubscription, error)
		// MonthlyBudget returns the month's budget with its allocations.
		// ok is false when the month has none.
		MonthlyBudget(ctx context.Context, month core.Month) (b core.MonthlyBudget, ok bool, err error)

		Close() error
	}

	// Tx is a unit of work. Nothing is visible to readers until Commit.
	// Cascades run inside the Tx:
	//   - DeleteCategory removes the category's transactions and allocations
	//     and detaches its subscriptions.
	//   - DeleteSubscription detaches previously generated transactions.
	//   - DeleteMonthlyBudget removes the month's allocations.
	Tx interface {
		InsertTransaction(ctx context.Context, t core.Transaction) error
		UpdateTransactionCategory(ctx context.Context, id uuid.UUID, categoryID *uuid.UUID) error
		DeleteTransaction(ctx context.Context, id uuid.UUID) error

		InsertCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id uuid.UUID) error

		InsertSubscription(ctx context.Context, s core.RecurringSubscription) error
		// SetSubscriptionActive pauses or resumes a subscription and moves
		// NextDue, only if it is still in the opposite state and NextDue
		// still equals expectedNextDue. LastMaterialized is never touched.
		// It reports whether the swap happened.
		SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool, expectedNextDue, nextDue time.Time) (bool, error)
		// AdvanceSubscription moves the schedule only if NextDue still equals
		// expectedNextDue. It reports whether the swap happened.
		AdvanceSubscription(ctx context.Context, id uuid.UUID, expectedNextDue, lastMaterialized, nextDue time.Time) (bool, error)
		DeleteSubscription(ctx context.Context, id uuid.UUID) error

		// SaveMonthlyBudget creates or overwrites the budget of b.Month and
		// replaces all of that month's allocations. It returns the stored
		// budget with its persistent IDs.
		SaveMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error)
		DeleteMonthlyBudget(ctx context.Context, month core.Month) error

		Commit() error
		Rollback() error
	}

	// EventPublisher announces new transactions to other processes.
	EventPublisher interface {
		PublishTransactionCreated(ctx context.Context, t core.Transaction) error
	}
)
