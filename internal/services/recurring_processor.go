package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RecurringProcessor books the transactions of due subscriptions.
//
// Concurrent triggers for the same instant share one run through
// singleflight, and runs for different instants are serialized by mu. Each
// booking is additionally guarded by a compare-and-swap on the stored
// NextDue, so a second process working on the same store cannot book the
// same occurrence twice either.
type RecurringProcessor struct {
	store  ports.Store
	events ports.EventPublisher
	clock  core.Clock

	mu    sync.Mutex
	group singleflight.Group
}

// NewRecurringProcessor wires the processor. events may be nil.
func NewRecurringProcessor(store ports.Store, events ports.EventPublisher, clock core.Clock) *RecurringProcessor {
	return &RecurringProcessor{
		store:  store,
		events: events,
		clock:  clock,
	}
}

// ProcessDue materializes every subscription due at the clock's now.
func (p *RecurringProcessor) ProcessDue(ctx context.Context) ([]core.Transaction, error) {
	return p.ProcessDueAt(ctx, p.clock.Now())
}

// ProcessDueAt books one transaction per subscription due at asOf and
// returns the transactions it created. Callers that joined an in-flight run
// receive that run's result. On partial failure the successfully booked
// transactions are returned together with the joined errors.
//
// The shared run is detached from the caller's cancellation, so one caller
// giving up never fails the others. A cancelled caller returns ctx.Err()
// while the run finishes in the background.
func (p *RecurringProcessor) ProcessDueAt(ctx context.Context, asOf time.Time) ([]core.Transaction, error) {
	key := "process-due:" + strconv.FormatInt(asOf.UnixNano(), 10)
	runCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.processDue(runCtx, asOf)
	})
	select {
	case res := <-ch:
		created, _ := res.Val.([]core.Transaction)
		return created, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *RecurringProcessor) processDue(ctx context.Context, asOf time.Time) ([]core.Transaction, error) {
	subs, err := p.store.Subscriptions(ctx, core.SubscriptionFilter{ActiveOnly: true, DueBy: &asOf})
	if err != nil {
		return nil, persistErr("load due subscriptions", err)
	}

	slog.InfoContext(ctx, "Processing recurring subscriptions",
		"due", len(subs),
		"as_of", asOf.Format(time.RFC3339))

	expected := make(map[uuid.UUID]time.Time, len(subs))
	byID := make(map[uuid.UUID]*core.RecurringSubscription, len(subs))
	ptrs := make([]*core.RecurringSubscription, 0, len(subs))
	for i := range subs {
		expected[subs[i].ID] = subs[i].NextDue
		byID[subs[i].ID] = &subs[i]
		ptrs = append(ptrs, &subs[i])
	}

	var (
		created []core.Transaction
		errs    []error
	)
	for _, t := range core.ProcessDue(ptrs, asOf) {
		sub := byID[*t.SubscriptionID]
		booked, err := p.book(ctx, t, sub, expected[sub.ID])
		if err != nil {
			slog.ErrorContext(ctx, "Failed to book recurring transaction",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		if !booked {
			slog.DebugContext(ctx, "Subscription already advanced elsewhere, skipping",
				"subscription_id", sub.ID)
			continue
		}

		created = append(created, t)
		slog.InfoContext(ctx, "Created transaction from subscription",
			"subscription_id", sub.ID,
			"transaction_id", t.ID,
			"name", t.Name,
			"amount", t.Amount.String(),
			"frequency", sub.Frequency,
			"next_due", sub.NextDue.Format(time.DateOnly))
		publish(ctx, p.events, t)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"created", len(created),
		"failed", len(errs))

	return created, errors.Join(errs...)
}

// book advances the stored schedule from expectedNextDue and inserts t in
// the same store transaction. It reports false without writing when the
// schedule was already moved.
func (p *RecurringProcessor) book(ctx context.Context, t core.Transaction, sub *core.RecurringSubscription, expectedNextDue time.Time) (bool, error) {
	var swapped bool
	err := withTx(ctx, p.store, "book recurring transaction", func(tx ports.Tx) error {
		var err error
		swapped, err = tx.AdvanceSubscription(ctx, sub.ID, expectedNextDue, *sub.LastMaterialized, sub.NextDue)
		if err != nil || !swapped {
			return err
		}
		return tx.InsertTransaction(ctx, t)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}
