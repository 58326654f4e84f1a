package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	categoryCacheKey  = "categories"
	categoryCacheTTL  = 5 * time.Minute
	categoryCacheSize = 8

	maxToggleAttempts = 3
)

// LedgerService owns categories, transactions and subscription templates.
// All validation happens before a store transaction is opened.
type LedgerService struct {
	store      ports.Store
	events     ports.EventPublisher
	clock      core.Clock
	policy     core.ReactivationPolicy
	categories *cache.LRUCache[[]core.Category]
}

// NewLedgerService wires the service. events may be nil.
func NewLedgerService(store ports.Store, events ports.EventPublisher, clock core.Clock, policy core.ReactivationPolicy) *LedgerService {
	if !policy.Valid() {
		policy = core.FastForward
	}
	return &LedgerService{
		store:      store,
		events:     events,
		clock:      clock,
		policy:     policy,
		categories: cache.NewLRUCache[[]core.Category](categoryCacheSize, categoryCacheTTL).WithClock(clock.Now),
	}
}

// CategoryCache exposes the category cache so long-running processes can
// register it with a cache.Janitor.
func (s *LedgerService) CategoryCache() cache.Cleaner {
	return s.categories
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	existing, err := s.ListCategories(ctx, c.Kind)
	if err != nil {
		return core.Category{}, err
	}
	if err := core.CheckCategoryUnique(c, existing); err != nil {
		return core.Category{}, err
	}

	err = withTx(ctx, s.store, "create category", func(tx ports.Tx) error {
		return tx.InsertCategory(ctx, c)
	})
	s.categories.Purge()
	if err != nil {
		return core.Category{}, err
	}

	slog.InfoContext(ctx, "Created category", "category_id", c.ID, "name", c.Name, "kind", c.Kind)
	return c, nil
}

// ListCategories returns categories of kind, or every category when kind is
// empty. Results are cached until the next category write.
func (s *LedgerService) ListCategories(ctx context.Context, kind core.Kind) ([]core.Category, error) {
	all, ok := s.categories.Get(categoryCacheKey)
	if !ok {
		var err error
		all, err = s.store.Categories(ctx, core.CategoryFilter{})
		if err != nil {
			return nil, persistErr("list categories", err)
		}
		s.categories.Set(categoryCacheKey, all)
	}

	f := core.CategoryFilter{Kind: kind}
	out := make([]core.Category, 0, len(all))
	for _, c := range all {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *LedgerService) category(ctx context.Context, id uuid.UUID) (core.Category, error) {
	all, err := s.ListCategories(ctx, "")
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range all {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
}

// forgetCategoriesOn drops the category cache when the store reports a
// missing reference: another process deleted a category this one still
// had cached.
func (s *LedgerService) forgetCategoriesOn(err error) {
	if errors.Is(err, core.ErrNotFound) {
		s.categories.Purge()
	}
}

// DeleteCategory removes the category together with its transactions and
// budget allocations. Subscriptions in it become uncategorized.
func (s *LedgerService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	err := withTx(ctx, s.store, "delete category", func(tx ports.Tx) error {
		return tx.DeleteCategory(ctx, id)
	})
	s.categories.Purge()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted category", "category_id", id)
	return nil
}

// CreateTransaction validates and records t, then announces it. A failed
// announcement is logged and does not undo the write.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Name = strings.TrimSpace(t.Name)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.CategoryID != nil {
		c, err := s.category(ctx, *t.CategoryID)
		if err != nil {
			return core.Transaction{}, err
		}
		if err := core.CheckCategoryKind(c, t.Kind); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := withTx(ctx, s.store, "create transaction", func(tx ports.Tx) error {
		return tx.InsertTransaction(ctx, t)
	}); err != nil {
		s.forgetCategoriesOn(err)
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Created transaction",
		"transaction_id", t.ID,
		"name", t.Name,
		"amount", t.Amount.String(),
		"kind", t.Kind)
	publish(ctx, s.events, t)
	return t, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.Transactions(ctx, f)
	if err != nil {
		return nil, persistErr("list transactions", err)
	}
	return txs, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, s.store, "delete transaction", func(tx ports.Tx) error {
		return tx.DeleteTransaction(ctx, id)
	})
}

// Recategorize moves a transaction to another category of the same kind, or
// clears its category when categoryID is nil.
func (s *LedgerService) Recategorize(ctx context.Context, id uuid.UUID, categoryID *uuid.UUID) (core.Transaction, error) {
	txs, err := s.store.Transactions(ctx, core.TransactionFilter{ID: &id})
	if err != nil {
		return core.Transaction{}, persistErr("recategorize", err)
	}
	if len(txs) == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	t := txs[0]

	if categoryID != nil {
		c, err := s.category(ctx, *categoryID)
		if err != nil {
			return core.Transaction{}, err
		}
		if err := core.CheckCategoryKind(c, t.Kind); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := withTx(ctx, s.store, "recategorize", func(tx ports.Tx) error {
		return tx.UpdateTransactionCategory(ctx, id, categoryID)
	}); err != nil {
		s.forgetCategoriesOn(err)
		return core.Transaction{}, err
	}
	t.CategoryID = categoryID
	return t, nil
}

// SubscriptionInput describes a new recurring template.
type SubscriptionInput struct {
	Name       string
	Amount     decimal.Decimal
	Frequency  core.Frequency
	StartDate  time.Time
	Kind       core.Kind
	Notes      string
	CategoryID *uuid.UUID
}

// CreateSubscription stores a new template. Its first occurrence is one
// period after the start date.
func (s *LedgerService) CreateSubscription(ctx context.Context, in SubscriptionInput) (core.RecurringSubscription, error) {
	sub, err := core.NewRecurringSubscription(strings.TrimSpace(in.Name), in.Amount, in.Frequency, in.StartDate, in.Kind)
	if err != nil {
		return core.RecurringSubscription{}, err
	}
	sub.Notes = in.Notes
	if in.CategoryID != nil {
		c, err := s.category(ctx, *in.CategoryID)
		if err != nil {
			return core.RecurringSubscription{}, err
		}
		if err := core.CheckCategoryKind(c, sub.Kind); err != nil {
			return core.RecurringSubscription{}, err
		}
		sub.CategoryID = in.CategoryID
	}

	if err := withTx(ctx, s.store, "create subscription", func(tx ports.Tx) error {
		return tx.InsertSubscription(ctx, sub)
	}); err != nil {
		s.forgetCategoriesOn(err)
		return core.RecurringSubscription{}, err
	}

	slog.InfoContext(ctx, "Created subscription",
		"subscription_id", sub.ID,
		"name", sub.Name,
		"frequency", sub.Frequency,
		"next_due", sub.NextDue.Format(time.DateOnly))
	return sub, nil
}

func (s *LedgerService) ListSubscriptions(ctx context.Context, f core.SubscriptionFilter) ([]core.RecurringSubscription, error) {
	subs, err := s.store.Subscriptions(ctx, f)
	if err != nil {
		return nil, persistErr("list subscriptions", err)
	}
	return subs, nil
}

// ToggleSubscription pauses an active subscription or resumes a paused one.
// Resuming applies the configured reactivation policy.
//
// The write only lands if the schedule is unchanged since it was read, so a
// processor run in between can never be undone. A lost race re-reads and
// tries again.
func (s *LedgerService) ToggleSubscription(ctx context.Context, id uuid.UUID) (core.RecurringSubscription, error) {
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		subs, err := s.store.Subscriptions(ctx, core.SubscriptionFilter{ID: &id})
		if err != nil {
			return core.RecurringSubscription{}, persistErr("toggle subscription", err)
		}
		if len(subs) == 0 {
			return core.RecurringSubscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
		}
		sub := subs[0]
		expectedNextDue := sub.NextDue

		if sub.Active {
			core.ToggleActive(&sub)
		} else {
			core.Reactivate(&sub, s.clock.Now(), s.policy)
		}

		var swapped bool
		if err := withTx(ctx, s.store, "toggle subscription", func(tx ports.Tx) error {
			var err error
			swapped, err = tx.SetSubscriptionActive(ctx, sub.ID, sub.Active, expectedNextDue, sub.NextDue)
			return err
		}); err != nil {
			return core.RecurringSubscription{}, err
		}
		if !swapped {
			slog.DebugContext(ctx, "Subscription changed while toggling, retrying",
				"subscription_id", id,
				"attempt", attempt)
			continue
		}

		slog.InfoContext(ctx, "Toggled subscription",
			"subscription_id", sub.ID,
			"active", sub.Active,
			"next_due", sub.NextDue.Format(time.DateOnly))
		return sub, nil
	}
	return core.RecurringSubscription{}, fmt.Errorf("toggle subscription %s: %w", id, core.ErrConflict)
}

// DeleteSubscription removes the template. Transactions it already produced
// stay in the ledger.
func (s *LedgerService) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, s.store, "delete subscription", func(tx ports.Tx) error {
		return tx.DeleteSubscription(ctx, id)
	})
}

// UpcomingSubscriptions lists due dates of active subscriptions in the next
// days, at most perSubscription each.
func (s *LedgerService) UpcomingSubscriptions(ctx context.Context, days, perSubscription int) ([]core.Occurrence, error) {
	subs, err := s.ListSubscriptions(ctx, core.SubscriptionFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return core.Upcoming(subs, now, now.AddDate(0, 0, days), perSubscription), nil
}

func publish(ctx context.Context, events ports.EventPublisher, t core.Transaction) {
	if events == nil {
		return
	}
	if err := events.PublishTransactionCreated(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", t.ID,
			"error", err)
	}
}
