// Package memory is an in-process implementation of ports.Store. A Tx works
// on a private copy of the data and holds the store's write lock until it
// commits or rolls back, so reads on the same goroutine must not overlap an
// open Tx.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
)

var _ ports.Store = (*Store)(nil)

type state struct {
	transactions  map[uuid.UUID]core.Transaction
	categories    map[uuid.UUID]core.Category
	subscriptions map[uuid.UUID]core.RecurringSubscription
	budgets       map[string]core.MonthlyBudget
}

func (s state) clone() state {
	return state{
		transactions:  maps.Clone(s.transactions),
		categories:    maps.Clone(s.categories),
		subscriptions: maps.Clone(s.subscriptions),
		budgets:       maps.Clone(s.budgets),
	}
}

type Store struct {
	mu        sync.RWMutex
	data      state
	commitErr error
}

func New() *Store {
	return &Store{data: state{
		transactions:  map[uuid.UUID]core.Transaction{},
		categories:    map[uuid.UUID]core.Category{},
		subscriptions: map[uuid.UUID]core.RecurringSubscription{},
		budgets:       map[string]core.MonthlyBudget{},
	}}
}

// NewFromFiles seeds categories from base/seed_categories.txt. Each line is
// "kind:name" or just "name" for an expense category. Blank lines and lines
// starting with # are ignored; duplicates are dropped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		kind, name := core.Expense, line
		if k, n, ok := strings.Cut(line, ":"); ok {
			parsed, err := core.ParseKind(k)
			if err != nil {
				continue
			}
			kind, name = parsed, strings.TrimSpace(n)
		}
		c := core.Category{ID: uuid.New(), Name: name, Kind: kind}
		if c.Validate() != nil || core.CheckCategoryUnique(c, s.categoryList()) != nil {
			continue
		}
		s.data.categories[c.ID] = c
	}
	return s
}

// FailCommits makes every following Commit fail with err. Pass nil to
// restore normal behavior.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *Store) Close() error { return nil }

func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &tx{store: s, data: s.data.clone()}, nil
}

func (s *Store) Transactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.data.transactions {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) Categories(_ context.Context, f core.CategoryFilter) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Category
	for _, c := range s.categoryList() {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) categoryList() []core.Category {
	out := make([]core.Category, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Store) Subscriptions(_ context.Context, f core.SubscriptionFilter) ([]core.RecurringSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.RecurringSubscription
	for _, sub := range s.data.subscriptions {
		if f.Match(sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDue.Equal(out[j].NextDue) {
			return out[i].NextDue.Before(out[j].NextDue)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) MonthlyBudget(_ context.Context, month core.Month) (core.MonthlyBudget, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data.budgets[month.String()]
	if !ok {
		return core.MonthlyBudget{}, false, nil
	}
	b.Allocations = append([]core.CategoryBudget(nil), b.Allocations...)
	return b, true, nil
}

type tx struct {
	store *Store
	data  state
	done  bool
}

func (t *tx) finish() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	return nil
}

func (t *tx) Commit() error {
	if err := t.finish(); err != nil {
		return err
	}
	defer t.store.mu.Unlock()
	if t.store.commitErr != nil {
		return fmt.Errorf("commit: %w", t.store.commitErr)
	}
	t.store.data = t.data
	return nil
}

// Rollback is safe to defer after Commit.
func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr core.Transaction) error {
	if _, exists := t.data.transactions[tr.ID]; exists {
		return fmt.Errorf("insert transaction: duplicate id %s", tr.ID)
	}
	if tr.CategoryID != nil {
		if _, ok := t.data.categories[*tr.CategoryID]; !ok {
			return fmt.Errorf("insert transaction: category %s: %w", *tr.CategoryID, core.ErrNotFound)
		}
	}
	t.data.transactions[tr.ID] = tr
	return nil
}

func (t *tx) UpdateTransactionCategory(_ context.Context, id uuid.UUID, categoryID *uuid.UUID) error {
	tr, ok := t.data.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if categoryID != nil {
		if _, ok := t.data.categories[*categoryID]; !ok {
			return fmt.Errorf("update transaction category: category %s: %w", *categoryID, core.ErrNotFound)
		}
	}
	tr.CategoryID = categoryID
	t.data.transactions[id] = tr
	return nil
}

func (t *tx) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	delete(t.data.transactions, id)
	return nil
}

func (t *tx) InsertCategory(_ context.Context, c core.Category) error {
	existing := make([]core.Category, 0, len(t.data.categories))
	for _, e := range t.data.categories {
		existing = append(existing, e)
	}
	if err := core.CheckCategoryUnique(c, existing); err != nil {
		return err
	}
	c.Name = strings.TrimSpace(c.Name)
	t.data.categories[c.ID] = c
	return nil
}

func (t *tx) DeleteCategory(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	for txID, tr := range t.data.transactions {
		if tr.CategoryID != nil && *tr.CategoryID == id {
			delete(t.data.transactions, txID)
		}
	}
	for subID, sub := range t.data.subscriptions {
		if sub.CategoryID != nil && *sub.CategoryID == id {
			sub.CategoryID = nil
			t.data.subscriptions[subID] = sub
		}
	}
	for key, b := range t.data.budgets {
		kept := make([]core.CategoryBudget, 0, len(b.Allocations))
		for _, a := range b.Allocations {
			if a.CategoryID != id {
				kept = append(kept, a)
			}
		}
		b.Allocations = kept
		t.data.budgets[key] = b
	}
	delete(t.data.categories, id)
	return nil
}

func (t *tx) InsertSubscription(_ context.Context, s core.RecurringSubscription) error {
	if _, exists := t.data.subscriptions[s.ID]; exists {
		return fmt.Errorf("insert subscription: duplicate id %s", s.ID)
	}
	if s.CategoryID != nil {
		if _, ok := t.data.categories[*s.CategoryID]; !ok {
			return fmt.Errorf("insert subscription: category %s: %w", *s.CategoryID, core.ErrNotFound)
		}
	}
	t.data.subscriptions[s.ID] = s
	return nil
}

func (t *tx) SetSubscriptionActive(_ context.Context, id uuid.UUID, active bool, expectedNextDue, nextDue time.Time) (bool, error) {
	s, ok := t.data.subscriptions[id]
	if !ok {
		return false, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	if s.Active == active || !s.NextDue.Equal(expectedNextDue) {
		return false, nil
	}
	s.Active = active
	s.NextDue = nextDue
	t.data.subscriptions[id] = s
	return true, nil
}

func (t *tx) AdvanceSubscription(_ context.Context, id uuid.UUID, expectedNextDue, lastMaterialized, nextDue time.Time) (bool, error) {
	s, ok := t.data.subscriptions[id]
	if !ok || !s.Active || !s.NextDue.Equal(expectedNextDue) {
		return false, nil
	}
	last := lastMaterialized
	s.LastMaterialized = &last
	s.NextDue = nextDue
	t.data.subscriptions[id] = s
	return true, nil
}

func (t *tx) DeleteSubscription(_ context.Context, id uuid.UUID) error {
	if _, ok := t.data.subscriptions[id]; !ok {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	for txID, tr := range t.data.transactions {
		if tr.SubscriptionID != nil && *tr.SubscriptionID == id {
			tr.SubscriptionID = nil
			t.data.transactions[txID] = tr
		}
	}
	delete(t.data.subscriptions, id)
	return nil
}

func (t *tx) SaveMonthlyBudget(_ context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	key := b.Month.String()
	if existing, ok := t.data.budgets[key]; ok {
		b.ID = existing.ID
	} else if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	allocations := make([]core.CategoryBudget, 0, len(b.Allocations))
	seen := make(map[uuid.UUID]struct{}, len(b.Allocations))
	for _, a := range b.Allocations {
		if _, dup := seen[a.CategoryID]; dup {
			return core.MonthlyBudget{}, fmt.Errorf("%w: %s", core.ErrDuplicateAllocation, a.CategoryID)
		}
		seen[a.CategoryID] = struct{}{}
		if _, ok := t.data.categories[a.CategoryID]; !ok {
			return core.MonthlyBudget{}, fmt.Errorf("allocation category %s: %w", a.CategoryID, core.ErrNotFound)
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.MonthlyBudgetID = b.ID
		a.Month = b.Month
		allocations = append(allocations, a)
	}
	b.Allocations = allocations
	t.data.budgets[key] = b
	return b, nil
}

func (t *tx) DeleteMonthlyBudget(_ context.Context, month core.Month) error {
	key := month.String()
	if _, ok := t.data.budgets[key]; !ok {
		return fmt.Errorf("monthly budget %s: %w", key, core.ErrNotFound)
	}
	delete(t.data.budgets, key)
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
