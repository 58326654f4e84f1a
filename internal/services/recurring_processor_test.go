package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNetflix(t *testing.T, store *memory.Store) core.RecurringSubscription {
	t.Helper()
	l := NewLedgerService(store, nil, core.FixedClock(day(2025, 1, 1)), core.FastForward)
	ent := mustCategory(t, l, "Entertainment", core.Expense)
	sub, err := l.CreateSubscription(context.Background(), SubscriptionInput{
		Name: "Netflix", Amount: dec("15.00"), Frequency: core.Monthly,
		StartDate: day(2025, 1, 1), Kind: core.Expense, CategoryID: &ent.ID,
	})
	require.NoError(t, err)
	return sub
}

func TestProcessDueNetflixScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sub := seedNetflix(t, store)
	pub := &recordingPublisher{}
	p := NewRecurringProcessor(store, pub, core.FixedClock(day(2025, 2, 2)))

	created, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	tr := created[0]
	assert.Equal(t, "Netflix", tr.Name)
	assert.True(t, tr.Amount.Equal(dec("15")))
	assert.Equal(t, day(2025, 2, 2), tr.Date)
	assert.Equal(t, core.Expense, tr.Kind)
	require.NotNil(t, tr.SubscriptionID)
	assert.Equal(t, sub.ID, *tr.SubscriptionID)
	assert.Equal(t, sub.CategoryID, tr.CategoryID)

	stored, err := store.Subscriptions(ctx, core.SubscriptionFilter{ID: &sub.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, day(2025, 3, 2), stored[0].NextDue)
	require.NotNil(t, stored[0].LastMaterialized)
	assert.Equal(t, day(2025, 2, 2), *stored[0].LastMaterialized)
	assert.False(t, core.IsDue(&stored[0], day(2025, 2, 2)))

	assert.Len(t, pub.published(), 1)

	again, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "second run at the same instant books nothing")

	txs, err := store.Transactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestProcessDueConcurrentTriggersBookOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedNetflix(t, store)
	asOf := day(2025, 2, 2)

	// Two processors model two independent triggers sharing one store.
	procs := []*RecurringProcessor{
		NewRecurringProcessor(store, nil, core.FixedClock(asOf)),
		NewRecurringProcessor(store, nil, core.FixedClock(asOf)),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(p *RecurringProcessor) {
			defer wg.Done()
			_, err := p.ProcessDueAt(ctx, asOf)
			assert.NoError(t, err)
		}(procs[i%2])
	}
	wg.Wait()

	txs, err := store.Transactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

// gatedStore holds every Begin until release is closed and reports the
// first one on entered.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) Begin(ctx context.Context) (ports.Tx, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Store.Begin(ctx)
}

func TestProcessDueRunOutlivesCancelledCaller(t *testing.T) {
	store := memory.New()
	sub := seedNetflix(t, store)
	asOf := day(2025, 2, 2)
	gated := &gatedStore{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	p := NewRecurringProcessor(gated, nil, core.FixedClock(asOf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.ProcessDueAt(ctx, asOf)
		done <- err
	}()

	<-gated.entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	close(gated.release)

	// Joins the detached run if it is still going, otherwise finds nothing due.
	_, err := p.ProcessDueAt(context.Background(), asOf)
	require.NoError(t, err)

	txs, err := store.Transactions(context.Background(), core.TransactionFilter{SubscriptionID: &sub.ID})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "the cancelled caller's run still booked the cycle")
}

func TestProcessDueSkipsPausedAndNotYetDue(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedgerService(store, nil, core.FixedClock(day(2025, 1, 1)), core.FastForward)
	paused, err := l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Gym", Amount: dec("30"), Frequency: core.Monthly, StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	require.NoError(t, err)
	_, err = l.ToggleSubscription(ctx, paused.ID)
	require.NoError(t, err)
	_, err = l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Insurance", Amount: dec("300"), Frequency: core.Yearly, StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	require.NoError(t, err)

	p := NewRecurringProcessor(store, nil, core.FixedClock(day(2025, 3, 1)))
	created, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestProcessDueOneOccurrencePerRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedgerService(store, nil, core.FixedClock(day(2025, 1, 1)), core.FastForward)
	_, err := l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Coffee", Amount: dec("2"), Frequency: core.Daily, StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	require.NoError(t, err)

	// Ten days overdue still books a single transaction dated at the run.
	p := NewRecurringProcessor(store, nil, core.FixedClock(day(2025, 1, 12)))
	created, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, day(2025, 1, 12), created[0].Date)

	subs, err := store.Subscriptions(ctx, core.SubscriptionFilter{})
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 13), subs[0].NextDue)
}

func TestProcessDueCommitFailureLeavesScheduleUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sub := seedNetflix(t, store)
	store.FailCommits(errors.New("disk full"))

	p := NewRecurringProcessor(store, nil, core.FixedClock(day(2025, 2, 2)))
	created, err := p.ProcessDue(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.Empty(t, created)

	store.FailCommits(nil)
	stored, err := store.Subscriptions(ctx, core.SubscriptionFilter{ID: &sub.ID})
	require.NoError(t, err)
	assert.Equal(t, sub.NextDue, stored[0].NextDue)

	created, err = p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Len(t, created, 1, "a later run retries the booking")
}
