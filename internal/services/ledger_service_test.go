package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCategoryRejectsDuplicateNameAndKind(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	mustCategory(t, l, "Food", core.Expense)

	_, err := l.CreateCategory(ctx, core.Category{Name: "  FOOD ", Kind: core.Expense})
	assert.ErrorIs(t, err, core.ErrDuplicateCategory)

	_, err = l.CreateCategory(ctx, core.Category{Name: "Food", Kind: core.Income})
	assert.NoError(t, err, "same name with another kind is a different category")

	cats, err := store.Categories(ctx, core.CategoryFilter{})
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestCreateCategoryValidation(t *testing.T) {
	l, _, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	_, err := l.CreateCategory(context.Background(), core.Category{Name: " ", Kind: core.Expense})
	assert.ErrorIs(t, err, core.ErrEmptyName)
	_, err = l.CreateCategory(context.Background(), core.Category{Name: "Gifts", Kind: "transfer"})
	assert.ErrorIs(t, err, core.ErrInvalidKind)
}

func TestListCategoriesUsesCacheUntilWrite(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	mustCategory(t, l, "Food", core.Expense)

	cats, err := l.ListCategories(ctx, "")
	require.NoError(t, err)
	require.Len(t, cats, 1)

	// A write that bypasses the service is invisible until the cache is purged.
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertCategory(ctx, core.Category{ID: uuid.New(), Name: "Rent", Kind: core.Expense}))
	require.NoError(t, tx.Commit())

	cats, err = l.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	mustCategory(t, l, "Salary", core.Income)
	cats, err = l.ListCategories(ctx, core.Expense)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()
	l, store, pub := newLedger(t, day(2025, 3, 1), core.FastForward)
	food := mustCategory(t, l, "Food", core.Expense)
	salary := mustCategory(t, l, "Salary", core.Income)

	t.Run("stores and publishes", func(t *testing.T) {
		tr, err := l.CreateTransaction(ctx, core.Transaction{
			Name: "Market", Date: day(2025, 3, 4), Amount: dec("42.10"), Kind: core.Expense, CategoryID: &food.ID,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, tr.ID)

		got, err := store.Transactions(ctx, core.TransactionFilter{ID: &tr.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Amount.Equal(dec("42.10")))

		require.Len(t, pub.published(), 1)
		assert.Equal(t, tr.ID, pub.published()[0].ID)
	})

	t.Run("negative amount is rejected before persistence", func(t *testing.T) {
		_, err := l.CreateTransaction(ctx, core.Transaction{
			Name: "Refund", Date: day(2025, 3, 4), Amount: dec("-5"), Kind: core.Expense,
		})
		assert.ErrorIs(t, err, core.ErrNegativeAmount)
	})

	t.Run("category kind must match", func(t *testing.T) {
		_, err := l.CreateTransaction(ctx, core.Transaction{
			Name: "Bonus", Date: day(2025, 3, 4), Amount: dec("100"), Kind: core.Expense, CategoryID: &salary.ID,
		})
		assert.ErrorIs(t, err, core.ErrCategoryKindMismatch)
	})

	t.Run("unknown category", func(t *testing.T) {
		missing := uuid.New()
		_, err := l.CreateTransaction(ctx, core.Transaction{
			Name: "Ghost", Date: day(2025, 3, 4), Amount: dec("1"), Kind: core.Expense, CategoryID: &missing,
		})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		pub.fail = true
		defer func() { pub.fail = false }()
		_, err := l.CreateTransaction(ctx, core.Transaction{
			Name: "Coffee", Date: day(2025, 3, 5), Amount: dec("1.20"), Kind: core.Expense,
		})
		assert.NoError(t, err)
	})

	txs, err := store.Transactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestStoreFailureSurfacesAsPersistenceError(t *testing.T) {
	ctx := context.Background()
	l, store, pub := newLedger(t, day(2025, 3, 1), core.FastForward)
	store.FailCommits(errors.New("disk full"))

	_, err := l.CreateTransaction(ctx, core.Transaction{
		Name: "Market", Date: day(2025, 3, 4), Amount: dec("10"), Kind: core.Expense,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.Empty(t, pub.published(), "nothing is announced when the write failed")

	_, err = l.CreateCategory(ctx, core.Category{Name: "Food", Kind: core.Expense})
	assert.ErrorIs(t, err, core.ErrPersistence)
}

func TestDeleteMissingRowsIsNotFound(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t, day(2025, 3, 1), core.FastForward)

	err := l.DeleteTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, l.DeleteSubscription(ctx, uuid.New()), core.ErrNotFound)
	assert.ErrorIs(t, l.DeleteCategory(ctx, uuid.New()), core.ErrNotFound)
}

func TestRecategorize(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	food := mustCategory(t, l, "Food", core.Expense)
	dining := mustCategory(t, l, "Dining", core.Expense)
	salary := mustCategory(t, l, "Salary", core.Income)

	tr, err := l.CreateTransaction(ctx, core.Transaction{
		Name: "Pizza", Date: day(2025, 3, 7), Amount: dec("18"), Kind: core.Expense, CategoryID: &food.ID,
	})
	require.NoError(t, err)

	moved, err := l.Recategorize(ctx, tr.ID, &dining.ID)
	require.NoError(t, err)
	assert.Equal(t, dining.ID, *moved.CategoryID)

	_, err = l.Recategorize(ctx, tr.ID, &salary.ID)
	assert.ErrorIs(t, err, core.ErrCategoryKindMismatch)

	cleared, err := l.Recategorize(ctx, tr.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.CategoryID)

	got, err := store.Transactions(ctx, core.TransactionFilter{ID: &tr.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].CategoryID)

	_, err = l.Recategorize(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteCategoryCascadesThroughService(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	food := mustCategory(t, l, "Food", core.Expense)
	_, err := l.CreateTransaction(ctx, core.Transaction{
		Name: "Market", Date: day(2025, 3, 4), Amount: dec("10"), Kind: core.Expense, CategoryID: &food.ID,
	})
	require.NoError(t, err)

	require.NoError(t, l.DeleteCategory(ctx, food.ID))

	txs, err := l.ListTransactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	cats, err := l.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t, day(2025, 1, 1), core.FastForward)
	ent := mustCategory(t, l, "Entertainment", core.Expense)

	sub, err := l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Netflix", Amount: dec("15.00"), Frequency: core.Monthly,
		StartDate: day(2025, 1, 1), Kind: core.Expense, CategoryID: &ent.ID,
	})
	require.NoError(t, err)
	assert.True(t, sub.Active)
	assert.Equal(t, day(2025, 2, 1), sub.NextDue)

	_, err = l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Gym", Amount: dec("-1"), Frequency: core.Monthly, StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	assert.ErrorIs(t, err, core.ErrNegativeAmount)

	_, err = l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Gym", Amount: dec("30"), Frequency: "fortnightly", StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	assert.ErrorIs(t, err, core.ErrInvalidFrequency)
}

func TestToggleSubscriptionReactivationPolicies(t *testing.T) {
	ctx := context.Background()
	now := day(2025, 6, 10)

	tests := []struct {
		policy  core.ReactivationPolicy
		wantDue time.Time
	}{
		{policy: core.FastForward, wantDue: day(2025, 7, 1)},
		{policy: core.CatchUp, wantDue: day(2025, 2, 1)},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			l, _, _ := newLedger(t, now, tt.policy)
			sub, err := l.CreateSubscription(ctx, SubscriptionInput{
				Name: "Netflix", Amount: dec("15"), Frequency: core.Monthly, StartDate: day(2025, 1, 1), Kind: core.Expense,
			})
			require.NoError(t, err)

			paused, err := l.ToggleSubscription(ctx, sub.ID)
			require.NoError(t, err)
			assert.False(t, paused.Active)
			assert.Equal(t, sub.NextDue, paused.NextDue, "pausing leaves the schedule alone")

			resumed, err := l.ToggleSubscription(ctx, sub.ID)
			require.NoError(t, err)
			assert.True(t, resumed.Active)
			assert.Equal(t, tt.wantDue, resumed.NextDue)

			stored, err := l.ListSubscriptions(ctx, core.SubscriptionFilter{ID: &sub.ID})
			require.NoError(t, err)
			require.Len(t, stored, 1)
			assert.Equal(t, tt.wantDue, stored[0].NextDue)
		})
	}
}

// beforeFirstBegin runs hook once, right before the first store transaction
// is opened, to land a concurrent write between a read and its write.
type beforeFirstBegin struct {
	*memory.Store
	hook func()
	ran  bool
}

func (s *beforeFirstBegin) Begin(ctx context.Context) (ports.Tx, error) {
	if !s.ran {
		s.ran = true
		s.hook()
	}
	return s.Store.Begin(ctx)
}

func TestToggleSubscriptionKeepsConcurrentBooking(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sub := seedNetflix(t, store)
	processor := NewRecurringProcessor(store, nil, core.FixedClock(day(2025, 2, 2)))

	racing := &beforeFirstBegin{Store: store, hook: func() {
		created, err := processor.ProcessDue(ctx)
		require.NoError(t, err)
		require.Len(t, created, 1)
	}}
	l := NewLedgerService(racing, nil, core.FixedClock(day(2025, 2, 2)), core.CatchUp)

	paused, err := l.ToggleSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, racing.ran)
	assert.False(t, paused.Active)
	assert.Equal(t, day(2025, 3, 2), paused.NextDue, "the booking made during the toggle survives")
	require.NotNil(t, paused.LastMaterialized)
	assert.Equal(t, day(2025, 2, 2), *paused.LastMaterialized)

	resumed, err := l.ToggleSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, resumed.Active)

	again, err := processor.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	txs, err := store.Transactions(ctx, core.TransactionFilter{SubscriptionID: &sub.ID})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "one billing cycle, one transaction")
}

func TestCreateTransactionWithCategoryDeletedElsewhere(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	food := mustCategory(t, l, "Food", core.Expense)
	_, err := l.ListCategories(ctx, "")
	require.NoError(t, err)

	// Another process removes the category; this service still has it cached.
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteCategory(ctx, food.ID))
	require.NoError(t, tx.Commit())

	_, err = l.CreateTransaction(ctx, core.Transaction{
		Name: "Lunch", Date: day(2025, 3, 1), Amount: dec("9"), Kind: core.Expense, CategoryID: &food.ID,
	})
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrPersistence)

	cats, err := l.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, cats, "the stale cache was dropped")
}

func TestCreateTransactionRejectsUnstorableDate(t *testing.T) {
	l, _, _ := newLedger(t, day(2025, 3, 1), core.FastForward)
	_, err := l.CreateTransaction(context.Background(), core.Transaction{
		Name: "Far", Date: day(2300, 1, 1), Amount: dec("1"), Kind: core.Expense,
	})
	assert.ErrorIs(t, err, core.ErrDateOutOfRange)
}

func TestUpcomingSubscriptions(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t, day(2025, 1, 1), core.FastForward)
	_, err := l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Netflix", Amount: dec("15"), Frequency: core.Monthly, StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	require.NoError(t, err)
	_, err = l.CreateSubscription(ctx, SubscriptionInput{
		Name: "Cleaner", Amount: dec("40"), Frequency: core.Weekly, StartDate: day(2025, 1, 1), Kind: core.Expense,
	})
	require.NoError(t, err)

	occ, err := l.UpcomingSubscriptions(ctx, 31, 2)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.Equal(t, "Cleaner", occ[0].Name)
	assert.Equal(t, day(2025, 1, 8), occ[0].Date)
	assert.Equal(t, day(2025, 1, 15), occ[1].Date)
	assert.Equal(t, "Netflix", occ[2].Name)
	assert.Equal(t, day(2025, 2, 1), occ[2].Date)
}
