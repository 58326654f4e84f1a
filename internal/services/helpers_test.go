package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	got  []core.Transaction
	fail bool
}

func (p *recordingPublisher) PublishTransactionCreated(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unreachable")
	}
	p.got = append(p.got, t)
	return nil
}

func (p *recordingPublisher) published() []core.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Transaction(nil), p.got...)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T, now time.Time, policy core.ReactivationPolicy) (*LedgerService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	return NewLedgerService(store, pub, core.FixedClock(now), policy), store, pub
}

func mustCategory(t *testing.T, l *LedgerService, name string, kind core.Kind) core.Category {
	t.Helper()
	c, err := l.CreateCategory(context.Background(), core.Category{Name: name, Kind: kind})
	require.NoError(t, err)
	return c
}
