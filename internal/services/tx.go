package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// persistErr tags store failures with core.ErrPersistence. Lookups that
// found nothing, uniqueness conflicts and unstorable dates keep their own
// sentinel.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrDuplicateCategory) ||
		errors.Is(err, core.ErrDuplicateAllocation) ||
		errors.Is(err, core.ErrDateOutOfRange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrPersistence, op, err)
}

// withTx runs fn in a store transaction and commits it. Any error rolls the
// transaction back.
func withTx(ctx context.Context, store ports.Store, op string, fn func(tx ports.Tx) error) error {
	tx, err := store.Begin(ctx)
	if err != nil {
		return persistErr(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return persistErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr(op, err)
	}
	return nil
}
