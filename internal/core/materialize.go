package core

import (
	"time"

	"github.com/google/uuid"
)

// Materialize books one Transaction from s dated asOf and moves the schedule
// past asOf. It does not check whether s is due.
func Materialize(s *RecurringSubscription, asOf time.Time) Transaction {
	subID := s.ID
	tx := Transaction{
		ID:             uuid.New(),
		Name:           s.Name,
		Date:           asOf,
		Amount:         s.Amount,
		Kind:           s.Kind,
		Notes:          s.Notes,
		CategoryID:     copyID(s.CategoryID),
		SubscriptionID: &subID,
	}

	last := asOf
	s.LastMaterialized = &last
	s.NextDue = Advance(s.Frequency, asOf)
	return tx
}

// ProcessDue materializes every subscription that is due at asOf, one
// transaction each, and returns the new transactions in input order.
// Subscriptions with a negative amount are skipped. Calling it again with
// the same asOf creates nothing because NextDue is already past asOf.
func ProcessDue(subs []*RecurringSubscription, asOf time.Time) []Transaction {
	var created []Transaction
	for _, s := range subs {
		if s == nil || !IsDue(s, asOf) || s.Amount.IsNegative() {
			continue
		}
		created = append(created, Materialize(s, asOf))
	}
	return created
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
