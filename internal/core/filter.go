package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionFilter selects transactions. Zero fields do not filter.
// From is inclusive, Until is exclusive.
type TransactionFilter struct {
	ID             *uuid.UUID
	From           time.Time
	Until          time.Time
	Kind           Kind
	CategoryID     *uuid.UUID
	SubscriptionID *uuid.UUID
}

// ForMonth selects every transaction dated in m.
func ForMonth(m Month) TransactionFilter {
	return TransactionFilter{From: m.Start(), Until: m.End()}
}

// Match reports whether t satisfies the filter.
func (f TransactionFilter) Match(t Transaction) bool {
	if f.ID != nil && t.ID != *f.ID {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.Until.IsZero() && !t.Date.Before(f.Until) {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.CategoryID != nil && !refersTo(t.CategoryID, *f.CategoryID) {
		return false
	}
	if f.SubscriptionID != nil && !refersTo(t.SubscriptionID, *f.SubscriptionID) {
		return false
	}
	return true
}

// CategoryFilter selects categories. Name matches case-insensitively.
type CategoryFilter struct {
	ID   *uuid.UUID
	Kind Kind
	Name string
}

func (f CategoryFilter) Match(c Category) bool {
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Name != "" && !strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(f.Name)) {
		return false
	}
	return true
}

// SubscriptionFilter selects recurring subscriptions. DueBy keeps only
// subscriptions whose NextDue is not after it.
type SubscriptionFilter struct {
	ID         *uuid.UUID
	ActiveOnly bool
	DueBy      *time.Time
}

func (f SubscriptionFilter) Match(s RecurringSubscription) bool {
	if f.ID != nil && s.ID != *f.ID {
		return false
	}
	if f.ActiveOnly && !s.Active {
		return false
	}
	if f.DueBy != nil && s.NextDue.After(*f.DueBy) {
		return false
	}
	return true
}
