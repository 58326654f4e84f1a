// Package core holds the finance domain: entities, recurrence arithmetic,
// subscription materialization and budget aggregation.
//
// This file implements the Strategy Pattern for advancing recurring schedules.
// Each frequency has a Stepper that moves a date forward by one calendar unit.
package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stepper moves a date forward by exactly one period of its frequency.
type Stepper interface {
	Next(from time.Time) time.Time
}

// DailyStepper adds one calendar day, so DST days keep the wall-clock time.
type DailyStepper struct{}

func (DailyStepper) Next(from time.Time) time.Time {
	return from.AddDate(0, 0, 1)
}

// WeeklyStepper adds seven calendar days.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(from time.Time) time.Time {
	return from.AddDate(0, 0, 7)
}

// MonthlyStepper adds one calendar month, clamping the day to the end of the
// target month (Jan 31 -> Feb 28, or Feb 29 in leap years).
type MonthlyStepper struct{}

func (MonthlyStepper) Next(from time.Time) time.Time {
	return addMonthsClamped(from, 1)
}

// YearlyStepper adds one calendar year. Feb 29 clamps to Feb 28.
type YearlyStepper struct{}

func (YearlyStepper) Next(from time.Time) time.Time {
	return addMonthsClamped(from, 12)
}

var steppers = map[Frequency]Stepper{
	Daily:   DailyStepper{},
	Weekly:  WeeklyStepper{},
	Monthly: MonthlyStepper{},
	Yearly:  YearlyStepper{},
}

// StepperFor returns the stepper registered for a frequency.
func StepperFor(freq Frequency) (Stepper, error) {
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, freq)
	}
	return s, nil
}

// Advance returns the next occurrence one calendar unit after from. It never
// fails: an unknown frequency steps by one day.
func Advance(freq Frequency, from time.Time) time.Time {
	s, err := StepperFor(freq)
	if err != nil {
		s = DailyStepper{}
	}
	return s.Next(from)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Day 1 never overflows, so this lands in the target month.
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ScheduleBase is the instant NextDue is derived from:
// max(StartDate, LastMaterialized ?? StartDate).
func ScheduleBase(s *RecurringSubscription) time.Time {
	if s.LastMaterialized != nil && s.LastMaterialized.After(s.StartDate) {
		return *s.LastMaterialized
	}
	return s.StartDate
}

// NewRecurringSubscription validates the template and schedules its first
// occurrence one period after start.
func NewRecurringSubscription(name string, amount decimal.Decimal, freq Frequency, start time.Time, kind Kind) (RecurringSubscription, error) {
	s := RecurringSubscription{
		ID:        uuid.New(),
		Name:      name,
		Amount:    amount,
		Frequency: freq,
		StartDate: start,
		Active:    true,
		Kind:      kind,
	}
	if err := s.Validate(); err != nil {
		return RecurringSubscription{}, err
	}
	s.NextDue = Advance(freq, start)
	return s, nil
}

// IsDue reports whether s is active and its NextDue has passed at asOf.
func IsDue(s *RecurringSubscription, asOf time.Time) bool {
	return s.Active && !s.NextDue.After(asOf)
}

// DaysUntilDue is the number of calendar days from asOf to NextDue, counted
// in asOf's location. Negative when overdue.
func DaysUntilDue(s *RecurringSubscription, asOf time.Time) int {
	due := s.NextDue.In(asOf.Location())
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ReactivationPolicy decides what happens to an overdue schedule when a
// paused subscription is switched back on.
type ReactivationPolicy string

const (
	// FastForward moves NextDue to the first occurrence after now, so the
	// paused period is never billed.
	FastForward ReactivationPolicy = "fast_forward"
	// CatchUp keeps NextDue. The next ProcessDue books a single transaction.
	CatchUp ReactivationPolicy = "catch_up"
)

// Valid reports whether p is a known policy.
func (p ReactivationPolicy) Valid() bool {
	return p == FastForward || p == CatchUp
}

// ToggleActive flips the active flag and leaves the schedule untouched.
func ToggleActive(s *RecurringSubscription) {
	s.Active = !s.Active
}

// Reactivate switches s on and applies policy to its schedule. It is a no-op
// for subscriptions that are already active.
func Reactivate(s *RecurringSubscription, now time.Time, policy ReactivationPolicy) {
	if s.Active {
		return
	}
	s.Active = true
	if policy != FastForward {
		return
	}
	for !s.NextDue.After(now) {
		s.NextDue = Advance(s.Frequency, s.NextDue)
	}
}

// Occurrence is a future due date of a subscription.
type Occurrence struct {
	SubscriptionID uuid.UUID
	Name           string
	Amount         decimal.Decimal
	Kind           Kind
	Date           time.Time
}

// Upcoming lists the due dates of active subscriptions within [from, until],
// at most perSubscription per subscription, sorted by date then name.
func Upcoming(subs []RecurringSubscription, from, until time.Time, perSubscription int) []Occurrence {
	var out []Occurrence
	for _, s := range subs {
		if !s.Active {
			continue
		}
		next := s.NextDue
		for n := 0; n < perSubscription && !next.After(until); {
			if !next.Before(from) {
				out = append(out, Occurrence{
					SubscriptionID: s.ID,
					Name:           s.Name,
					Amount:         s.Amount,
					Kind:           s.Kind,
					Date:           next,
				})
				n++
			}
			next = Advance(s.Frequency, next)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
