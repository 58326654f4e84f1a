package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const maxNameLength = 200

type (
	// Frequency is how often a RecurringSubscription spawns a Transaction.
	Frequency string

	// Kind carries the sign of a money movement. Amounts are never negative.
	Kind string

	// Transaction is a financial event. Only CategoryID may change after creation.
	Transaction struct {
		ID             uuid.UUID
		Name           string
		Date           time.Time
		Amount         decimal.Decimal
		Kind           Kind
		Notes          string
		CategoryID     *uuid.UUID
		SubscriptionID *uuid.UUID // set when materialized from a subscription
	}

	// Category is a named bucket of a single kind. (Name, Kind) is unique.
	Category struct {
		ID    uuid.UUID
		Name  string
		Icon  string
		Color string
		Kind  Kind
	}

	// RecurringSubscription is a template that periodically spawns Transactions.
	RecurringSubscription struct {
		ID               uuid.UUID
		Name             string
		Amount           decimal.Decimal
		Frequency        Frequency
		StartDate        time.Time
		LastMaterialized *time.Time
		NextDue          time.Time
		Active           bool
		Kind             Kind
		Notes            string
		CategoryID       *uuid.UUID
	}

	// MonthlyBudget is the spending ceiling for one calendar month.
	MonthlyBudget struct {
		ID          uuid.UUID
		Month       Month
		Total       decimal.Decimal
		Allocations []CategoryBudget
	}

	// CategoryBudget allocates part of a MonthlyBudget to one category.
	CategoryBudget struct {
		ID              uuid.UUID
		MonthlyBudgetID uuid.UUID
		CategoryID      uuid.UUID
		Month           Month
		Allocated       decimal.Decimal
	}
)

var (
	ErrNegativeAmount       = errors.New("amount must not be negative")
	ErrEmptyName            = errors.New("empty name")
	ErrNameTooLong          = fmt.Errorf("name too long (max %d characters)", maxNameLength)
	ErrInvalidKind          = errors.New("invalid kind")
	ErrInvalidFrequency     = errors.New("invalid frequency")
	ErrZeroDate             = errors.New("date cannot be zero")
	ErrDateOutOfRange       = fmt.Errorf("date out of range (years %d to %d)", MinDate.Year(), MaxDate.Year()-1)
	ErrDuplicateCategory    = errors.New("category with the same name and kind already exists")
	ErrCategoryKindMismatch = errors.New("category kind does not match")
	ErrDuplicateAllocation  = errors.New("category allocated more than once in the same month")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("changed concurrently, try again")

	// ErrPersistence marks failures reported by the backing store.
	ErrPersistence = errors.New("persistence failed")
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// ParseFrequency accepts daily, weekly, monthly or yearly in any case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// MinDate and MaxDate bound every date the ledger accepts. MaxDate is
// exclusive.
var (
	MinDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func validateDate(t time.Time) error {
	if t.IsZero() {
		return ErrZeroDate
	}
	if t.Before(MinDate) || !t.Before(MaxDate) {
		return fmt.Errorf("%w: %s", ErrDateOutOfRange, t.Format(time.DateOnly))
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := validateName(t.Name); err != nil {
		return err
	}
	if err := validateDate(t.Date); err != nil {
		return err
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (s RecurringSubscription) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	if err := validateDate(s.StartDate); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !s.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if err := validateAmount(s.Amount); err != nil {
		return err
	}
	if !s.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (b MonthlyBudget) Validate() error {
	if b.Month.IsZero() {
		return fmt.Errorf("invalid month: %w", ErrZeroDate)
	}
	if err := validateAmount(b.Total); err != nil {
		return fmt.Errorf("total: %w", err)
	}
	seen := make(map[uuid.UUID]struct{}, len(b.Allocations))
	for _, a := range b.Allocations {
		if err := validateAmount(a.Allocated); err != nil {
			return fmt.Errorf("allocation for category %s: %w", a.CategoryID, err)
		}
		if _, dup := seen[a.CategoryID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAllocation, a.CategoryID)
		}
		seen[a.CategoryID] = struct{}{}
	}
	return nil
}

// CheckCategoryUnique returns ErrDuplicateCategory when another category in
// existing already has candidate's name (case-insensitive) and kind.
func CheckCategoryUnique(candidate Category, existing []Category) error {
	name := strings.TrimSpace(candidate.Name)
	for _, c := range existing {
		if c.ID == candidate.ID && c.ID != uuid.Nil {
			continue
		}
		if c.Kind == candidate.Kind && strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return fmt.Errorf("%w: %s (%s)", ErrDuplicateCategory, name, candidate.Kind)
		}
	}
	return nil
}

// CheckCategoryKind fails when a category of the wrong kind is attached to
// a transaction, subscription or budget allocation.
func CheckCategoryKind(c Category, want Kind) error {
	if c.Kind != want {
		return fmt.Errorf("%w: category %q is %s, want %s", ErrCategoryKindMismatch, c.Name, c.Kind, want)
	}
	return nil
}

func refersTo(ref *uuid.UUID, id uuid.UUID) bool {
	return ref != nil && *ref == id
}
