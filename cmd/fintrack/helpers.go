package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// optionalID returns nil for an empty flag value.
func optionalID(s string) (*uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	id, err := parseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseDate reads YYYY-MM-DD in loc. An empty value means the day of
// fallback.
func parseDate(s string, loc *time.Location, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		y, m, d := fallback.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// parseMonth reads YYYY-MM in loc. An empty value means the month of now.
func parseMonth(s string, loc *time.Location, now time.Time) (core.Month, error) {
	if strings.TrimSpace(s) == "" {
		return core.MonthOf(now.In(loc)), nil
	}
	return core.ParseMonth(strings.TrimSpace(s), loc)
}

// parseAllocation reads "<category-id>=<amount>".
func parseAllocation(s string) (uuid.UUID, decimal.Decimal, error) {
	idPart, amountPart, ok := strings.Cut(s, "=")
	if !ok {
		return uuid.Nil, decimal.Zero, fmt.Errorf("invalid allocation %q (want <category-id>=<amount>)", s)
	}
	id, err := parseID(idPart)
	if err != nil {
		return uuid.Nil, decimal.Zero, err
	}
	amount, err := core.ParseAmount(amountPart)
	if err != nil {
		return uuid.Nil, decimal.Zero, err
	}
	return id, amount, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func shortID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func (a *app) money(d decimal.Decimal) string {
	return core.FormatAmount(d, a.rt.Currency, a.rt.Language)
}
