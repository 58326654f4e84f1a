// Package core provides money parsing and formatting utilities.
//
// This file contains functions for parsing monetary amounts typed by users
// and rendering them for display in a given locale and currency.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ParseAmount converts a user-typed decimal string into an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs are
// rejected: the direction of money is carried by Kind, never by the amount.
// Zero is a valid amount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> 0, ErrNegativeAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("parse amount: empty value")
	}
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrNegativeAmount
	}
	if strings.HasPrefix(s, "+") {
		return decimal.Zero, fmt.Errorf("parse amount %q: sign not allowed", s)
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, fmt.Errorf("parse amount %q: more than one decimal separator", s)
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, fmt.Errorf("parse amount %q: unexpected character %q", s, r)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// FormatAmount renders amount with the currency symbol of tag, rounded to
// the currency's standard scale. The digits come straight from the decimal,
// so large amounts keep every cent. Presentation only; never feed the
// result back into calculations.
func FormatAmount(amount decimal.Decimal, unit currency.Unit, tag language.Tag) string {
	scale, _ := currency.Standard.Rounding(unit)
	symbol := message.NewPrinter(tag).Sprint(currency.Symbol(unit))
	return symbol + " " + amount.StringFixed(int32(scale))
}

// SignedAmount returns the amount with the sign implied by kind: expenses
// are negative. Useful for ledgers that list both kinds in one column.
func SignedAmount(amount decimal.Decimal, kind Kind) decimal.Decimal {
	if kind == Expense {
		return amount.Neg()
	}
	return amount
}
