package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// errBadRequest marks malformed input that never reached the services.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type categoryRequest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

type transactionRequest struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       string          `json:"kind"`
	Date       string          `json:"date"`
	Notes      string          `json:"notes"`
	CategoryID *uuid.UUID      `json:"category_id"`
}

type recategorizeRequest struct {
	CategoryID *uuid.UUID `json:"category_id"`
}

type subscriptionRequest struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Frequency  string          `json:"frequency"`
	StartDate  string          `json:"start_date"`
	Kind       string          `json:"kind"`
	Notes      string          `json:"notes"`
	CategoryID *uuid.UUID      `json:"category_id"`
}

type allocationRequest struct {
	CategoryID uuid.UUID       `json:"category_id"`
	Allocated  decimal.Decimal `json:"allocated"`
}

type budgetRequest struct {
	Total       decimal.Decimal     `json:"total"`
	Allocations []allocationRequest `json:"allocations"`
}

type processRequest struct {
	AsOf string `json:"as_of"`
}

// decodeJSON reads a single JSON object into dst. Unknown fields are
// rejected so typos surface instead of being silently dropped. An empty
// body leaves dst untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("body larger than %d bytes", tooLarge.Limit)
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("body must contain a single JSON object")
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

func queryID(query url.Values, name string) (*uuid.UUID, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, v)
	}
	return &id, nil
}

func queryKind(query url.Values) (core.Kind, error) {
	v := strings.TrimSpace(query.Get("kind"))
	if v == "" {
		return "", nil
	}
	return core.ParseKind(v)
}

// queryInt reads a positive integer, falling back to def when absent.
func queryInt(query url.Values, name string, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > max {
		return 0, badRequest("%s must be between 1 and %d", name, max)
	}
	return n, nil
}

// parseDay reads YYYY-MM-DD in loc. An empty value is the day of fallback.
func parseDay(s string, loc *time.Location, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, d := fallback.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseMonthParam reads YYYY-MM. "current" and the empty string select the
// month containing now.
func parseMonthParam(s string, loc *time.Location, now time.Time) (core.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "current" {
		return core.MonthOf(now.In(loc)), nil
	}
	m, err := core.ParseMonth(s, loc)
	if err != nil {
		return core.Month{}, badRequest("invalid month %q, want YYYY-MM", s)
	}
	return m, nil
}

// sanitizeInput trims whitespace and strips control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
