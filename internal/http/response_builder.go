package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/trace"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type categoryResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Kind  core.Kind `json:"kind"`
	Icon  string    `json:"icon,omitempty"`
	Color string    `json:"color,omitempty"`
}

type transactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Kind           core.Kind       `json:"kind"`
	Notes          string          `json:"notes,omitempty"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
}

type transactionListResponse struct {
	Month        string                `json:"month"`
	Transactions []transactionResponse `json:"transactions"`
	Income       decimal.Decimal       `json:"income"`
	Expenses     decimal.Decimal       `json:"expenses"`
}

type subscriptionResponse struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	Frequency        core.Frequency  `json:"frequency"`
	Kind             core.Kind       `json:"kind"`
	StartDate        string          `json:"start_date"`
	NextDue          string          `json:"next_due"`
	LastMaterialized string          `json:"last_materialized,omitempty"`
	Active           bool            `json:"active"`
	Notes            string          `json:"notes,omitempty"`
	CategoryID       *uuid.UUID      `json:"category_id,omitempty"`
}

type occurrenceResponse struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Kind           core.Kind       `json:"kind"`
	Date           string          `json:"date"`
}

type categoryRollupResponse struct {
	CategoryID   uuid.UUID       `json:"category_id"`
	Name         string          `json:"name"`
	Budgeted     bool            `json:"budgeted"`
	Allocated    decimal.Decimal `json:"allocated"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	UsagePercent decimal.Decimal `json:"usage_percent"`
	OverBudget   bool            `json:"over_budget"`
}

type overviewResponse struct {
	Month               string                   `json:"month"`
	HasBudget           bool                     `json:"has_budget"`
	Total               decimal.Decimal          `json:"total"`
	Allocated           decimal.Decimal          `json:"allocated"`
	RemainingToAllocate decimal.Decimal          `json:"remaining_to_allocate"`
	Spent               decimal.Decimal          `json:"spent"`
	Earned              decimal.Decimal          `json:"earned"`
	Remaining           decimal.Decimal          `json:"remaining"`
	OverAllocated       bool                     `json:"over_allocated"`
	OverBudget          bool                     `json:"over_budget"`
	Categories          []categoryRollupResponse `json:"categories"`
}

type saveBudgetResponse struct {
	Month               string          `json:"month"`
	Total               decimal.Decimal `json:"total"`
	Allocations         int             `json:"allocations"`
	OverAllocated       bool            `json:"over_allocated"`
	RemainingToAllocate decimal.Decimal `json:"remaining_to_allocate"`
}

type processResponse struct {
	AsOf         string                `json:"as_of"`
	Transactions []transactionResponse `json:"transactions"`
	Errors       []string              `json:"errors,omitempty"`
}

func dateString(t time.Time) string {
	return t.Format(time.DateOnly)
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind, Icon: c.Icon, Color: c.Color}
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:             t.ID,
		Name:           t.Name,
		Date:           dateString(t.Date),
		Amount:         t.Amount,
		Kind:           t.Kind,
		Notes:          t.Notes,
		CategoryID:     t.CategoryID,
		SubscriptionID: t.SubscriptionID,
	}
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

func toSubscriptionResponse(s core.RecurringSubscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:         s.ID,
		Name:       s.Name,
		Amount:     s.Amount,
		Frequency:  s.Frequency,
		Kind:       s.Kind,
		StartDate:  dateString(s.StartDate),
		NextDue:    dateString(s.NextDue),
		Active:     s.Active,
		Notes:      s.Notes,
		CategoryID: s.CategoryID,
	}
	if s.LastMaterialized != nil {
		resp.LastMaterialized = dateString(*s.LastMaterialized)
	}
	return resp
}

func toOverviewResponse(ov core.MonthOverview) overviewResponse {
	resp := overviewResponse{
		Month:               ov.Month.String(),
		HasBudget:           ov.HasBudget,
		Total:               ov.Total,
		Allocated:           ov.Allocated,
		RemainingToAllocate: ov.RemainingToAllocate,
		Spent:               ov.Spent,
		Earned:              ov.Earned,
		Remaining:           ov.Remaining,
		OverAllocated:       ov.OverAllocated,
		OverBudget:          ov.OverBudget,
		Categories:          make([]categoryRollupResponse, 0, len(ov.Categories)),
	}
	for _, c := range ov.Categories {
		resp.Categories = append(resp.Categories, categoryRollupResponse{
			CategoryID:   c.CategoryID,
			Name:         c.Name,
			Budgeted:     c.Budgeted,
			Allocated:    c.Allocated,
			Spent:        c.Spent,
			Remaining:    c.Remaining,
			UsagePercent: c.UsagePercent,
			OverBudget:   c.OverBudget,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrDuplicateAllocation),
		errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrDateOutOfRange),
		errors.Is(err, core.ErrCategoryKindMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Server-side failures are logged and
// their details withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), RequestID: trace.GetRequestID(ctx)}
	if status >= http.StatusInternalServerError {
		applog.FromContext(ctx).ErrorContext(ctx, "Request failed",
			applog.FieldOperation, op,
			applog.FieldError, err)
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}
