package http

import (
	"net/http"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// handleListTransactions lists one month, "current" by default, optionally
// narrowed by kind and category.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, err := parseMonthParam(query.Get("month"), s.loc, s.clock.Now())
	if err != nil {
		s.writeError(w, r, "list transactions", err)
		return
	}
	filter := core.ForMonth(month)
	if filter.Kind, err = queryKind(query); err != nil {
		s.writeError(w, r, "list transactions", err)
		return
	}
	if filter.CategoryID, err = queryID(query, "category"); err != nil {
		s.writeError(w, r, "list transactions", err)
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, "list transactions", err)
		return
	}

	resp := transactionListResponse{
		Month:        month.String(),
		Transactions: toTransactionResponses(txs),
		Income:       decimal.Zero,
		Expenses:     decimal.Zero,
	}
	for _, t := range txs {
		if t.Kind == core.Income {
			resp.Income = resp.Income.Add(t.Amount)
		} else {
			resp.Expenses = resp.Expenses.Add(t.Amount)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, "create transaction", err)
		return
	}

	kind := core.Expense
	if req.Kind != "" {
		k, err := core.ParseKind(req.Kind)
		if err != nil {
			s.writeError(w, r, "create transaction", err)
			return
		}
		kind = k
	}
	date, err := parseDay(req.Date, s.loc, s.clock.Now())
	if err != nil {
		s.writeError(w, r, "create transaction", err)
		return
	}

	t, err := s.ledger.CreateTransaction(r.Context(), core.Transaction{
		Name:       sanitizeInput(req.Name),
		Date:       date,
		Amount:     req.Amount,
		Kind:       kind,
		Notes:      sanitizeInput(req.Notes),
		CategoryID: req.CategoryID,
	})
	if err != nil {
		s.writeError(w, r, "create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = s.ledger.DeleteTransaction(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecategorize moves a transaction to another category. A null
// category_id clears it.
func (s *Server) handleRecategorize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, "recategorize", err)
		return
	}
	var req recategorizeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, "recategorize", err)
		return
	}

	t, err := s.ledger.Recategorize(r.Context(), id, req.CategoryID)
	if err != nil {
		s.writeError(w, r, "recategorize", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}
