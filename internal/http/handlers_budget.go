package http

import (
	"net/http"

	"fintrack/internal/services"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthParam(r.PathValue("month"), s.loc, s.clock.Now())
	if err != nil {
		s.writeError(w, r, "budget overview", err)
		return
	}
	ov, err := s.budgets.Overview(r.Context(), month)
	if err != nil {
		s.writeError(w, r, "budget overview", err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewResponse(ov))
}

// handleSaveBudget replaces the month's budget and all of its allocations.
// Over-allocation is reported, not rejected.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthParam(r.PathValue("month"), s.loc, s.clock.Now())
	if err != nil {
		s.writeError(w, r, "save budget", err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, "save budget", err)
		return
	}

	allocs := make([]services.AllocationInput, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		allocs = append(allocs, services.AllocationInput{CategoryID: a.CategoryID, Allocated: a.Allocated})
	}

	res, err := s.budgets.SaveBudget(r.Context(), month, req.Total, allocs)
	if err != nil {
		s.writeError(w, r, "save budget", err)
		return
	}
	writeJSON(w, http.StatusOK, saveBudgetResponse{
		Month:               month.String(),
		Total:               res.Budget.Total,
		Allocations:         len(res.Budget.Allocations),
		OverAllocated:       res.OverAllocated,
		RemainingToAllocate: res.RemainingToAllocate,
	})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthParam(r.PathValue("month"), s.loc, s.clock.Now())
	if err == nil {
		err = s.budgets.DeleteBudget(r.Context(), month)
	}
	if err != nil {
		s.writeError(w, r, "delete budget", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProcess books every due occurrence up to as_of, today by default.
// Partial failures still return the booked transactions with 207.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, "process", err)
		return
	}
	now := s.clock.Now()
	asOf, err := parseDay(req.AsOf, s.loc, now)
	if err != nil {
		s.writeError(w, r, "process", err)
		return
	}
	if req.AsOf == "" {
		asOf = now
	}

	booked, err := s.processor.ProcessDueAt(r.Context(), asOf)
	resp := processResponse{
		AsOf:         dateString(asOf),
		Transactions: toTransactionResponses(booked),
	}
	if err != nil {
		if len(booked) == 0 {
			s.writeError(w, r, "process", err)
			return
		}
		s.logger.WarnContext(r.Context(), "Recurring processing partially failed", "error", err, "booked", len(booked))
		for _, e := range unwrapJoined(err) {
			resp.Errors = append(resp.Errors, e.Error())
		}
		writeJSON(w, http.StatusMultiStatus, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
