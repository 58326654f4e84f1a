package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const (
	defaultUpcomingDays = 30
	maxUpcomingDays     = 366
	defaultUpcomingPer  = 3
	maxUpcomingPer      = 31
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	filter := core.SubscriptionFilter{ActiveOnly: r.URL.Query().Get("active") == "true"}
	subs, err := s.ledger.ListSubscriptions(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, "list subscriptions", err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, "create subscription", err)
		return
	}

	in := services.SubscriptionInput{
		Name:       sanitizeInput(req.Name),
		Amount:     req.Amount,
		Frequency:  core.Monthly,
		Kind:       core.Expense,
		Notes:      sanitizeInput(req.Notes),
		CategoryID: req.CategoryID,
	}
	var err error
	if req.Frequency != "" {
		if in.Frequency, err = core.ParseFrequency(req.Frequency); err != nil {
			s.writeError(w, r, "create subscription", err)
			return
		}
	}
	if req.Kind != "" {
		if in.Kind, err = core.ParseKind(req.Kind); err != nil {
			s.writeError(w, r, "create subscription", err)
			return
		}
	}
	if in.StartDate, err = parseDay(req.StartDate, s.loc, s.clock.Now()); err != nil {
		s.writeError(w, r, "create subscription", err)
		return
	}

	sub, err := s.ledger.CreateSubscription(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "create subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

func (s *Server) handleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, "toggle subscription", err)
		return
	}
	sub, err := s.ledger.ToggleSubscription(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "toggle subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = s.ledger.DeleteSubscription(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, "delete subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days, err := queryInt(query, "days", defaultUpcomingDays, maxUpcomingDays)
	if err != nil {
		s.writeError(w, r, "upcoming", err)
		return
	}
	per, err := queryInt(query, "per", defaultUpcomingPer, maxUpcomingPer)
	if err != nil {
		s.writeError(w, r, "upcoming", err)
		return
	}

	occ, err := s.ledger.UpcomingSubscriptions(r.Context(), days, per)
	if err != nil {
		s.writeError(w, r, "upcoming", err)
		return
	}
	out := make([]occurrenceResponse, 0, len(occ))
	for _, o := range occ {
		out = append(out, occurrenceResponse{
			SubscriptionID: o.SubscriptionID,
			Name:           o.Name,
			Amount:         o.Amount,
			Kind:           o.Kind,
			Date:           dateString(o.Date),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
