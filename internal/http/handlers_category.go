package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind, err := queryKind(r.URL.Query())
	if err != nil {
		s.writeError(w, r, "list categories", err)
		return
	}
	cats, err := s.ledger.ListCategories(r.Context(), kind)
	if err != nil {
		s.writeError(w, r, "list categories", err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, "create category", err)
		return
	}
	kind := core.Expense
	if req.Kind != "" {
		k, err := core.ParseKind(req.Kind)
		if err != nil {
			s.writeError(w, r, "create category", err)
			return
		}
		kind = k
	}

	c, err := s.ledger.CreateCategory(r.Context(), core.Category{
		Name:  sanitizeInput(req.Name),
		Kind:  kind,
		Icon:  sanitizeInput(req.Icon),
		Color: sanitizeInput(req.Color),
	})
	if err != nil {
		s.writeError(w, r, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// handleDeleteCategory also removes the category's transactions and
// allocations, and detaches its subscriptions.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = s.ledger.DeleteCategory(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
