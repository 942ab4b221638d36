package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

type categoryPayload struct {
	Name          string               `json:"name"`
	Type          core.TransactionType `json:"type"`
	ParentID      *int64               `json:"parentId"`
	Color         string               `json:"color"`
	Icon          string               `json:"icon"`
	MonthlyBudget core.Money           `json:"monthlyBudget"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	category, err := s.categories.Create(r.Context(), core.Category{
		UserID:        authUserID(r.Context()),
		Name:          sanitizeInput(req.Name),
		Type:          req.Type,
		ParentID:      req.ParentID,
		Color:         req.Color,
		Icon:          sanitizeInput(req.Icon),
		MonthlyBudget: req.MonthlyBudget,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, category)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		respondBadRequest(w, "type must be income or expense")
		return
	}

	categories, err := s.categories.List(r.Context(), authUserID(r.Context()), typ)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}
	respondData(w, http.StatusOK, categories)
}

func (s *Server) handleCategoryHierarchy(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		respondBadRequest(w, "type must be income or expense")
		return
	}

	nodes, err := s.categories.Hierarchy(r.Context(), authUserID(r.Context()), typ)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, nodes)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid category id")
		return
	}

	category, err := s.categories.Get(r.Context(), authUserID(r.Context()), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, category)
}

// handleUpdateCategory never forwards type or parentId: both are fixed
// at creation.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid category id")
		return
	}

	var req categoryPayload
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	category, err := s.categories.Update(r.Context(), authUserID(r.Context()), id,
		sanitizeInput(req.Name), req.Color, sanitizeInput(req.Icon), req.MonthlyBudget)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondBadRequest(w, "invalid category id")
		return
	}

	if err := s.categories.Delete(r.Context(), authUserID(r.Context()), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "category deleted")
}
