package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	groupapp "github.com/go-classroom-api/internal/application/group"
	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/transport/http/middleware"
)

// GroupHandler handles group administration endpoints.
type GroupHandler struct {
	svc groupapp.Service
}

func NewGroupHandler(svc groupapp.Service) *GroupHandler { return &GroupHandler{svc: svc} }

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	g, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	g, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// SetRiskFlag flips the at-risk flag. Admins may flag any group; an
// instructor may only flag their own.
func (h *GroupHandler) SetRiskFlag(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID := chi.URLParam(r, "id")

	var body struct {
		AtRisk *bool `json:"at_risk"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AtRisk == nil {
		writeError(w, http.StatusBadRequest, "at_risk is required")
		return
	}

	if !caller.IsAdmin() {
		g, err := h.svc.Get(r.Context(), groupID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if g.InstructorID == "" || g.InstructorID != caller.UserID {
			writeDomainError(w, fmt.Errorf("group %s: %w", groupID, domain.ErrForbidden))
			return
		}
	}

	g, err := h.svc.SetRiskFlag(r.Context(), caller, groupID, *body.AtRisk)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
