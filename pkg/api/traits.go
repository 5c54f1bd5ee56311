package api

import (
	"net/http"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/hierarchy"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
)

// ListTraits returns the traits visible to the caller, optionally
// narrowed to one factor with ?factor_id=
func (h *Handlers) ListTraits(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromRequest(r)
	constraint, err := h.filter.Scope(user, access.KindTrait)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	factorID := int64(httputil.ParseQueryInt(r, "factor_id", 0))
	limit, offset := httputil.ParsePagination(r)
	traits, err := h.hierarchy.ListTraits(r.Context(), constraint, factorID, limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if traits == nil {
		traits = []hierarchy.Trait{}
	}
	httputil.WriteSuccess(w, traits)
}

type traitRequest struct {
	FactorID    int64  `json:"factor_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateTrait creates a trait under a factor. Requires EDITOR on the
// factor (direct or inherited).
func (h *Handlers) CreateTrait(w http.ResponseWriter, r *http.Request) {
	var req traitRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.FactorID == 0 {
		httputil.WriteBadRequest(w, "name and factor_id are required")
		return
	}
	if !h.check(w, r, access.EntityRef{Kind: access.KindFactor, ID: req.FactorID}, assignments.RoleEditor) {
		return
	}

	t := &hierarchy.Trait{
		FactorID:    req.FactorID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.hierarchy.CreateTrait(r.Context(), t); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, t)
}

// GetTrait returns a single trait
func (h *Handlers) GetTrait(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	t, err := h.hierarchy.GetTrait(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

// UpdateTrait updates a trait's editable fields. EDITOR only.
func (h *Handlers) UpdateTrait(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req traitRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	t, err := h.hierarchy.GetTrait(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	t.Name = req.Name
	t.Description = req.Description
	if err := h.hierarchy.UpdateTrait(r.Context(), t); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

// DeleteTrait removes a trait and its aspects. EDITOR only. The owning
// factor's rollup is recomputed in the same transaction.
func (h *Handlers) DeleteTrait(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.hierarchy.DeleteTrait(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
