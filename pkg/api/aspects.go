package api

import (
	"net/http"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/hierarchy"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
)

// ListAspects returns the aspects visible to the caller, optionally
// narrowed to one trait with ?trait_id=
func (h *Handlers) ListAspects(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromRequest(r)
	constraint, err := h.filter.Scope(user, access.KindAspect)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	traitID := int64(httputil.ParseQueryInt(r, "trait_id", 0))
	limit, offset := httputil.ParsePagination(r)
	aspects, err := h.hierarchy.ListAspects(r.Context(), constraint, traitID, limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if aspects == nil {
		aspects = []hierarchy.Aspect{}
	}
	httputil.WriteSuccess(w, aspects)
}

type aspectRequest struct {
	TraitID            int64   `json:"trait_id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Weight             float64 `json:"weight"`
	AcceptanceCriteria string  `json:"acceptance_criteria"`
	EvaluationRule     string  `json:"evaluation_rule"`
}

// CreateAspect creates an aspect under a trait. Requires EDITOR on the
// trait's factor. The factor's rollup is recomputed in the same
// transaction since the new aspect starts unapproved.
func (h *Handlers) CreateAspect(w http.ResponseWriter, r *http.Request) {
	var req aspectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.TraitID == 0 {
		httputil.WriteBadRequest(w, "name and trait_id are required")
		return
	}
	if !h.check(w, r, access.EntityRef{Kind: access.KindTrait, ID: req.TraitID}, assignments.RoleEditor) {
		return
	}

	a := &hierarchy.Aspect{
		TraitID:            req.TraitID,
		Name:               req.Name,
		Description:        req.Description,
		Weight:             req.Weight,
		AcceptanceCriteria: req.AcceptanceCriteria,
		EvaluationRule:     req.EvaluationRule,
	}
	if err := h.hierarchy.CreateAspect(r.Context(), a); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, a)
}

// GetAspect returns a single aspect
func (h *Handlers) GetAspect(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	a, err := h.hierarchy.GetAspect(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, a)
}

// UpdateAspect updates an aspect's editable fields. EDITOR only.
// Approval is a separate action so the cascade always runs.
func (h *Handlers) UpdateAspect(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req aspectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	a, err := h.hierarchy.GetAspect(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	a.Name = req.Name
	a.Description = req.Description
	a.Weight = req.Weight
	a.AcceptanceCriteria = req.AcceptanceCriteria
	a.EvaluationRule = req.EvaluationRule
	if err := h.hierarchy.UpdateAspect(r.Context(), a); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, a)
}

// DeleteAspect removes an aspect. EDITOR only.
func (h *Handlers) DeleteAspect(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.hierarchy.DeleteAspect(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ApproveAspect sets an aspect's approved flag and cascades the change
// to the owning factor and project in one transaction. COMENTADOR and
// EDITOR may approve: evaluation is the commenting reviewers' job.
func (h *Handlers) ApproveAspect(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// Default true; pass {"approved": false} to withdraw approval.
	req := struct {
		Approved *bool `json:"approved"`
	}{}
	if r.ContentLength > 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	if err := h.hierarchy.SetAspectApproved(r.Context(), id, approved); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	a, err := h.hierarchy.GetAspect(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, a)
}
