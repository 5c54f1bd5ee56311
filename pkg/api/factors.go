package api

import (
	"context"
	"net/http"
	"time"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/hierarchy"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
)

// ListFactors returns the factors visible to the caller, optionally
// narrowed to one project with ?project_id=
func (h *Handlers) ListFactors(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromRequest(r)
	constraint, err := h.filter.Scope(user, access.KindFactor)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	projectID := int64(httputil.ParseQueryInt(r, "project_id", 0))
	limit, offset := httputil.ParsePagination(r)
	factors, err := h.hierarchy.ListFactors(r.Context(), constraint, projectID, limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if factors == nil {
		factors = []hierarchy.Factor{}
	}
	httputil.WriteSuccess(w, factors)
}

type factorRequest struct {
	ProjectID   int64      `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Ponderation float64    `json:"ponderation"`
}

// CreateFactor creates a factor under a project. Requires EDITOR on the
// project.
func (h *Handlers) CreateFactor(w http.ResponseWriter, r *http.Request) {
	var req factorRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.ProjectID == 0 {
		httputil.WriteBadRequest(w, "name and project_id are required")
		return
	}
	if !h.check(w, r, access.EntityRef{Kind: access.KindProject, ID: req.ProjectID}, assignments.RoleEditor) {
		return
	}

	f := &hierarchy.Factor{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Ponderation: req.Ponderation,
	}
	if err := h.hierarchy.CreateFactor(r.Context(), f); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, f)
}

// GetFactor returns a single factor. Any effective role grants read
// access, including one inherited from the project.
func (h *Handlers) GetFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	f, err := h.hierarchy.GetFactor(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, f)
}

// UpdateFactor updates a factor's editable fields. EDITOR only.
func (h *Handlers) UpdateFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req factorRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	f, err := h.hierarchy.GetFactor(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	f.Name = req.Name
	f.Description = req.Description
	f.StartDate = req.StartDate
	f.EndDate = req.EndDate
	f.Ponderation = req.Ponderation
	if err := h.hierarchy.UpdateFactor(r.Context(), f); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, f)
}

// DeleteFactor removes a factor. EDITOR only. The project's progress is
// recomputed in the same transaction.
func (h *Handlers) DeleteFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.hierarchy.DeleteFactor(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ApproveFactor moves a completed factor to approved. EDITOR only.
func (h *Handlers) ApproveFactor(w http.ResponseWriter, r *http.Request) {
	h.factorStatusAction(w, r, h.hierarchy.ApproveFactor)
}

// RejectFactor moves a completed factor to rejected. EDITOR only.
func (h *Handlers) RejectFactor(w http.ResponseWriter, r *http.Request) {
	h.factorStatusAction(w, r, h.hierarchy.RejectFactor)
}

func (h *Handlers) factorStatusAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) error) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := action(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	f, err := h.hierarchy.GetFactor(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, f)
}
