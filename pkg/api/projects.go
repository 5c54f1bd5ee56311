package api

import (
	"net/http"
	"time"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/hierarchy"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
)

// ListProjects returns the projects visible to the caller
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromRequest(r)
	constraint, err := h.filter.Scope(user, access.KindProject)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	limit, offset := httputil.ParsePagination(r)
	projects, err := h.hierarchy.ListProjects(r.Context(), constraint, limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if projects == nil {
		projects = []hierarchy.Project{}
	}
	httputil.WriteSuccess(w, projects)
}

type projectRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// CreateProject creates a project. Only elevated users can: before the
// project exists there is nothing to hold a role on.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	if !h.requireElevated(w, r) {
		return
	}

	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	p := &hierarchy.Project{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if user := identity.UserFromRequest(r); user != nil {
		p.CreatedBy = &user.ID
	}

	if err := h.hierarchy.CreateProject(r.Context(), p); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, p)
}

// GetProject returns a single project. Any role grants read access.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	p, err := h.hierarchy.GetProject(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// UpdateProject updates a project's editable fields. EDITOR only.
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p, err := h.hierarchy.GetProject(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	p.Name = req.Name
	p.Description = req.Description
	p.StartDate = req.StartDate
	p.EndDate = req.EndDate
	if err := h.hierarchy.UpdateProject(r.Context(), p); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// DeleteProject removes a project and its subtree. EDITOR only.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.hierarchy.DeleteProject(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ApproveProject marks a fully progressed project approved. EDITOR only.
func (h *Handlers) ApproveProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.hierarchy.ApproveProject(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	p, err := h.hierarchy.GetProject(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}
