package api

import (
	"net/http"

	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
)

type assignmentRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// ListProjectAssignments returns the grants on a project. EDITOR only.
func (h *Handlers) ListProjectAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.assignments.ListProjectAssignments(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []assignments.ProjectAssignment{}
	}
	httputil.WriteSuccess(w, list)
}

// AssignProjectRole grants or replaces a user's role on a project.
// EDITOR only. The target user's cached roles are invalidated.
func (h *Handlers) AssignProjectRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req assignmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := assignments.ParseRole(req.Role)
	if err != nil || !role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if req.UserID == 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	a := &assignments.ProjectAssignment{ProjectID: id, UserID: req.UserID, Role: role}
	if granter := identity.UserFromRequest(r); granter != nil {
		a.AssignedBy = &granter.ID
	}
	if err := h.assignments.AssignProject(r.Context(), a); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.gate.InvalidateUser(r.Context(), req.UserID)
	httputil.WriteCreated(w, a)
}

// RevokeProjectRole removes a user's grant on a project. EDITOR only.
func (h *Handlers) RevokeProjectRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.assignments.RevokeProject(r.Context(), id, userID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.gate.InvalidateUser(r.Context(), userID)
	httputil.WriteNoContent(w)
}

// ListFactorAssignments returns the grants on a factor. EDITOR only.
func (h *Handlers) ListFactorAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.assignments.ListFactorAssignments(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []assignments.FactorAssignment{}
	}
	httputil.WriteSuccess(w, list)
}

// AssignFactorRole grants or replaces a user's role on a single factor.
// EDITOR on the factor (direct or inherited) only.
func (h *Handlers) AssignFactorRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req assignmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := assignments.ParseRole(req.Role)
	if err != nil || !role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if req.UserID == 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	a := &assignments.FactorAssignment{FactorID: id, UserID: req.UserID, Role: role}
	if granter := identity.UserFromRequest(r); granter != nil {
		a.AssignedBy = &granter.ID
	}
	if err := h.assignments.AssignFactor(r.Context(), a); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.gate.InvalidateUser(r.Context(), req.UserID)
	httputil.WriteCreated(w, a)
}

// RevokeFactorRole removes a user's grant on a factor. EDITOR only.
func (h *Handlers) RevokeFactorRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.assignments.RevokeFactor(r.Context(), id, userID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.gate.InvalidateUser(r.Context(), userID)
	httputil.WriteNoContent(w)
}
