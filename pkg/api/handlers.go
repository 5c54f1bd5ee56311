// Package api exposes the accreditation tree over HTTP. Handlers
// delegate every permission decision to the access gate and every
// visibility decision to the collection filter; they contain no role
// logic of their own.
package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/hierarchy"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
	"github.com/acredia/acredia/pkg/observability"
)

// Handlers provides HTTP handlers for the accreditation API
type Handlers struct {
	hierarchy   *hierarchy.Store
	assignments *assignments.Store
	gate        *access.Gate
	filter      *access.Filter
	logger      *observability.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(h *hierarchy.Store, a *assignments.Store, gate *access.Gate, filter *access.Filter, logger *observability.Logger) *Handlers {
	return &Handlers{
		hierarchy:   h,
		assignments: a,
		gate:        gate,
		filter:      filter,
		logger:      logger,
	}
}

// RegisterRoutes registers all API routes. Single-object routes are
// gated by the permission middleware on the {id} path variable; create
// routes gate inside the handler because the parent entity arrives in
// the request body.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	perm := access.NewPermissionMiddleware(h.gate)

	viewProject := perm.RequireRole(access.KindProject)
	editProject := perm.RequireRole(access.KindProject, assignments.RoleEditor)
	viewFactor := perm.RequireRole(access.KindFactor)
	editFactor := perm.RequireRole(access.KindFactor, assignments.RoleEditor)
	viewTrait := perm.RequireRole(access.KindTrait)
	editTrait := perm.RequireRole(access.KindTrait, assignments.RoleEditor)
	viewAspect := perm.RequireRole(access.KindAspect)
	editAspect := perm.RequireRole(access.KindAspect, assignments.RoleEditor)
	reviewAspect := perm.RequireRole(access.KindAspect, assignments.RoleComentador, assignments.RoleEditor)

	// Projects
	router.HandleFunc("/api/projects", h.ListProjects).Methods("GET")
	router.HandleFunc("/api/projects", h.CreateProject).Methods("POST")
	router.Handle("/api/projects/{id}", viewProject(http.HandlerFunc(h.GetProject))).Methods("GET")
	router.Handle("/api/projects/{id}", editProject(http.HandlerFunc(h.UpdateProject))).Methods("PUT")
	router.Handle("/api/projects/{id}", editProject(http.HandlerFunc(h.DeleteProject))).Methods("DELETE")
	router.Handle("/api/projects/{id}/approve", editProject(http.HandlerFunc(h.ApproveProject))).Methods("POST")
	router.Handle("/api/projects/{id}/assignments", editProject(http.HandlerFunc(h.ListProjectAssignments))).Methods("GET")
	router.Handle("/api/projects/{id}/assignments", editProject(http.HandlerFunc(h.AssignProjectRole))).Methods("POST")
	router.Handle("/api/projects/{id}/assignments/{user_id}", editProject(http.HandlerFunc(h.RevokeProjectRole))).Methods("DELETE")

	// Factors
	router.HandleFunc("/api/factors", h.ListFactors).Methods("GET")
	router.HandleFunc("/api/factors", h.CreateFactor).Methods("POST")
	router.Handle("/api/factors/{id}", viewFactor(http.HandlerFunc(h.GetFactor))).Methods("GET")
	router.Handle("/api/factors/{id}", editFactor(http.HandlerFunc(h.UpdateFactor))).Methods("PUT")
	router.Handle("/api/factors/{id}", editFactor(http.HandlerFunc(h.DeleteFactor))).Methods("DELETE")
	router.Handle("/api/factors/{id}/approve", editFactor(http.HandlerFunc(h.ApproveFactor))).Methods("POST")
	router.Handle("/api/factors/{id}/reject", editFactor(http.HandlerFunc(h.RejectFactor))).Methods("POST")
	router.Handle("/api/factors/{id}/assignments", editFactor(http.HandlerFunc(h.ListFactorAssignments))).Methods("GET")
	router.Handle("/api/factors/{id}/assignments", editFactor(http.HandlerFunc(h.AssignFactorRole))).Methods("POST")
	router.Handle("/api/factors/{id}/assignments/{user_id}", editFactor(http.HandlerFunc(h.RevokeFactorRole))).Methods("DELETE")

	// Traits
	router.HandleFunc("/api/traits", h.ListTraits).Methods("GET")
	router.HandleFunc("/api/traits", h.CreateTrait).Methods("POST")
	router.Handle("/api/traits/{id}", viewTrait(http.HandlerFunc(h.GetTrait))).Methods("GET")
	router.Handle("/api/traits/{id}", editTrait(http.HandlerFunc(h.UpdateTrait))).Methods("PUT")
	router.Handle("/api/traits/{id}", editTrait(http.HandlerFunc(h.DeleteTrait))).Methods("DELETE")

	// Aspects
	router.HandleFunc("/api/aspects", h.ListAspects).Methods("GET")
	router.HandleFunc("/api/aspects", h.CreateAspect).Methods("POST")
	router.Handle("/api/aspects/{id}", viewAspect(http.HandlerFunc(h.GetAspect))).Methods("GET")
	router.Handle("/api/aspects/{id}", editAspect(http.HandlerFunc(h.UpdateAspect))).Methods("PUT")
	router.Handle("/api/aspects/{id}", editAspect(http.HandlerFunc(h.DeleteAspect))).Methods("DELETE")
	router.Handle("/api/aspects/{id}/approve", reviewAspect(http.HandlerFunc(h.ApproveAspect))).Methods("POST")
}

// check runs a gate check and writes the error response on failure
func (h *Handlers) check(w http.ResponseWriter, r *http.Request, ref access.EntityRef, allowed ...assignments.Role) bool {
	user := identity.UserFromRequest(r)
	if _, err := h.gate.Check(r.Context(), user, ref, allowed...); err != nil {
		access.WriteAccessError(w, err)
		return false
	}
	return true
}

// requireElevated rejects non-elevated callers. Anonymous callers get
// 401 so the Unauthorized/Forbidden distinction holds here too.
func (h *Handlers) requireElevated(w http.ResponseWriter, r *http.Request) bool {
	user := identity.UserFromRequest(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return false
	}
	if !user.Elevated() {
		httputil.WriteForbidden(w, "requires elevated privileges")
		return false
	}
	return true
}

// writeStoreError maps store errors onto HTTP responses
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hierarchy.ErrNotFound), errors.Is(err, assignments.ErrNotFound):
		httputil.WriteNotFound(w, "entity not found")
	case errors.Is(err, hierarchy.ErrInvalidDateRange):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, hierarchy.ErrPreconditionFailed):
		httputil.WriteConflict(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}
