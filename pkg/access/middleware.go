package access

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
)

// PermissionMiddleware wraps handlers with a gate check against the
// entity named in the route
type PermissionMiddleware struct {
	gate *Gate
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(gate *Gate) *PermissionMiddleware {
	return &PermissionMiddleware{gate: gate}
}

// RequireRole creates middleware that checks the caller's role on the
// entity identified by the {id} path variable. An empty allowed set
// requires any role at all.
func (pm *PermissionMiddleware) RequireRole(kind EntityKind, allowed ...assignments.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid id")
				return
			}

			user := identity.UserFromRequest(r)

			_, err = pm.gate.Check(r.Context(), user, EntityRef{Kind: kind, ID: id}, allowed...)
			if err != nil {
				WriteAccessError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteAccessError maps gate errors onto HTTP responses
func WriteAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httputil.WriteUnauthorized(w, "no access to entity")
	case errors.Is(err, ErrForbidden):
		httputil.WriteForbidden(w, "insufficient role for operation")
	default:
		httputil.WriteInternalError(w, err)
	}
}
