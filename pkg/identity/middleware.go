package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/acredia/acredia/pkg/contextkeys"
)

// ErrUserNotFound is returned when no user matches the lookup
var ErrUserNotFound = errors.New("user not found")

// AuthMiddleware authenticates requests via the Authorization header
type AuthMiddleware struct {
	store    *Store
	optional bool // if true, unauthenticated requests pass through anonymously
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(store *Store, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		store:    store,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication.
// Format: "Authorization: Bearer <token>"
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		user, err := m.store.GetUserByToken(r.Context(), parts[1])
		if err != nil {
			m.unauthorizedResponse(w, "invalid or revoked token")
			return
		}

		ctx := WithAuth(r.Context(), &AuthContext{User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// WithAuth adds an auth context to the context
func WithAuth(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, contextkeys.AuthKey, authCtx)
}

// GetAuthContext extracts the auth context from a request; nil when anonymous
func GetAuthContext(r *http.Request) *AuthContext {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// UserFromRequest returns the authenticated user, or nil for anonymous callers
func UserFromRequest(r *http.Request) *User {
	authCtx := GetAuthContext(r)
	if authCtx == nil {
		return nil
	}
	return authCtx.User
}
