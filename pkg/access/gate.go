package access

import (
	"context"
	"fmt"

	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/identity"
	"github.com/acredia/acredia/pkg/observability"
)

// Gate is the single translation point from effective roles to
// allow/deny decisions. Nothing else in the codebase returns
// ErrUnauthorized or ErrForbidden.
type Gate struct {
	resolver *Resolver
	cache    RoleCache
	metrics  *observability.Metrics
}

// NewGate creates a gate. Cache and metrics may be nil.
func NewGate(resolver *Resolver, cache RoleCache, metrics *observability.Metrics) *Gate {
	return &Gate{resolver: resolver, cache: cache, metrics: metrics}
}

// Check resolves the user's role on the entity and verifies it against
// the allowed set. An empty allowed set only requires some role. Check
// never mutates anything; resolution failures propagate unchanged.
func (g *Gate) Check(ctx context.Context, u *identity.User, ref EntityRef, allowed ...assignments.Role) (assignments.Role, error) {
	role, err := g.resolve(ctx, u, ref)
	if err != nil {
		g.observe("error")
		return assignments.RoleNone, err
	}

	if role == assignments.RoleNone {
		g.observe("unauthorized")
		return assignments.RoleNone, fmt.Errorf("%w: %s", ErrUnauthorized, ref)
	}

	if len(allowed) > 0 && !roleAllowed(role, allowed) {
		g.observe("forbidden")
		return assignments.RoleNone, fmt.Errorf("%w: %s requires more than %s", ErrForbidden, ref, role)
	}

	g.observe("granted")
	return role, nil
}

// InvalidateUser drops the user's cached roles. Called by assignment
// mutation paths so revocations take effect immediately.
func (g *Gate) InvalidateUser(ctx context.Context, userID int64) {
	if g.cache != nil {
		g.cache.InvalidateUser(ctx, userID)
	}
}

func (g *Gate) resolve(ctx context.Context, u *identity.User, ref EntityRef) (assignments.Role, error) {
	// Anonymous callers bypass the cache; there is no stable key and the
	// resolver short-circuits them anyway.
	if u == nil || g.cache == nil {
		return g.resolver.Resolve(ctx, u, ref)
	}

	if role, ok := g.cache.Get(ctx, u.ID, ref); ok {
		if g.metrics != nil {
			g.metrics.RoleCacheHitsTotal.Inc()
		}
		return role, nil
	}
	if g.metrics != nil {
		g.metrics.RoleCacheMissesTotal.Inc()
	}

	role, err := g.resolver.Resolve(ctx, u, ref)
	if err != nil {
		return assignments.RoleNone, err
	}

	g.cache.Set(ctx, u.ID, ref, role)
	return role, nil
}

func (g *Gate) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.PermissionChecksTotal.WithLabelValues(outcome).Inc()
	}
}

func roleAllowed(role assignments.Role, allowed []assignments.Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
