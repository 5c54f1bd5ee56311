package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acredia/acredia/pkg/assignments"
)

func TestGate_UnauthorizedVsForbidden(t *testing.T) {
	fa := &fakeAssignments{
		projectRoles: map[pair]assignments.Role{{7, 1}: assignments.RoleLector},
	}
	gate := NewGate(NewResolver(fa, testTree()), nil, nil)
	ctx := context.Background()

	// No role at all: unauthorized.
	_, err := gate.Check(ctx, activeUser(99), EntityRef{KindProject, 1}, assignments.RoleEditor)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Has a role, but not one of the allowed: forbidden.
	_, err = gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1}, assignments.RoleEditor)
	assert.ErrorIs(t, err, ErrForbidden)

	// Allowed role passes and is returned.
	role, err := gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1}, assignments.RoleLector, assignments.RoleComentador, assignments.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleLector, role)

	// Empty allowed set only requires some role.
	role, err = gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleLector, role)
}

func TestGate_AnonymousIsUnauthorized(t *testing.T) {
	gate := NewGate(NewResolver(&fakeAssignments{}, testTree()), nil, nil)

	_, err := gate.Check(context.Background(), nil, EntityRef{KindProject, 1})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGate_CachesResolutions(t *testing.T) {
	fa := &fakeAssignments{
		projectRoles: map[pair]assignments.Role{{7, 1}: assignments.RoleEditor},
	}
	cache := NewMemoryRoleCache(64, time.Minute)
	gate := NewGate(NewResolver(fa, testTree()), cache, nil)
	ctx := context.Background()

	_, err := gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	require.NoError(t, err)
	callsAfterFirst := fa.calls

	_, err = gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, fa.calls, "second check should hit the cache")
}

func TestGate_InvalidateUser(t *testing.T) {
	fa := &fakeAssignments{
		projectRoles: map[pair]assignments.Role{{7, 1}: assignments.RoleEditor},
	}
	cache := NewMemoryRoleCache(64, time.Minute)
	gate := NewGate(NewResolver(fa, testTree()), cache, nil)
	ctx := context.Background()

	_, err := gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	require.NoError(t, err)

	// Revocation: the grant disappears, the cache is invalidated, and
	// the next check must see the new state.
	delete(fa.projectRoles, pair{7, 1})
	gate.InvalidateUser(ctx, 7)

	_, err = gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGate_CachesNegativeResults(t *testing.T) {
	fa := &fakeAssignments{}
	cache := NewMemoryRoleCache(64, time.Minute)
	gate := NewGate(NewResolver(fa, testTree()), cache, nil)
	ctx := context.Background()

	_, err := gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	assert.ErrorIs(t, err, ErrUnauthorized)
	callsAfterFirst := fa.calls

	_, err = gate.Check(ctx, activeUser(7), EntityRef{KindProject, 1})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, callsAfterFirst, fa.calls, "RoleNone should be cached like any other result")
}
