package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/identity"
)

type pair struct{ userID, entityID int64 }

type fakeAssignments struct {
	projectRoles map[pair]assignments.Role
	factorRoles  map[pair]assignments.Role
	calls        int
	err          error
}

func (f *fakeAssignments) ProjectRole(ctx context.Context, userID, projectID int64) (assignments.Role, error) {
	f.calls++
	if f.err != nil {
		return assignments.RoleNone, f.err
	}
	return f.projectRoles[pair{userID, projectID}], nil
}

func (f *fakeAssignments) FactorRole(ctx context.Context, userID, factorID int64) (assignments.Role, error) {
	f.calls++
	if f.err != nil {
		return assignments.RoleNone, f.err
	}
	return f.factorRoles[pair{userID, factorID}], nil
}

type fakeHierarchy struct {
	factorProject map[int64]int64
	traitFactor   map[int64]int64
	aspectTrait   map[int64]int64
}

func (f *fakeHierarchy) ProjectIDForFactor(ctx context.Context, factorID int64) (int64, error) {
	id, ok := f.factorProject[factorID]
	if !ok {
		return 0, errors.New("factor not found")
	}
	return id, nil
}

func (f *fakeHierarchy) FactorIDForTrait(ctx context.Context, traitID int64) (int64, error) {
	id, ok := f.traitFactor[traitID]
	if !ok {
		return 0, errors.New("trait not found")
	}
	return id, nil
}

func (f *fakeHierarchy) TraitIDForAspect(ctx context.Context, aspectID int64) (int64, error) {
	id, ok := f.aspectTrait[aspectID]
	if !ok {
		return 0, errors.New("aspect not found")
	}
	return id, nil
}

// One project (1) holding factor 10, trait 100, aspect 1000.
func testTree() *fakeHierarchy {
	return &fakeHierarchy{
		factorProject: map[int64]int64{10: 1, 11: 1},
		traitFactor:   map[int64]int64{100: 10},
		aspectTrait:   map[int64]int64{1000: 100},
	}
}

func activeUser(id int64) *identity.User {
	return &identity.User{ID: id, IsActive: true}
}

func TestResolver_ElevationDominates(t *testing.T) {
	// A direct LECTOR grant must not pull an elevated user below EDITOR.
	fa := &fakeAssignments{
		projectRoles: map[pair]assignments.Role{{7, 1}: assignments.RoleLector},
	}
	r := NewResolver(fa, testTree())

	admin := &identity.User{ID: 7, IsActive: true, IsElevated: true}
	ctx := context.Background()

	for _, ref := range []EntityRef{
		{KindProject, 1}, {KindFactor, 10}, {KindTrait, 100}, {KindAspect, 1000},
	} {
		role, err := r.Resolve(ctx, admin, ref)
		require.NoError(t, err)
		assert.Equal(t, assignments.RoleEditor, role, "elevated user on %s", ref)
	}

	// Elevation short-circuits before any lookup.
	assert.Zero(t, fa.calls)
}

func TestResolver_ProjectEditorDominatesFactorGrant(t *testing.T) {
	// Project EDITOR with a conflicting LECTOR grant on a factor of the
	// same project: the project grant wins.
	fa := &fakeAssignments{
		projectRoles: map[pair]assignments.Role{{7, 1}: assignments.RoleEditor},
		factorRoles:  map[pair]assignments.Role{{7, 10}: assignments.RoleLector},
	}
	r := NewResolver(fa, testTree())

	role, err := r.ResolveFactor(context.Background(), activeUser(7), 10)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleEditor, role)
}

func TestResolver_MaxOfDirectAndInherited(t *testing.T) {
	// Project LECTOR plus factor COMENTADOR: the stronger role wins, and
	// a sibling factor only gets the inherited LECTOR.
	fa := &fakeAssignments{
		projectRoles: map[pair]assignments.Role{{7, 1}: assignments.RoleLector},
		factorRoles:  map[pair]assignments.Role{{7, 10}: assignments.RoleComentador},
	}
	r := NewResolver(fa, testTree())
	ctx := context.Background()

	role, err := r.ResolveFactor(ctx, activeUser(7), 10)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleComentador, role)

	role, err = r.ResolveFactor(ctx, activeUser(7), 11)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleLector, role)
}

func TestResolver_TraitAndAspectInherit(t *testing.T) {
	// COMENTADOR on factor 10 flows through trait 100 to aspect 1000.
	fa := &fakeAssignments{
		factorRoles: map[pair]assignments.Role{{7, 10}: assignments.RoleComentador},
	}
	r := NewResolver(fa, testTree())
	ctx := context.Background()
	u := activeUser(7)

	role, err := r.ResolveTrait(ctx, u, 100)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleComentador, role)

	role, err = r.ResolveAspect(ctx, u, 1000)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleComentador, role)
}

func TestResolver_Strangers(t *testing.T) {
	r := NewResolver(&fakeAssignments{}, testTree())
	ctx := context.Background()

	cases := map[string]*identity.User{
		"anonymous": nil,
		"inactive":  {ID: 7, IsActive: false},
		"no grants": activeUser(7),
	}

	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			for _, ref := range []EntityRef{
				{KindProject, 1}, {KindFactor, 10}, {KindTrait, 100}, {KindAspect, 1000},
			} {
				role, err := r.Resolve(ctx, u, ref)
				require.NoError(t, err)
				assert.Equal(t, assignments.RoleNone, role, "%s on %s", name, ref)
			}
		})
	}
}

func TestResolver_InactiveElevatedUser(t *testing.T) {
	// Deactivation strips elevation too.
	r := NewResolver(&fakeAssignments{}, testTree())

	u := &identity.User{ID: 7, IsActive: false, IsElevated: true}
	role, err := r.ResolveProject(context.Background(), u, 1)
	require.NoError(t, err)
	assert.Equal(t, assignments.RoleNone, role)
}

func TestResolver_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(&fakeAssignments{err: boom}, testTree())

	_, err := r.ResolveFactor(context.Background(), activeUser(7), 10)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_UnknownKind(t *testing.T) {
	r := NewResolver(&fakeAssignments{}, testTree())

	_, err := r.Resolve(context.Background(), activeUser(7), EntityRef{Kind: "galaxy", ID: 1})
	assert.Error(t, err)
}
