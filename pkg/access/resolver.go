package access

import (
	"context"
	"fmt"

	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/identity"
)

// EntityKind names a level of the accreditation tree
type EntityKind string

const (
	KindProject EntityKind = "project"
	KindFactor  EntityKind = "factor"
	KindTrait   EntityKind = "trait"
	KindAspect  EntityKind = "aspect"
)

// EntityRef identifies a single entity for a permission check
type EntityRef struct {
	Kind EntityKind
	ID   int64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// AssignmentSource provides direct role lookups. Implemented by
// assignments.Store.
type AssignmentSource interface {
	ProjectRole(ctx context.Context, userID, projectID int64) (assignments.Role, error)
	FactorRole(ctx context.Context, userID, factorID int64) (assignments.Role, error)
}

// HierarchySource provides parent lookups for walking up the tree.
// Implemented by hierarchy.Store.
type HierarchySource interface {
	ProjectIDForFactor(ctx context.Context, factorID int64) (int64, error)
	FactorIDForTrait(ctx context.Context, traitID int64) (int64, error)
	TraitIDForAspect(ctx context.Context, aspectID int64) (int64, error)
}

// Resolver computes effective roles
type Resolver struct {
	assignments AssignmentSource
	hierarchy   HierarchySource
}

// NewResolver creates a resolver over the given sources
func NewResolver(a AssignmentSource, h HierarchySource) *Resolver {
	return &Resolver{assignments: a, hierarchy: h}
}

// Resolve computes the effective role on an arbitrary entity
func (r *Resolver) Resolve(ctx context.Context, u *identity.User, ref EntityRef) (assignments.Role, error) {
	switch ref.Kind {
	case KindProject:
		return r.ResolveProject(ctx, u, ref.ID)
	case KindFactor:
		return r.ResolveFactor(ctx, u, ref.ID)
	case KindTrait:
		return r.ResolveTrait(ctx, u, ref.ID)
	case KindAspect:
		return r.ResolveAspect(ctx, u, ref.ID)
	default:
		return assignments.RoleNone, fmt.Errorf("unknown entity kind %q", ref.Kind)
	}
}

// ResolveProject returns the user's effective role on a project.
// Elevated users are EDITOR everywhere; anonymous and inactive users
// are RoleNone everywhere.
func (r *Resolver) ResolveProject(ctx context.Context, u *identity.User, projectID int64) (assignments.Role, error) {
	if u.Elevated() {
		return assignments.RoleEditor, nil
	}
	if u == nil || !u.IsActive {
		return assignments.RoleNone, nil
	}
	return r.assignments.ProjectRole(ctx, u.ID, projectID)
}

// ResolveFactor returns the user's effective role on a factor. A
// project-level EDITOR grant dominates any direct factor grant;
// otherwise the stronger of the direct and inherited roles wins.
func (r *Resolver) ResolveFactor(ctx context.Context, u *identity.User, factorID int64) (assignments.Role, error) {
	if u.Elevated() {
		return assignments.RoleEditor, nil
	}
	if u == nil || !u.IsActive {
		return assignments.RoleNone, nil
	}

	projectID, err := r.hierarchy.ProjectIDForFactor(ctx, factorID)
	if err != nil {
		return assignments.RoleNone, err
	}

	projectRole, err := r.assignments.ProjectRole(ctx, u.ID, projectID)
	if err != nil {
		return assignments.RoleNone, err
	}
	if projectRole == assignments.RoleEditor {
		return assignments.RoleEditor, nil
	}

	directRole, err := r.assignments.FactorRole(ctx, u.ID, factorID)
	if err != nil {
		return assignments.RoleNone, err
	}

	return assignments.MaxRole(directRole, projectRole), nil
}

// ResolveTrait delegates to the owning factor. Traits carry no
// assignments of their own.
func (r *Resolver) ResolveTrait(ctx context.Context, u *identity.User, traitID int64) (assignments.Role, error) {
	if u.Elevated() {
		return assignments.RoleEditor, nil
	}
	if u == nil || !u.IsActive {
		return assignments.RoleNone, nil
	}

	factorID, err := r.hierarchy.FactorIDForTrait(ctx, traitID)
	if err != nil {
		return assignments.RoleNone, err
	}
	return r.ResolveFactor(ctx, u, factorID)
}

// ResolveAspect delegates to the owning trait's factor
func (r *Resolver) ResolveAspect(ctx context.Context, u *identity.User, aspectID int64) (assignments.Role, error) {
	if u.Elevated() {
		return assignments.RoleEditor, nil
	}
	if u == nil || !u.IsActive {
		return assignments.RoleNone, nil
	}

	traitID, err := r.hierarchy.TraitIDForAspect(ctx, aspectID)
	if err != nil {
		return assignments.RoleNone, err
	}
	return r.ResolveTrait(ctx, u, traitID)
}
