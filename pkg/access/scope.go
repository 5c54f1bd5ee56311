package access

import (
	"fmt"

	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/identity"
)

// Constraint is a SQL fragment scoping a list query to the rows the
// user may see. An empty Clause means unconstrained. Args are bound
// starting at $1; callers appending further placeholders continue from
// len(Args)+1.
type Constraint struct {
	Clause string
	Args   []any
}

// Unconstrained returns true when the constraint filters nothing
func (c Constraint) Unconstrained() bool {
	return c.Clause == ""
}

// DenyAll matches no rows
var DenyAll = Constraint{Clause: "1 = 0"}

// Filter generates visibility constraints for collection queries. It
// never resolves rows individually; visibility is expressed as
// subqueries over the assignment tables so the database does the work.
type Filter struct{}

// NewFilter creates a collection filter
func NewFilter() *Filter {
	return &Filter{}
}

// Scope returns the constraint for listing entities of the given kind.
// Elevated users see everything. Anonymous and inactive users see
// nothing. For everyone else:
//
//   - projects: any assignment on the project
//   - factors: factors of editor-granted projects, plus directly
//     assigned factors at any role
//   - traits, aspects: descendants of the visible factor set
func (f *Filter) Scope(u *identity.User, kind EntityKind) (Constraint, error) {
	if u.Elevated() {
		return Constraint{}, nil
	}
	if u == nil || !u.IsActive {
		return DenyAll, nil
	}

	editor := assignments.RoleEditor.String()

	switch kind {
	case KindProject:
		return Constraint{
			Clause: `id IN (SELECT project_id FROM project_assignments WHERE user_id = $1)`,
			Args:   []any{u.ID},
		}, nil

	case KindFactor:
		return Constraint{
			Clause: `(project_id IN (SELECT project_id FROM project_assignments WHERE user_id = $1 AND role = $2)
				OR id IN (SELECT factor_id FROM factor_assignments WHERE user_id = $1))`,
			Args: []any{u.ID, editor},
		}, nil

	case KindTrait:
		return Constraint{
			Clause: `factor_id IN (
				SELECT id FROM factors WHERE project_id IN (SELECT project_id FROM project_assignments WHERE user_id = $1 AND role = $2)
				UNION
				SELECT factor_id FROM factor_assignments WHERE user_id = $1)`,
			Args: []any{u.ID, editor},
		}, nil

	case KindAspect:
		return Constraint{
			Clause: `trait_id IN (
				SELECT id FROM traits WHERE factor_id IN (
					SELECT id FROM factors WHERE project_id IN (SELECT project_id FROM project_assignments WHERE user_id = $1 AND role = $2)
					UNION
					SELECT factor_id FROM factor_assignments WHERE user_id = $1))`,
			Args: []any{u.ID, editor},
		}, nil

	default:
		return DenyAll, fmt.Errorf("unknown entity kind %q", kind)
	}
}
