// Package assignments stores explicit role grants on projects and factors.
//
// A grant binds (user, project) or (user, factor) to exactly one Role; the
// pair is unique, and re-granting replaces the stored role. Traits and
// aspects never carry grants of their own - they inherit through their
// factor (see pkg/access).
package assignments

import "time"

// ProjectAssignment grants a role on a project and everything under it
type ProjectAssignment struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	UserID     int64     `json:"user_id"`
	Role       Role      `json:"role"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// FactorAssignment grants a role on a single factor and its descendants
type FactorAssignment struct {
	ID         int64     `json:"id"`
	FactorID   int64     `json:"factor_id"`
	UserID     int64     `json:"user_id"`
	Role       Role      `json:"role"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}
