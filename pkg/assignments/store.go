package assignments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no assignment matches the lookup
var ErrNotFound = errors.New("assignment not found")

// Store handles assignment persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new assignment store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AssignProject grants a role on a project. The (project, user) pair is
// unique: assigning again replaces the stored role.
func (s *Store) AssignProject(ctx context.Context, a *ProjectAssignment) error {
	if !a.Role.Valid() {
		return fmt.Errorf("role %q is not assignable", a.Role)
	}

	query := `
		INSERT INTO project_assignments (project_id, user_id, role, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, assigned_by = EXCLUDED.assigned_by, assigned_at = EXCLUDED.assigned_at
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		a.ProjectID,
		a.UserID,
		a.Role.String(),
		a.AssignedBy,
		now,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to assign project role: %w", err)
	}

	a.AssignedAt = now
	return nil
}

// RevokeProject removes a user's grant on a project
func (s *Store) RevokeProject(ctx context.Context, projectID, userID int64) error {
	query := `DELETE FROM project_assignments WHERE project_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke project role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ProjectRole returns the role directly granted to a user on a project,
// or RoleNone when no grant exists.
func (s *Store) ProjectRole(ctx context.Context, userID, projectID int64) (Role, error) {
	query := `SELECT role FROM project_assignments WHERE user_id = $1 AND project_id = $2`

	var name string
	err := s.db.QueryRowContext(ctx, query, userID, projectID).Scan(&name)
	if err == sql.ErrNoRows {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("failed to look up project role: %w", err)
	}

	return ParseRole(name)
}

// ListProjectAssignments returns all grants on a project
func (s *Store) ListProjectAssignments(ctx context.Context, projectID int64) ([]ProjectAssignment, error) {
	query := `
		SELECT id, project_id, user_id, role, assigned_by, assigned_at
		FROM project_assignments
		WHERE project_id = $1
		ORDER BY assigned_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project assignments: %w", err)
	}
	defer rows.Close()

	var out []ProjectAssignment
	for rows.Next() {
		var a ProjectAssignment
		var name string
		var assignedBy sql.NullInt64

		if err := rows.Scan(&a.ID, &a.ProjectID, &a.UserID, &name, &assignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project assignment: %w", err)
		}
		if a.Role, err = ParseRole(name); err != nil {
			return nil, err
		}
		if assignedBy.Valid {
			id := assignedBy.Int64
			a.AssignedBy = &id
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

// AssignFactor grants a role on a single factor. The (factor, user) pair is
// unique: assigning again replaces the stored role.
func (s *Store) AssignFactor(ctx context.Context, a *FactorAssignment) error {
	if !a.Role.Valid() {
		return fmt.Errorf("role %q is not assignable", a.Role)
	}

	query := `
		INSERT INTO factor_assignments (factor_id, user_id, role, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (factor_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, assigned_by = EXCLUDED.assigned_by, assigned_at = EXCLUDED.assigned_at
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		a.FactorID,
		a.UserID,
		a.Role.String(),
		a.AssignedBy,
		now,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to assign factor role: %w", err)
	}

	a.AssignedAt = now
	return nil
}

// RevokeFactor removes a user's grant on a factor
func (s *Store) RevokeFactor(ctx context.Context, factorID, userID int64) error {
	query := `DELETE FROM factor_assignments WHERE factor_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, factorID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke factor role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// FactorRole returns the role directly granted to a user on a factor,
// or RoleNone when no grant exists.
func (s *Store) FactorRole(ctx context.Context, userID, factorID int64) (Role, error) {
	query := `SELECT role FROM factor_assignments WHERE user_id = $1 AND factor_id = $2`

	var name string
	err := s.db.QueryRowContext(ctx, query, userID, factorID).Scan(&name)
	if err == sql.ErrNoRows {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("failed to look up factor role: %w", err)
	}

	return ParseRole(name)
}

// ListFactorAssignments returns all grants on a factor
func (s *Store) ListFactorAssignments(ctx context.Context, factorID int64) ([]FactorAssignment, error) {
	query := `
		SELECT id, factor_id, user_id, role, assigned_by, assigned_at
		FROM factor_assignments
		WHERE factor_id = $1
		ORDER BY assigned_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, factorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list factor assignments: %w", err)
	}
	defer rows.Close()

	var out []FactorAssignment
	for rows.Next() {
		var a FactorAssignment
		var name string
		var assignedBy sql.NullInt64

		if err := rows.Scan(&a.ID, &a.FactorID, &a.UserID, &name, &assignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan factor assignment: %w", err)
		}
		if a.Role, err = ParseRole(name); err != nil {
			return nil, err
		}
		if assignedBy.Valid {
			id := assignedBy.Int64
			a.AssignedBy = &id
		}
		out = append(out, a)
	}

	return out, rows.Err()
}
