package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/cascade"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	// Stores propagate it unchanged; callers must not confuse it with a
	// permission denial.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidDateRange is returned when a factor's dates fall outside
	// the owning project's dates or end precedes start
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrPreconditionFailed is returned when an approval action runs
	// against an entity that has not reached full completion
	ErrPreconditionFailed = errors.New("completion precondition not met")
)

// Store persists the accreditation tree. Every mutation that can move a
// derived field runs the write and the cascade inside one transaction.
type Store struct {
	db     *sql.DB
	engine *cascade.Engine
	// txIsolation is serializable in production. In-package tests over
	// sqlite use the default level, which sqlite treats as serializable
	// anyway.
	txIsolation sql.IsolationLevel
}

// NewStore creates a hierarchy store
func NewStore(db *sql.DB, engine *cascade.Engine) *Store {
	return &Store{db: db, engine: engine, txIsolation: sql.LevelSerializable}
}

func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.txIsolation})
}

// --- Projects ---

// CreateProject inserts a new project. Progress starts at zero.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return ErrInvalidDateRange
	}

	query := `
		INSERT INTO projects (name, description, start_date, end_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.StartDate, p.EndDate, p.CreatedBy, now, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	p.Progress = 0
	p.Approved = false
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProject retrieves a project by ID
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	query := `
		SELECT id, name, description, start_date, end_date, progress, approved, created_by, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	return scanProject(s.db.QueryRowContext(ctx, query, id))
}

// UpdateProject updates a project's editable fields. Progress and
// approved are owned by the cascade and the approval action.
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return ErrInvalidDateRange
	}

	query := `
		UPDATE projects
		SET name = $1, description = $2, start_date = $3, end_date = $4, updated_at = $5
		WHERE id = $6
	`

	now := time.Now()
	result, err := s.db.ExecContext(ctx, query, p.Name, p.Description, p.StartDate, p.EndDate, now, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRow(result)
}

// DeleteProject removes a project and, via the schema's cascading
// foreign keys, its whole subtree
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRow(result)
}

// ApproveProject marks a project approved. Only a fully progressed
// project can be approved.
func (s *Store) ApproveProject(ctx context.Context, id int64) error {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p.Progress != 100 {
		return fmt.Errorf("%w: project %d is at %d%%", ErrPreconditionFailed, id, p.Progress)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET approved = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to approve project: %w", err)
	}
	return requireRow(result)
}

// ListProjects returns projects visible under the constraint
func (s *Store) ListProjects(ctx context.Context, c access.Constraint, limit, offset int) ([]Project, error) {
	query := `SELECT id, name, description, start_date, end_date, progress, approved, created_by, created_at, updated_at FROM projects`
	args := []any{}
	if !c.Unconstrained() {
		query += " WHERE " + c.Clause
		args = append(args, c.Args...)
	}
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// --- Factors ---

// CreateFactor inserts a factor under a project. Factor dates must fall
// within the project's dates when both are set.
func (s *Store) CreateFactor(ctx context.Context, f *Factor) error {
	p, err := s.GetProject(ctx, f.ProjectID)
	if err != nil {
		return err
	}
	if err := validateFactorDates(f, p); err != nil {
		return err
	}

	query := `
		INSERT INTO factors (project_id, name, description, start_date, end_date, ponderation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	err = tx.QueryRowContext(ctx, query,
		f.ProjectID, f.Name, f.Description, f.StartDate, f.EndDate, f.Ponderation, now, now,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to create factor: %w", err)
	}

	// A new factor starts incomplete, which can lower the project's
	// progress.
	if err := s.engine.FactorChanged(ctx, tx, f.ProjectID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	f.Status = StatusPending
	f.CompletionPct = 0
	f.IsCompleted = false
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

// GetFactor retrieves a factor by ID
func (s *Store) GetFactor(ctx context.Context, id int64) (*Factor, error) {
	query := `
		SELECT id, project_id, name, description, start_date, end_date, ponderation, status, completion_pct, is_completed, created_at, updated_at
		FROM factors
		WHERE id = $1
	`
	return scanFactor(s.db.QueryRowContext(ctx, query, id))
}

// UpdateFactor updates a factor's editable fields
func (s *Store) UpdateFactor(ctx context.Context, f *Factor) error {
	p, err := s.GetProject(ctx, f.ProjectID)
	if err != nil {
		return err
	}
	if err := validateFactorDates(f, p); err != nil {
		return err
	}

	query := `
		UPDATE factors
		SET name = $1, description = $2, start_date = $3, end_date = $4, ponderation = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		f.Name, f.Description, f.StartDate, f.EndDate, f.Ponderation, time.Now(), f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update factor: %w", err)
	}
	return requireRow(result)
}

// DeleteFactor removes a factor and recomputes the project's progress
// in the same transaction
func (s *Store) DeleteFactor(ctx context.Context, id int64) error {
	projectID, err := s.ProjectIDForFactor(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM factors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete factor: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := s.engine.FactorChanged(ctx, tx, projectID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ApproveFactor moves a factor to the approved status. Only a fully
// completed factor can be approved.
func (s *Store) ApproveFactor(ctx context.Context, id int64) error {
	return s.setFactorStatus(ctx, id, StatusApproved)
}

// RejectFactor moves a factor to the rejected status. Rejection also
// requires completion: review happens only on finished work.
func (s *Store) RejectFactor(ctx context.Context, id int64) error {
	return s.setFactorStatus(ctx, id, StatusRejected)
}

func (s *Store) setFactorStatus(ctx context.Context, id int64, status FactorStatus) error {
	f, err := s.GetFactor(ctx, id)
	if err != nil {
		return err
	}
	if !f.IsCompleted {
		return fmt.Errorf("%w: factor %d is at %d%%", ErrPreconditionFailed, id, f.CompletionPct)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE factors SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set factor status: %w", err)
	}
	return requireRow(result)
}

// ListFactors returns factors visible under the constraint. A non-zero
// projectID narrows the list to one project.
func (s *Store) ListFactors(ctx context.Context, c access.Constraint, projectID int64, limit, offset int) ([]Factor, error) {
	query := `SELECT id, project_id, name, description, start_date, end_date, ponderation, status, completion_pct, is_completed, created_at, updated_at FROM factors`
	args := []any{}
	var where []string
	if !c.Unconstrained() {
		where = append(where, c.Clause)
		args = append(args, c.Args...)
	}
	if projectID != 0 {
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)+1))
		args = append(args, projectID)
	}
	query += joinWhere(where)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}
	defer rows.Close()

	var out []Factor
	for rows.Next() {
		f, err := scanFactorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// ProjectIDForFactor returns the owning project
func (s *Store) ProjectIDForFactor(ctx context.Context, factorID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT project_id FROM factors WHERE id = $1`, factorID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find project for factor %d: %w", factorID, err)
	}
	return id, nil
}

// --- Traits ---

// CreateTrait inserts a trait under a factor
func (s *Store) CreateTrait(ctx context.Context, t *Trait) error {
	query := `
		INSERT INTO traits (factor_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query, t.FactorID, t.Name, t.Description, now, now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create trait: %w", err)
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// traitPercentage is the read-time aggregate over a trait's aspects,
// with the same truncation as the factor rollup.
const traitPercentage = `COALESCE((
	SELECT CASE WHEN COUNT(id) = 0 THEN 0
	ELSE SUM(CASE WHEN approved THEN 1 ELSE 0 END) * 100 / COUNT(id) END
	FROM aspects WHERE trait_id = traits.id), 0)`

// GetTrait retrieves a trait by ID
func (s *Store) GetTrait(ctx context.Context, id int64) (*Trait, error) {
	query := `SELECT id, factor_id, name, description, ` + traitPercentage + `, created_at, updated_at FROM traits WHERE id = $1`

	var t Trait
	err := s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.FactorID, &t.Name, &t.Description, &t.ApprovedPercentage, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trait: %w", err)
	}
	return &t, nil
}

// UpdateTrait updates a trait's editable fields
func (s *Store) UpdateTrait(ctx context.Context, t *Trait) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE traits SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		t.Name, t.Description, time.Now(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update trait: %w", err)
	}
	return requireRow(result)
}

// DeleteTrait removes a trait and its aspects, recomputing the owning
// factor in the same transaction
func (s *Store) DeleteTrait(ctx context.Context, id int64) error {
	factorID, err := s.FactorIDForTrait(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// sqlite in tests does not enforce ON DELETE CASCADE by default, so
	// delete children explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM aspects WHERE trait_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete trait aspects: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM traits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trait: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := s.engine.RecomputeFactor(ctx, tx, factorID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListTraits returns traits visible under the constraint
func (s *Store) ListTraits(ctx context.Context, c access.Constraint, factorID int64, limit, offset int) ([]Trait, error) {
	query := `SELECT id, factor_id, name, description, ` + traitPercentage + `, created_at, updated_at FROM traits`
	args := []any{}
	var where []string
	if !c.Unconstrained() {
		where = append(where, c.Clause)
		args = append(args, c.Args...)
	}
	if factorID != 0 {
		where = append(where, fmt.Sprintf("factor_id = $%d", len(args)+1))
		args = append(args, factorID)
	}
	query += joinWhere(where)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list traits: %w", err)
	}
	defer rows.Close()

	var out []Trait
	for rows.Next() {
		var t Trait
		if err := rows.Scan(&t.ID, &t.FactorID, &t.Name, &t.Description, &t.ApprovedPercentage, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trait: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FactorIDForTrait returns the owning factor
func (s *Store) FactorIDForTrait(ctx context.Context, traitID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT factor_id FROM traits WHERE id = $1`, traitID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find factor for trait %d: %w", traitID, err)
	}
	return id, nil
}

// --- Aspects ---

// CreateAspect inserts an aspect under a trait and recomputes the
// owning factor. A new aspect starts unapproved, which can lower the
// factor's completion percentage.
func (s *Store) CreateAspect(ctx context.Context, a *Aspect) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO aspects (trait_id, name, description, weight, acceptance_criteria, evaluation_rule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	err = tx.QueryRowContext(ctx, query,
		a.TraitID, a.Name, a.Description, a.Weight, a.AcceptanceCriteria, a.EvaluationRule, now, now,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create aspect: %w", err)
	}

	if err := s.engine.AspectChanged(ctx, tx, a.TraitID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	a.Approved = false
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// GetAspect retrieves an aspect by ID
func (s *Store) GetAspect(ctx context.Context, id int64) (*Aspect, error) {
	query := `
		SELECT id, trait_id, name, description, weight, approved, acceptance_criteria, evaluation_rule, created_at, updated_at
		FROM aspects
		WHERE id = $1
	`
	return scanAspect(s.db.QueryRowContext(ctx, query, id))
}

// UpdateAspect updates an aspect's editable fields. Approval goes
// through SetAspectApproved so the cascade always runs.
func (s *Store) UpdateAspect(ctx context.Context, a *Aspect) error {
	query := `
		UPDATE aspects
		SET name = $1, description = $2, weight = $3, acceptance_criteria = $4, evaluation_rule = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		a.Name, a.Description, a.Weight, a.AcceptanceCriteria, a.EvaluationRule, time.Now(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update aspect: %w", err)
	}
	return requireRow(result)
}

// SetAspectApproved flips an aspect's approved flag and runs the full
// cascade inside one transaction. Setting the current value is a no-op
// all the way up.
func (s *Store) SetAspectApproved(ctx context.Context, id int64, approved bool) error {
	a, err := s.GetAspect(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if a.Approved != approved {
		_, err = tx.ExecContext(ctx,
			`UPDATE aspects SET approved = $1, updated_at = $2 WHERE id = $3`,
			approved, time.Now(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to set aspect approval: %w", err)
		}
	}

	if err := s.engine.AspectChanged(ctx, tx, a.TraitID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// DeleteAspect removes an aspect and recomputes the owning factor in
// the same transaction
func (s *Store) DeleteAspect(ctx context.Context, id int64) error {
	a, err := s.GetAspect(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM aspects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete aspect: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := s.engine.AspectChanged(ctx, tx, a.TraitID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListAspects returns aspects visible under the constraint
func (s *Store) ListAspects(ctx context.Context, c access.Constraint, traitID int64, limit, offset int) ([]Aspect, error) {
	query := `SELECT id, trait_id, name, description, weight, approved, acceptance_criteria, evaluation_rule, created_at, updated_at FROM aspects`
	args := []any{}
	var where []string
	if !c.Unconstrained() {
		where = append(where, c.Clause)
		args = append(args, c.Args...)
	}
	if traitID != 0 {
		where = append(where, fmt.Sprintf("trait_id = $%d", len(args)+1))
		args = append(args, traitID)
	}
	query += joinWhere(where)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list aspects: %w", err)
	}
	defer rows.Close()

	var out []Aspect
	for rows.Next() {
		a, err := scanAspectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// TraitIDForAspect returns the owning trait
func (s *Store) TraitIDForAspect(ctx context.Context, aspectID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT trait_id FROM aspects WHERE id = $1`, aspectID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find trait for aspect %d: %w", aspectID, err)
	}
	return id, nil
}

// --- helpers ---

func validateFactorDates(f *Factor, p *Project) error {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return ErrInvalidDateRange
	}
	if f.StartDate != nil && p.StartDate != nil && f.StartDate.Before(*p.StartDate) {
		return fmt.Errorf("%w: factor starts before project", ErrInvalidDateRange)
	}
	if f.EndDate != nil && p.EndDate != nil && f.EndDate.After(*p.EndDate) {
		return fmt.Errorf("%w: factor ends after project", ErrInvalidDateRange)
	}
	return nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return ""
	}
	out := " WHERE " + where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProjectFrom(sc rowScanner) (*Project, error) {
	var p Project
	var description sql.NullString
	var start, end sql.NullTime
	var createdBy sql.NullInt64

	err := sc.Scan(&p.ID, &p.Name, &description, &start, &end, &p.Progress, &p.Approved, &createdBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	if start.Valid {
		t := start.Time
		p.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		p.EndDate = &t
	}
	if createdBy.Valid {
		id := createdBy.Int64
		p.CreatedBy = &id
	}
	return &p, nil
}

func scanProject(row *sql.Row) (*Project, error) {
	p, err := scanProjectFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func scanProjectRows(rows *sql.Rows) (*Project, error) {
	p, err := scanProjectFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return p, nil
}

func scanFactorFrom(sc rowScanner) (*Factor, error) {
	var f Factor
	var description sql.NullString
	var start, end sql.NullTime
	var status string

	err := sc.Scan(&f.ID, &f.ProjectID, &f.Name, &description, &start, &end, &f.Ponderation, &status, &f.CompletionPct, &f.IsCompleted, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	f.Description = description.String
	f.Status = FactorStatus(status)
	if start.Valid {
		t := start.Time
		f.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		f.EndDate = &t
	}
	return &f, nil
}

func scanFactor(row *sql.Row) (*Factor, error) {
	f, err := scanFactorFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factor: %w", err)
	}
	return f, nil
}

func scanFactorRows(rows *sql.Rows) (*Factor, error) {
	f, err := scanFactorFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan factor: %w", err)
	}
	return f, nil
}

func scanAspectFrom(sc rowScanner) (*Aspect, error) {
	var a Aspect
	var description, criteria, rule sql.NullString

	err := sc.Scan(&a.ID, &a.TraitID, &a.Name, &description, &a.Weight, &a.Approved, &criteria, &rule, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Description = description.String
	a.AcceptanceCriteria = criteria.String
	a.EvaluationRule = rule.String
	return &a, nil
}

func scanAspect(row *sql.Row) (*Aspect, error) {
	a, err := scanAspectFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aspect: %w", err)
	}
	return a, nil
}

func scanAspectRows(rows *sql.Rows) (*Aspect, error) {
	a, err := scanAspectFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan aspect: %w", err)
	}
	return a, nil
}
