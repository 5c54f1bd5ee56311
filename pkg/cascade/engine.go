package cascade

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/acredia/acredia/pkg/observability"
)

// Queryer is the subset of database operations the engine needs. Both
// *sql.DB and *sql.Tx satisfy it; mutation paths pass the transaction
// that performed the triggering write.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InvariantViolationError reports a computed percentage outside 0..100.
// It is fatal: the engine never clamps, it surfaces the broken state.
type InvariantViolationError struct {
	Level    string // "factor" or "project"
	EntityID int64
	Value    int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("computed %s percentage %d for id %d is out of range", e.Level, e.Value, e.EntityID)
}

// Engine performs the derived-field recomputations
type Engine struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewEngine creates a cascade engine. Metrics may be nil.
func NewEngine(logger *observability.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{logger: logger, metrics: metrics}
}

// FactorRollup computes a factor's completion percentage from its
// approved aspects. Zero aspects means zero percent.
func (e *Engine) FactorRollup(ctx context.Context, q Queryer, factorID int64) (pct int, completed bool, err error) {
	query := `
		SELECT COUNT(a.id), COALESCE(SUM(CASE WHEN a.approved THEN 1 ELSE 0 END), 0)
		FROM aspects a
		JOIN traits t ON a.trait_id = t.id
		WHERE t.factor_id = $1
	`

	var total, approved int
	if err := q.QueryRowContext(ctx, query, factorID).Scan(&total, &approved); err != nil {
		return 0, false, fmt.Errorf("failed to count aspects for factor %d: %w", factorID, err)
	}

	if total == 0 {
		return 0, false, nil
	}

	pct = approved * 100 / total
	if pct < 0 || pct > 100 {
		return 0, false, &InvariantViolationError{Level: "factor", EntityID: factorID, Value: pct}
	}

	return pct, pct == 100, nil
}

// ProjectProgress computes a project's progress from its completed
// factors. Zero factors means zero progress.
func (e *Engine) ProjectProgress(ctx context.Context, q Queryer, projectID int64) (int, error) {
	query := `
		SELECT COUNT(id), COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0)
		FROM factors
		WHERE project_id = $1
	`

	var total, completed int
	if err := q.QueryRowContext(ctx, query, projectID).Scan(&total, &completed); err != nil {
		return 0, fmt.Errorf("failed to count factors for project %d: %w", projectID, err)
	}

	if total == 0 {
		return 0, nil
	}

	progress := completed * 100 / total
	if progress < 0 || progress > 100 {
		return 0, &InvariantViolationError{Level: "project", EntityID: projectID, Value: progress}
	}

	return progress, nil
}

// AspectChanged recomputes the factor owning the given trait, then runs
// the project step. Callers invoke it after any write that can change an
// aspect's approved flag, on the same transaction as that write.
func (e *Engine) AspectChanged(ctx context.Context, q Queryer, traitID int64) error {
	var factorID int64
	err := q.QueryRowContext(ctx, `SELECT factor_id FROM traits WHERE id = $1`, traitID).Scan(&factorID)
	if err != nil {
		return fmt.Errorf("failed to find factor for trait %d: %w", traitID, err)
	}
	return e.RecomputeFactor(ctx, q, factorID)
}

// RecomputeFactor refreshes one factor's rollup and then the owning
// project's progress. Used directly when the triggering write removed
// the trait or aspect rows that AspectChanged would have walked.
func (e *Engine) RecomputeFactor(ctx context.Context, q Queryer, factorID int64) error {
	pct, completed, err := e.FactorRollup(ctx, q, factorID)
	if err != nil {
		e.observeInvariant(err)
		return err
	}

	var storedPct int
	var storedCompleted bool
	var projectID int64
	err = q.QueryRowContext(ctx,
		`SELECT completion_pct, is_completed, project_id FROM factors WHERE id = $1`,
		factorID,
	).Scan(&storedPct, &storedCompleted, &projectID)
	if err != nil {
		return fmt.Errorf("failed to read factor %d: %w", factorID, err)
	}

	if pct != storedPct || completed != storedCompleted {
		_, err = q.ExecContext(ctx,
			`UPDATE factors SET completion_pct = $1, is_completed = $2, updated_at = $3 WHERE id = $4`,
			pct, completed, time.Now(), factorID,
		)
		if err != nil {
			return fmt.Errorf("failed to update factor %d rollup: %w", factorID, err)
		}
		e.observeRecompute("factor", true)
		if e.logger != nil {
			e.logger.WithFields(map[string]any{
				"factor_id":      factorID,
				"completion_pct": pct,
				"is_completed":   completed,
			}).Debug("factor rollup updated")
		}
	} else {
		e.observeRecompute("factor", false)
	}

	// The project step always runs; its own value comparison keeps the
	// whole pass idempotent.
	return e.FactorChanged(ctx, q, projectID)
}

// FactorChanged recomputes the given project's progress, writing only
// when the value moved.
func (e *Engine) FactorChanged(ctx context.Context, q Queryer, projectID int64) error {
	progress, err := e.ProjectProgress(ctx, q, projectID)
	if err != nil {
		e.observeInvariant(err)
		return err
	}

	var stored int
	if err := q.QueryRowContext(ctx, `SELECT progress FROM projects WHERE id = $1`, projectID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to read project %d: %w", projectID, err)
	}

	if progress == stored {
		e.observeRecompute("project", false)
		return nil
	}

	_, err = q.ExecContext(ctx,
		`UPDATE projects SET progress = $1, updated_at = $2 WHERE id = $3`,
		progress, time.Now(), projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project %d progress: %w", projectID, err)
	}

	e.observeRecompute("project", true)
	if e.logger != nil {
		e.logger.WithFields(map[string]any{
			"project_id": projectID,
			"progress":   progress,
		}).Debug("project progress updated")
	}
	return nil
}

func (e *Engine) observeRecompute(level string, updated bool) {
	if e.metrics == nil {
		return
	}
	outcome := "unchanged"
	if updated {
		outcome = "updated"
	}
	e.metrics.CascadeRecomputesTotal.WithLabelValues(level, outcome).Inc()
}

func (e *Engine) observeInvariant(err error) {
	iv, ok := err.(*InvariantViolationError)
	if !ok {
		return
	}
	if e.metrics != nil {
		e.metrics.CascadeInvariantsTotal.WithLabelValues(iv.Level).Inc()
	}
	if e.logger != nil {
		e.logger.WithError(iv).WithFields(map[string]any{
			"level":     iv.Level,
			"entity_id": iv.EntityID,
			"value":     iv.Value,
		}).Error("progress invariant violated")
	}
}
