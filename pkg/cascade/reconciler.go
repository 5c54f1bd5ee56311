package cascade

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/acredia/acredia/pkg/observability"
)

// Reconciler re-verifies every derived field against the underlying
// rows. Out-of-band writes (bulk imports, manual fixes) bypass the
// in-transaction cascade; the reconciler repairs the drift they leave.
type Reconciler struct {
	db          *sql.DB
	engine      *Engine
	logger      *observability.Logger
	metrics     *observability.Metrics
	concurrency int

	cron *cron.Cron
}

// NewReconciler creates a reconciler sweeping with the given worker
// concurrency (minimum 1).
func NewReconciler(db *sql.DB, engine *Engine, logger *observability.Logger, metrics *observability.Metrics, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		db:          db,
		engine:      engine,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// Start schedules periodic sweeps using a cron expression
func (r *Reconciler) Start(schedule string) error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := r.RunOnce(ctx); err != nil {
			r.logger.WithError(err).Error("reconciler sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciler: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce performs a full sweep: every factor's rollup, then every
// project's progress. Returns the first error encountered.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	start := time.Now()

	factorRepairs, err := r.sweepFactors(ctx)
	if err != nil {
		r.observeRun(start, err)
		return err
	}

	projectRepairs, err := r.sweepProjects(ctx)
	if err != nil {
		r.observeRun(start, err)
		return err
	}

	r.observeRun(start, nil)
	r.logger.WithFields(map[string]any{
		"factor_repairs":  factorRepairs,
		"project_repairs": projectRepairs,
		"duration":        time.Since(start).String(),
	}).Info("reconciler sweep complete")
	return nil
}

func (r *Reconciler) sweepFactors(ctx context.Context) (int, error) {
	ids, err := r.listIDs(ctx, `SELECT id FROM factors ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to list factors: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	repairs := make(chan int64, len(ids))
	for _, id := range ids {
		id := id
		g.Go(func() error {
			repaired, err := r.repairFactor(gctx, id)
			if err != nil {
				return err
			}
			if repaired {
				repairs <- id
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(repairs)

	count := 0
	for id := range repairs {
		count++
		r.logger.WithField("factor_id", id).Warn("repaired drifted factor rollup")
		if r.metrics != nil {
			r.metrics.ReconcilerRepairsTotal.WithLabelValues("factor").Inc()
		}
	}
	return count, nil
}

func (r *Reconciler) sweepProjects(ctx context.Context) (int, error) {
	ids, err := r.listIDs(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to list projects: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	repairs := make(chan int64, len(ids))
	for _, id := range ids {
		id := id
		g.Go(func() error {
			repaired, err := r.repairProject(gctx, id)
			if err != nil {
				return err
			}
			if repaired {
				repairs <- id
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(repairs)

	count := 0
	for id := range repairs {
		count++
		r.logger.WithField("project_id", id).Warn("repaired drifted project progress")
		if r.metrics != nil {
			r.metrics.ReconcilerRepairsTotal.WithLabelValues("project").Inc()
		}
	}
	return count, nil
}

func (r *Reconciler) repairFactor(ctx context.Context, factorID int64) (bool, error) {
	pct, completed, err := r.engine.FactorRollup(ctx, r.db, factorID)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE factors SET completion_pct = $1, is_completed = $2, updated_at = $3
		 WHERE id = $4 AND (completion_pct != $1 OR is_completed != $2)`,
		pct, completed, time.Now(), factorID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to repair factor %d: %w", factorID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *Reconciler) repairProject(ctx context.Context, projectID int64) (bool, error) {
	progress, err := r.engine.ProjectProgress(ctx, r.db, projectID)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET progress = $1, updated_at = $2
		 WHERE id = $3 AND progress != $1`,
		progress, time.Now(), projectID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to repair project %d: %w", projectID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *Reconciler) listIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Reconciler) observeRun(start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ReconcilerRunsTotal.WithLabelValues(outcome).Inc()
	r.metrics.ReconcilerRunDuration.Observe(time.Since(start).Seconds())
}
