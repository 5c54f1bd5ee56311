package cascade

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/acredia/acredia/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Each new :memory: connection is a separate empty database.
	db.SetMaxOpenConns(1)

	// Create minimal tables for testing
	_, err = db.Exec(`
		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			approved INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE factors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			completion_pct INTEGER NOT NULL DEFAULT 0,
			is_completed INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE traits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			factor_id INTEGER NOT NULL,
			name TEXT NOT NULL
		);

		CREATE TABLE aspects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trait_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			approved INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)

	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

type fixture struct {
	projectID int64
	factorID  int64
	traitID   int64
	aspectIDs []int64
}

// seedTree creates one project with one factor, one trait and the given
// number of aspects, none approved.
func seedTree(t *testing.T, db *sql.DB, aspects int) fixture {
	t.Helper()

	var fx fixture
	res, err := db.Exec(`INSERT INTO projects (name) VALUES ('p')`)
	if err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	fx.projectID, _ = res.LastInsertId()

	res, err = db.Exec(`INSERT INTO factors (project_id, name) VALUES (?, 'f')`, fx.projectID)
	if err != nil {
		t.Fatalf("Failed to seed factor: %v", err)
	}
	fx.factorID, _ = res.LastInsertId()

	res, err = db.Exec(`INSERT INTO traits (factor_id, name) VALUES (?, 't')`, fx.factorID)
	if err != nil {
		t.Fatalf("Failed to seed trait: %v", err)
	}
	fx.traitID, _ = res.LastInsertId()

	for i := 0; i < aspects; i++ {
		res, err = db.Exec(`INSERT INTO aspects (trait_id, name) VALUES (?, 'a')`, fx.traitID)
		if err != nil {
			t.Fatalf("Failed to seed aspect: %v", err)
		}
		id, _ := res.LastInsertId()
		fx.aspectIDs = append(fx.aspectIDs, id)
	}

	return fx
}

func approveAspect(t *testing.T, db *sql.DB, id int64) {
	t.Helper()
	if _, err := db.Exec(`UPDATE aspects SET approved = 1 WHERE id = ?`, id); err != nil {
		t.Fatalf("Failed to approve aspect: %v", err)
	}
}

func factorState(t *testing.T, db *sql.DB, id int64) (pct int, completed bool, updatedAt time.Time) {
	t.Helper()
	err := db.QueryRow(`SELECT completion_pct, is_completed, updated_at FROM factors WHERE id = ?`, id).
		Scan(&pct, &completed, &updatedAt)
	if err != nil {
		t.Fatalf("Failed to read factor state: %v", err)
	}
	return
}

func projectProgress(t *testing.T, db *sql.DB, id int64) int {
	t.Helper()
	var p int
	if err := db.QueryRow(`SELECT progress FROM projects WHERE id = ?`, id).Scan(&p); err != nil {
		t.Fatalf("Failed to read project progress: %v", err)
	}
	return p
}

func TestFactorRollup_NoAspects(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	fx := seedTree(t, db, 0)
	engine := NewEngine(nil, nil)

	pct, completed, err := engine.FactorRollup(context.Background(), db, fx.factorID)
	if err != nil {
		t.Fatalf("FactorRollup failed: %v", err)
	}
	if pct != 0 || completed {
		t.Errorf("Expected 0%% and not completed for empty factor, got %d%% completed=%v", pct, completed)
	}
}

func TestFactorRollup_Truncates(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	fx := seedTree(t, db, 3)
	approveAspect(t, db, fx.aspectIDs[0])

	engine := NewEngine(nil, nil)
	pct, completed, err := engine.FactorRollup(context.Background(), db, fx.factorID)
	if err != nil {
		t.Fatalf("FactorRollup failed: %v", err)
	}
	if pct != 33 {
		t.Errorf("Expected 1/3 to truncate to 33, got %d", pct)
	}
	if completed {
		t.Error("Expected factor not completed at 33 percent")
	}
}

func TestAspectChanged_HalfThenFull(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	fx := seedTree(t, db, 4)
	engine := NewEngine(nil, nil)

	approveAspect(t, db, fx.aspectIDs[0])
	approveAspect(t, db, fx.aspectIDs[1])
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}

	pct, completed, _ := factorState(t, db, fx.factorID)
	if pct != 50 || completed {
		t.Errorf("Expected 50%% not completed, got %d%% completed=%v", pct, completed)
	}

	approveAspect(t, db, fx.aspectIDs[2])
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}
	pct, completed, _ = factorState(t, db, fx.factorID)
	if pct != 75 || completed {
		t.Errorf("Expected 75%% not completed, got %d%% completed=%v", pct, completed)
	}

	approveAspect(t, db, fx.aspectIDs[3])
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}
	pct, completed, _ = factorState(t, db, fx.factorID)
	if pct != 100 || !completed {
		t.Errorf("Expected 100%% completed, got %d%% completed=%v", pct, completed)
	}

	// The only factor completing should have pushed the project to 100.
	if got := projectProgress(t, db, fx.projectID); got != 100 {
		t.Errorf("Expected project progress 100, got %d", got)
	}
}

func TestAspectChanged_ProjectStaysPartial(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	fx := seedTree(t, db, 1)
	engine := NewEngine(nil, nil)

	// Second factor under the same project, never completed.
	if _, err := db.Exec(`INSERT INTO factors (project_id, name) VALUES (?, 'f2')`, fx.projectID); err != nil {
		t.Fatalf("Failed to seed second factor: %v", err)
	}

	approveAspect(t, db, fx.aspectIDs[0])
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}

	if got := projectProgress(t, db, fx.projectID); got != 50 {
		t.Errorf("Expected project progress 50 with one of two factors complete, got %d", got)
	}
}

func TestAspectChanged_Unapprove(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	fx := seedTree(t, db, 2)
	engine := NewEngine(nil, nil)

	approveAspect(t, db, fx.aspectIDs[0])
	approveAspect(t, db, fx.aspectIDs[1])
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}
	if got := projectProgress(t, db, fx.projectID); got != 100 {
		t.Fatalf("Expected project at 100 before unapproval, got %d", got)
	}

	// Unapproving walks the same chain back down.
	if _, err := db.Exec(`UPDATE aspects SET approved = 0 WHERE id = ?`, fx.aspectIDs[1]); err != nil {
		t.Fatalf("Failed to unapprove aspect: %v", err)
	}
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}

	pct, completed, _ := factorState(t, db, fx.factorID)
	if pct != 50 || completed {
		t.Errorf("Expected factor back to 50%% not completed, got %d%% completed=%v", pct, completed)
	}
	if got := projectProgress(t, db, fx.projectID); got != 0 {
		t.Errorf("Expected project back to 0, got %d", got)
	}
}

func TestAspectChanged_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	fx := seedTree(t, db, 2)
	engine := NewEngine(nil, nil)

	approveAspect(t, db, fx.aspectIDs[0])
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}
	_, _, first := factorState(t, db, fx.factorID)

	// Re-running with nothing changed must not touch the row.
	time.Sleep(10 * time.Millisecond)
	if err := engine.AspectChanged(ctx, db, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}
	_, _, second := factorState(t, db, fx.factorID)

	if !second.Equal(first) {
		t.Errorf("Expected updated_at untouched on idempotent recompute, got %v then %v", first, second)
	}
}

func TestAspectChanged_RunsInsideTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	fx := seedTree(t, db, 1)
	engine := NewEngine(nil, nil)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE aspects SET approved = 1 WHERE id = $1`, fx.aspectIDs[0]); err != nil {
		t.Fatalf("Failed to approve aspect in tx: %v", err)
	}
	if err := engine.AspectChanged(ctx, tx, fx.traitID); err != nil {
		t.Fatalf("AspectChanged failed: %v", err)
	}

	// A rollback discards the write and both recomputations together.
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	pct, completed, _ := factorState(t, db, fx.factorID)
	if pct != 0 || completed {
		t.Errorf("Expected factor untouched after rollback, got %d%% completed=%v", pct, completed)
	}
	if got := projectProgress(t, db, fx.projectID); got != 0 {
		t.Errorf("Expected project untouched after rollback, got %d", got)
	}
}

func TestInvariantViolationError_Message(t *testing.T) {
	err := &InvariantViolationError{Level: "factor", EntityID: 7, Value: 140}
	want := "computed factor percentage 140 for id 7 is out of range"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

// Corrupt counts can only come from a broken database; the mock stands
// in for one so the abort path is actually driven end to end.
func TestRecomputeFactor_AbortsOnCorruptCounts(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock database: %v", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(nil, metrics)

	// More approved aspects than aspects: 5/2 computes to 250.
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "approved"}).AddRow(2, 5))

	err = engine.RecomputeFactor(ctx, db, 3)

	var iv *InvariantViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("Expected InvariantViolationError, got %v", err)
	}
	if iv.Level != "factor" || iv.EntityID != 3 || iv.Value != 250 {
		t.Errorf("Expected factor/3/250, got %s/%d/%d", iv.Level, iv.EntityID, iv.Value)
	}

	// No factor read, no UPDATE: the engine stopped at the rollup.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database activity after violation: %v", err)
	}

	got := testutil.ToFloat64(metrics.CascadeInvariantsTotal.WithLabelValues("factor"))
	if got != 1 {
		t.Errorf("Expected 1 factor invariant observation, got %v", got)
	}
}

func TestFactorChanged_AbortsOnCorruptCounts(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock database: %v", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(nil, metrics)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "completed"}).AddRow(2, 7))

	err = engine.FactorChanged(ctx, db, 9)

	var iv *InvariantViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("Expected InvariantViolationError, got %v", err)
	}
	if iv.Level != "project" || iv.Value != 350 {
		t.Errorf("Expected project/350, got %s/%d", iv.Level, iv.Value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database activity after violation: %v", err)
	}

	got := testutil.ToFloat64(metrics.CascadeInvariantsTotal.WithLabelValues("project"))
	if got != 1 {
		t.Errorf("Expected 1 project invariant observation, got %v", got)
	}
}
