package access

import (
	"database/sql"
	"sort"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acredia/acredia/pkg/identity"
)

// setupScopeDB seeds a small tree exercising every visibility rule:
//
//	project 1: user 7 is project EDITOR; factor 10
//	project 2: user 7 is project LECTOR; factors 20, 21 (direct LECTOR on 21)
//	project 3: no project grant; factors 30 (direct EDITOR), 31 (nothing)
func setupScopeDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE projects (id INTEGER PRIMARY KEY);
		CREATE TABLE factors (id INTEGER PRIMARY KEY, project_id INTEGER NOT NULL);
		CREATE TABLE traits (id INTEGER PRIMARY KEY, factor_id INTEGER NOT NULL);
		CREATE TABLE aspects (id INTEGER PRIMARY KEY, trait_id INTEGER NOT NULL);
		CREATE TABLE project_assignments (project_id INTEGER, user_id INTEGER, role TEXT);
		CREATE TABLE factor_assignments (factor_id INTEGER, user_id INTEGER, role TEXT);

		INSERT INTO projects (id) VALUES (1), (2), (3);
		INSERT INTO factors (id, project_id) VALUES (10, 1), (20, 2), (21, 2), (30, 3), (31, 3);
		INSERT INTO traits (id, factor_id) VALUES (100, 10), (200, 20), (210, 21), (300, 30), (310, 31);
		INSERT INTO aspects (id, trait_id) VALUES (1000, 100), (2000, 200), (2100, 210), (3000, 300), (3100, 310);

		INSERT INTO project_assignments (project_id, user_id, role) VALUES
			(1, 7, 'editor'),
			(2, 7, 'lector');
		INSERT INTO factor_assignments (factor_id, user_id, role) VALUES
			(21, 7, 'lector'),
			(30, 7, 'editor');
	`)
	if err != nil {
		t.Fatalf("Failed to seed scope fixture: %v", err)
	}

	return db
}

func visibleIDs(t *testing.T, db *sql.DB, table string, c Constraint) []int64 {
	t.Helper()

	query := "SELECT id FROM " + table
	if !c.Unconstrained() {
		query += " WHERE " + c.Clause
	}

	rows, err := db.Query(query, c.Args...)
	if err != nil {
		t.Fatalf("Scoped query failed: %v", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestFilter_ElevatedSeesEverything(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	f := NewFilter()
	admin := &identity.User{ID: 1, IsActive: true, IsElevated: true}

	for _, kind := range []EntityKind{KindProject, KindFactor, KindTrait, KindAspect} {
		c, err := f.Scope(admin, kind)
		require.NoError(t, err)
		assert.True(t, c.Unconstrained(), "elevated scope for %s", kind)
	}

	assert.Equal(t, []int64{10, 20, 21, 30, 31}, visibleIDs(t, db, "factors", Constraint{}))
}

func TestFilter_AnonymousSeesNothing(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	f := NewFilter()
	for _, u := range []*identity.User{nil, {ID: 7, IsActive: false}} {
		c, err := f.Scope(u, KindProject)
		require.NoError(t, err)
		assert.Empty(t, visibleIDs(t, db, "projects", c))
	}
}

func TestFilter_StrangerSeesNothing(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	f := NewFilter()
	stranger := &identity.User{ID: 99, IsActive: true}

	for kind, table := range map[EntityKind]string{
		KindProject: "projects",
		KindFactor:  "factors",
		KindTrait:   "traits",
		KindAspect:  "aspects",
	} {
		c, err := f.Scope(stranger, kind)
		require.NoError(t, err)
		assert.Empty(t, visibleIDs(t, db, table, c), "stranger should see no %s", table)
	}
}

func TestFilter_ProjectScope(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	c, err := NewFilter().Scope(&identity.User{ID: 7, IsActive: true}, KindProject)
	require.NoError(t, err)

	// Any assignment at all makes the project visible.
	assert.Equal(t, []int64{1, 2}, visibleIDs(t, db, "projects", c))
}

func TestFilter_FactorScope(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	c, err := NewFilter().Scope(&identity.User{ID: 7, IsActive: true}, KindFactor)
	require.NoError(t, err)

	// Factors of editor projects (10), plus directly assigned factors
	// regardless of role (21, 30). A LECTOR project grant alone does not
	// expose its factors (20 hidden).
	assert.Equal(t, []int64{10, 21, 30}, visibleIDs(t, db, "factors", c))
}

func TestFilter_TraitScope(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	c, err := NewFilter().Scope(&identity.User{ID: 7, IsActive: true}, KindTrait)
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 210, 300}, visibleIDs(t, db, "traits", c))
}

func TestFilter_AspectScope(t *testing.T) {
	db := setupScopeDB(t)
	defer db.Close()

	c, err := NewFilter().Scope(&identity.User{ID: 7, IsActive: true}, KindAspect)
	require.NoError(t, err)

	assert.Equal(t, []int64{1000, 2100, 3000}, visibleIDs(t, db, "aspects", c))
}

func TestFilter_UnknownKind(t *testing.T) {
	_, err := NewFilter().Scope(&identity.User{ID: 7, IsActive: true}, "galaxy")
	assert.Error(t, err)
}
