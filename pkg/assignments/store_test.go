package assignments

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
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
		CREATE TABLE project_assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			assigned_by INTEGER,
			assigned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (project_id, user_id)
		);

		CREATE TABLE factor_assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			factor_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			assigned_by INTEGER,
			assigned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (factor_id, user_id)
		);
	`)

	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func TestStore_AssignProject(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	a := &ProjectAssignment{ProjectID: 1, UserID: 10, Role: RoleLector}
	if err := store.AssignProject(ctx, a); err != nil {
		t.Fatalf("AssignProject failed: %v", err)
	}
	if a.ID == 0 {
		t.Error("Expected assignment ID to be set after creation")
	}

	role, err := store.ProjectRole(ctx, 10, 1)
	if err != nil {
		t.Fatalf("ProjectRole failed: %v", err)
	}
	if role != RoleLector {
		t.Errorf("Expected lector, got %v", role)
	}
}

func TestStore_AssignProjectReplacesRole(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	if err := store.AssignProject(ctx, &ProjectAssignment{ProjectID: 1, UserID: 10, Role: RoleLector}); err != nil {
		t.Fatalf("AssignProject failed: %v", err)
	}

	// A second grant for the same pair replaces the role instead of
	// adding a row.
	if err := store.AssignProject(ctx, &ProjectAssignment{ProjectID: 1, UserID: 10, Role: RoleEditor}); err != nil {
		t.Fatalf("AssignProject (replace) failed: %v", err)
	}

	role, err := store.ProjectRole(ctx, 10, 1)
	if err != nil {
		t.Fatalf("ProjectRole failed: %v", err)
	}
	if role != RoleEditor {
		t.Errorf("Expected editor after replacement, got %v", role)
	}

	list, err := store.ListProjectAssignments(ctx, 1)
	if err != nil {
		t.Fatalf("ListProjectAssignments failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected a single assignment for the pair, got %d", len(list))
	}
}

func TestStore_AssignProjectRejectsInvalidRole(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	err := store.AssignProject(context.Background(), &ProjectAssignment{ProjectID: 1, UserID: 10, Role: RoleNone})
	if err == nil {
		t.Error("Expected error when assigning the zero role")
	}
}

func TestStore_ProjectRoleAbsent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	role, err := store.ProjectRole(context.Background(), 99, 99)
	if err != nil {
		t.Fatalf("ProjectRole failed: %v", err)
	}
	if role != RoleNone {
		t.Errorf("Expected RoleNone for missing grant, got %v", role)
	}
}

func TestStore_RevokeProject(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	if err := store.AssignProject(ctx, &ProjectAssignment{ProjectID: 1, UserID: 10, Role: RoleComentador}); err != nil {
		t.Fatalf("AssignProject failed: %v", err)
	}

	if err := store.RevokeProject(ctx, 1, 10); err != nil {
		t.Fatalf("RevokeProject failed: %v", err)
	}

	role, err := store.ProjectRole(ctx, 10, 1)
	if err != nil {
		t.Fatalf("ProjectRole failed: %v", err)
	}
	if role != RoleNone {
		t.Errorf("Expected RoleNone after revoke, got %v", role)
	}

	if err := store.RevokeProject(ctx, 1, 10); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for second revoke, got %v", err)
	}
}

func TestStore_FactorAssignments(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	granter := int64(7)
	a := &FactorAssignment{FactorID: 5, UserID: 10, Role: RoleComentador, AssignedBy: &granter}
	if err := store.AssignFactor(ctx, a); err != nil {
		t.Fatalf("AssignFactor failed: %v", err)
	}

	role, err := store.FactorRole(ctx, 10, 5)
	if err != nil {
		t.Fatalf("FactorRole failed: %v", err)
	}
	if role != RoleComentador {
		t.Errorf("Expected comentador, got %v", role)
	}

	// Role on one factor says nothing about a different factor.
	role, err = store.FactorRole(ctx, 10, 6)
	if err != nil {
		t.Fatalf("FactorRole failed: %v", err)
	}
	if role != RoleNone {
		t.Errorf("Expected RoleNone on unassigned factor, got %v", role)
	}

	list, err := store.ListFactorAssignments(ctx, 5)
	if err != nil {
		t.Fatalf("ListFactorAssignments failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 assignment, got %d", len(list))
	}
	if list[0].AssignedBy == nil || *list[0].AssignedBy != granter {
		t.Error("Expected assigned_by to round trip")
	}

	if err := store.RevokeFactor(ctx, 5, 10); err != nil {
		t.Fatalf("RevokeFactor failed: %v", err)
	}
	if err := store.RevokeFactor(ctx, 5, 10); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for second revoke, got %v", err)
	}
}
