package assignments

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// GetMigrations returns all migrations for the assignments package
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_project_assignments_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_assignments (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL,
					user_id BIGINT NOT NULL,
					role VARCHAR(32) NOT NULL,
					assigned_by BIGINT,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (project_id, user_id)
				);
				CREATE INDEX IF NOT EXISTS idx_project_assignments_user ON project_assignments(user_id);
				CREATE INDEX IF NOT EXISTS idx_project_assignments_project ON project_assignments(project_id);
			`,
		},
		{
			Version: 2,
			Name:    "create_factor_assignments_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS factor_assignments (
					id BIGSERIAL PRIMARY KEY,
					factor_id BIGINT NOT NULL,
					user_id BIGINT NOT NULL,
					role VARCHAR(32) NOT NULL,
					assigned_by BIGINT,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (factor_id, user_id)
				);
				CREATE INDEX IF NOT EXISTS idx_factor_assignments_user ON factor_assignments(user_id);
				CREATE INDEX IF NOT EXISTS idx_factor_assignments_factor ON factor_assignments(factor_id);
			`,
		},
	}
}

// RunMigrations applies all assignments migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, migration := range GetMigrations() {
		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}
	return nil
}
