package hierarchy

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

// GetMigrations returns all migrations for the hierarchy package
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_projects_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					start_date DATE,
					end_date DATE,
					progress SMALLINT NOT NULL DEFAULT 0 CHECK (progress >= 0 AND progress <= 100),
					approved BOOLEAN NOT NULL DEFAULT FALSE,
					created_by BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version: 2,
			Name:    "create_factors_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS factors (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					start_date DATE,
					end_date DATE,
					ponderation DOUBLE PRECISION NOT NULL DEFAULT 0,
					status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
					completion_pct SMALLINT NOT NULL DEFAULT 0 CHECK (completion_pct >= 0 AND completion_pct <= 100),
					is_completed BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_factors_project ON factors(project_id);
			`,
		},
		{
			Version: 3,
			Name:    "create_traits_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS traits (
					id BIGSERIAL PRIMARY KEY,
					factor_id BIGINT NOT NULL REFERENCES factors(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_traits_factor ON traits(factor_id);
			`,
		},
		{
			Version: 4,
			Name:    "create_aspects_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS aspects (
					id BIGSERIAL PRIMARY KEY,
					trait_id BIGINT NOT NULL REFERENCES traits(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					weight NUMERIC(5,2) NOT NULL DEFAULT 0,
					approved BOOLEAN NOT NULL DEFAULT FALSE,
					acceptance_criteria TEXT,
					evaluation_rule TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_aspects_trait ON aspects(trait_id);
			`,
		},
	}
}

// RunMigrations applies all hierarchy migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, migration := range GetMigrations() {
		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}
	return nil
}
