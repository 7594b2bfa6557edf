package database

import (
	"context"
	"fmt"
)

var schemaStatements = []struct {
	name  string
	query string
}{
	{"lead_jobs table", `
		CREATE TABLE IF NOT EXISTS lead_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			who_query TEXT NOT NULL,
			what_query TEXT NOT NULL,
			where_query TEXT NOT NULL DEFAULT '',
			context_query TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT 'single',
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			leads JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"lead_job_logs table", `
		CREATE TABLE IF NOT EXISTS lead_job_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES lead_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"index on lead_job_logs", "CREATE INDEX IF NOT EXISTS idx_lead_job_logs_job_id ON lead_job_logs(job_id)"},
	{"index on lead_jobs", "CREATE INDEX IF NOT EXISTS idx_lead_jobs_created_at ON lead_jobs(created_at DESC)"},
	// Trajectory snapshot, written after every agent step.
	{"state column", "ALTER TABLE lead_jobs ADD COLUMN IF NOT EXISTS state JSONB"},
}

// InitSchema creates the job tables. It is idempotent.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, s := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
