package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations are applied in order; every statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id                   BIGSERIAL PRIMARY KEY,
		name                 TEXT NOT NULL UNIQUE,
		timezone             TEXT NOT NULL,
		operator             TEXT NOT NULL,
		database_name        TEXT NOT NULL DEFAULT '',
		command              TEXT NOT NULL,
		start_dt             TIMESTAMP NOT NULL,
		end_dt               TIMESTAMP,
		schedule_interval    TEXT NOT NULL,
		next_run_ts          TIMESTAMP NOT NULL,
		reset_status_minutes INTEGER NOT NULL DEFAULT 0,
		active               BOOLEAN NOT NULL DEFAULT TRUE,
		block_till           TIMESTAMP,
		block_by             TEXT NOT NULL DEFAULT '',
		block_msg            TEXT NOT NULL DEFAULT '',
		status               SMALLINT NOT NULL DEFAULT 2,
		last_execution_ts    TIMESTAMP,
		last_task_result     TEXT NOT NULL DEFAULT '',
		update_time          TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
	)`,

	`CREATE TABLE IF NOT EXISTS task_instances (
		id             BIGSERIAL PRIMARY KEY,
		job_id         BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		job_name       TEXT NOT NULL,
		execution_date TIMESTAMP NOT NULL,
		operator       TEXT NOT NULL,
		command        TEXT NOT NULL,
		state          TEXT NOT NULL DEFAULT 'PENDING',
		task_handle    TEXT,
		result         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
		finished_at    TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_task_instances_job_name
		ON task_instances(job_name)`,

	`CREATE INDEX IF NOT EXISTS idx_task_instances_state
		ON task_instances(state)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id       BIGSERIAL PRIMARY KEY,
		name     TEXT NOT NULL,
		job_name TEXT NOT NULL,
		UNIQUE (name, job_name)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tags_job_name ON tags(job_name)`,

	`CREATE TABLE IF NOT EXISTS job_alerts (
		id       BIGSERIAL PRIMARY KEY,
		job_name TEXT NOT NULL,
		email    TEXT NOT NULL,
		UNIQUE (job_name, email)
	)`,

	`CREATE TABLE IF NOT EXISTS tag_alerts (
		id       BIGSERIAL PRIMARY KEY,
		tag_name TEXT NOT NULL,
		email    TEXT NOT NULL,
		UNIQUE (tag_name, email)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
	)`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
