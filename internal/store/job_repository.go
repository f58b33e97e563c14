package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godash/internal/domain"
)

// jobColumns is the canonical select list for job rows.
const jobColumns = `id, name, timezone, operator, database_name, command,
	start_dt, end_dt, schedule_interval, next_run_ts, reset_status_minutes,
	active, block_till, block_by, block_msg, status, last_execution_ts,
	last_task_result, update_time`

// JobRepository handles database operations for jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job together with its tags and alert subscribers
// in a single transaction. A duplicate job name returns ErrDuplicate.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job, tags, subscribers []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO jobs (name, timezone, operator, database_name, command,
				start_dt, end_dt, schedule_interval, next_run_ts,
				reset_status_minutes, active, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, update_time
		`
		err := tx.QueryRowContext(
			ctx,
			query,
			job.Name,
			job.Timezone,
			job.Operator,
			job.Database,
			job.Command,
			job.StartDT,
			job.EndDT,
			job.ScheduleInterval,
			job.NextRunTS,
			job.ResetStatusMinutes,
			job.Active,
			job.Status,
		).Scan(&job.ID, &job.UpdateTime)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("job %q: %w", job.Name, ErrDuplicate)
			}
			return fmt.Errorf("failed to create job: %w", err)
		}

		for _, tag := range tags {
			if err := insertTag(ctx, tx, tag, job.Name); err != nil {
				return err
			}
		}
		for _, email := range subscribers {
			if err := insertJobAlert(ctx, tx, job.Name, email); err != nil {
				return err
			}
		}
		return nil
	})
}

// Edit updates a job's definition and reconciles its tags and alert
// subscribers to the given sets. The job row is locked first so the
// set difference is computed against the state no concurrent writer
// can change mid-edit.
func (r *JobRepository) Edit(ctx context.Context, job *domain.Job, tags, subscribers []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var id int64
		if err := tx.GetContext(ctx, &id,
			`SELECT id FROM jobs WHERE name = $1 FOR UPDATE`, job.Name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("job %q: %w", job.Name, ErrNotFound)
			}
			return fmt.Errorf("failed to lock job: %w", err)
		}

		query := `
			UPDATE jobs
			SET timezone = $1, operator = $2, database_name = $3, command = $4,
			    start_dt = $5, end_dt = $6, schedule_interval = $7,
			    next_run_ts = $8, reset_status_minutes = $9,
			    update_time = NOW() AT TIME ZONE 'utc'
			WHERE name = $10
		`
		if _, err := tx.ExecContext(
			ctx,
			query,
			job.Timezone,
			job.Operator,
			job.Database,
			job.Command,
			job.StartDT,
			job.EndDT,
			job.ScheduleInterval,
			job.NextRunTS,
			job.ResetStatusMinutes,
			job.Name,
		); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		var currentTags []string
		if err := tx.SelectContext(ctx, &currentTags,
			`SELECT name FROM tags WHERE job_name = $1`, job.Name); err != nil {
			return fmt.Errorf("failed to read current tags: %w", err)
		}
		addTags, removeTags := diffSets(currentTags, tags)
		for _, tag := range addTags {
			if err := insertTag(ctx, tx, tag, job.Name); err != nil {
				return err
			}
		}
		for _, tag := range removeTags {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM tags WHERE name = $1 AND job_name = $2`, tag, job.Name); err != nil {
				return fmt.Errorf("failed to remove tag: %w", err)
			}
		}

		var currentSubs []string
		if err := tx.SelectContext(ctx, &currentSubs,
			`SELECT email FROM job_alerts WHERE job_name = $1`, job.Name); err != nil {
			return fmt.Errorf("failed to read current subscribers: %w", err)
		}
		addSubs, removeSubs := diffSets(currentSubs, subscribers)
		for _, email := range addSubs {
			if err := insertJobAlert(ctx, tx, job.Name, email); err != nil {
				return err
			}
		}
		for _, email := range removeSubs {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM job_alerts WHERE job_name = $1 AND email = $2`, job.Name, email); err != nil {
				return fmt.Errorf("failed to remove subscriber: %w", err)
			}
		}
		return nil
	})
}

// GetByName retrieves a job by its unique name.
func (r *JobRepository) GetByName(ctx context.Context, name string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE name = $1`

	err := r.db.GetContext(ctx, &job, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// List retrieves all jobs, optionally restricted to active ones,
// ordered by name.
func (r *JobRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY name`
	if activeOnly {
		query = `SELECT ` + jobColumns + ` FROM jobs WHERE active = TRUE ORDER BY name`
	}

	var jobs []*domain.Job
	if err := r.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ListByTag retrieves the jobs carrying the given tag, ordered by name.
func (r *JobRepository) ListByTag(ctx context.Context, tag string) ([]*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE name IN (SELECT job_name FROM tags WHERE name = $1)
		ORDER BY name
	`

	var jobs []*domain.Job
	if err := r.db.SelectContext(ctx, &jobs, query, tag); err != nil {
		return nil, fmt.Errorf("failed to list jobs by tag: %w", err)
	}
	return jobs, nil
}

// ListForTick retrieves the jobs a scheduler tick must visit: active
// jobs plus blocked jobs awaiting unblock, ordered by id.
func (r *JobRepository) ListForTick(ctx context.Context) ([]*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE active = TRUE OR block_till IS NOT NULL
		ORDER BY id
	`

	var jobs []*domain.Job
	if err := r.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs for tick: %w", err)
	}
	return jobs, nil
}

// UpdateScheduled commits the outcome of one dispatch visit: the job's
// scheduling fields, and the materialized task when one was dispatched.
// The job row is locked for the duration of the transaction. When the
// row's update_time no longer matches the snapshot the visit was
// computed from, the write is refused with ErrStale so a concurrent
// edit is not clobbered.
func (r *JobRepository) UpdateScheduled(ctx context.Context, job *domain.Job, task *domain.TaskInstance) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var updateTime time.Time
		if err := tx.GetContext(ctx, &updateTime,
			`SELECT update_time FROM jobs WHERE id = $1 FOR UPDATE`, job.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("job %q: %w", job.Name, ErrNotFound)
			}
			return fmt.Errorf("failed to lock job: %w", err)
		}
		if !updateTime.Equal(job.UpdateTime) {
			return fmt.Errorf("job %q: %w", job.Name, ErrStale)
		}

		query := `
			UPDATE jobs
			SET next_run_ts = $1, active = $2, block_till = $3, block_by = $4,
			    block_msg = $5, status = $6, last_execution_ts = $7,
			    last_task_result = $8, update_time = NOW() AT TIME ZONE 'utc'
			WHERE id = $9
		`
		if _, err := tx.ExecContext(
			ctx,
			query,
			job.NextRunTS,
			job.Active,
			job.BlockTill,
			job.BlockBy,
			job.BlockMsg,
			job.Status,
			job.LastExecutionTS,
			job.LastTaskResult,
			job.ID,
		); err != nil {
			return fmt.Errorf("failed to update scheduled job: %w", err)
		}

		if task != nil {
			if err := insertTask(ctx, tx, task); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetActive flips the job's active flag.
func (r *JobRepository) SetActive(ctx context.Context, name string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET active = $1, update_time = NOW() AT TIME ZONE 'utc' WHERE name = $2`,
		active, name)
	if rowsErr := execRequireRows(result, err, fmt.Errorf("job %q: %w", name, ErrNotFound)); rowsErr != nil {
		if err != nil {
			return fmt.Errorf("failed to set active: %w", err)
		}
		return rowsErr
	}
	return nil
}

// Block deactivates the job until the given naive UTC timestamp,
// recording who blocked it and why.
func (r *JobRepository) Block(ctx context.Context, name string, till time.Time, by, msg string) error {
	query := `
		UPDATE jobs
		SET active = FALSE, block_till = $1, block_by = $2, block_msg = $3,
		    update_time = NOW() AT TIME ZONE 'utc'
		WHERE name = $4
	`
	result, err := r.db.ExecContext(ctx, query, till, by, msg, name)
	if rowsErr := execRequireRows(result, err, fmt.Errorf("job %q: %w", name, ErrNotFound)); rowsErr != nil {
		if err != nil {
			return fmt.Errorf("failed to block job: %w", err)
		}
		return rowsErr
	}
	return nil
}

// DeleteCascade removes a job together with its task history, tags and
// job alert subscriptions in a single transaction. Tag alerts are left
// alone since tags may be shared across jobs.
func (r *JobRepository) DeleteCascade(ctx context.Context, name string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, q := range []string{
			`DELETE FROM job_alerts WHERE job_name = $1`,
			`DELETE FROM tags WHERE job_name = $1`,
			`DELETE FROM task_instances WHERE job_name = $1`,
		} {
			if _, err := tx.ExecContext(ctx, q, name); err != nil {
				return fmt.Errorf("failed to delete job dependents: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE name = $1`, name)
		if rowsErr := execRequireRows(result, err, fmt.Errorf("job %q: %w", name, ErrNotFound)); rowsErr != nil {
			if err != nil {
				return fmt.Errorf("failed to delete job: %w", err)
			}
			return rowsErr
		}
		return nil
	})
}

// diffSets returns the elements of want missing from have and the
// elements of have missing from want.
func diffSets(have, want []string) (add, remove []string) {
	haveSet := make(map[string]bool, len(have))
	for _, s := range have {
		haveSet[s] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, s := range want {
		wantSet[s] = true
	}

	for _, s := range want {
		if !haveSet[s] {
			add = append(add, s)
		}
	}
	for _, s := range have {
		if !wantSet[s] {
			remove = append(remove, s)
		}
	}
	return add, remove
}

// insertTag adds a tag row, ignoring duplicates.
func insertTag(ctx context.Context, tx *sqlx.Tx, name, jobName string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tags (name, job_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		name, jobName)
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

// insertJobAlert adds a job alert subscription, ignoring duplicates.
func insertJobAlert(ctx context.Context, tx *sqlx.Tx, jobName, email string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO job_alerts (job_name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		jobName, email)
	if err != nil {
		return fmt.Errorf("failed to insert job alert: %w", err)
	}
	return nil
}
