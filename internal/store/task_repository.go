package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godash/internal/domain"
)

// taskColumns is the canonical select list for task instance rows.
const taskColumns = `id, job_id, job_name, execution_date, operator, command,
	state, task_handle, result, created_at, finished_at`

// TaskRepository handles database operations for task instances.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task instance.
func (r *TaskRepository) Create(ctx context.Context, task *domain.TaskInstance) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return insertTask(ctx, tx, task)
	})
}

// GetByID retrieves a task instance by id.
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*domain.TaskInstance, error) {
	var task domain.TaskInstance
	query := `SELECT ` + taskColumns + ` FROM task_instances WHERE id = $1`

	err := r.db.GetContext(ctx, &task, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// ListOpen retrieves the tasks the reconcile pass must poll, oldest
// first.
func (r *TaskRepository) ListOpen(ctx context.Context) ([]*domain.TaskInstance, error) {
	query := `
		SELECT ` + taskColumns + ` FROM task_instances
		WHERE state IN ('PENDING', 'STARTED', 'RETRY')
		ORDER BY id
	`

	var tasks []*domain.TaskInstance
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}
	return tasks, nil
}

// ListForJob retrieves the most recent task instances of a job,
// newest first.
func (r *TaskRepository) ListForJob(ctx context.Context, jobName string, limit int) ([]*domain.TaskInstance, error) {
	query := `
		SELECT ` + taskColumns + ` FROM task_instances
		WHERE job_name = $1
		ORDER BY id DESC
		LIMIT $2
	`

	var tasks []*domain.TaskInstance
	if err := r.db.SelectContext(ctx, &tasks, query, jobName, limit); err != nil {
		return nil, fmt.Errorf("failed to list tasks for job: %w", err)
	}
	return tasks, nil
}

// DeleteForJob removes a job's entire task history and returns the
// number of rows deleted.
func (r *TaskRepository) DeleteForJob(ctx context.Context, jobName string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM task_instances WHERE job_name = $1`, jobName)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted tasks: %w", err)
	}
	return n, nil
}

// SetState records a non-terminal state transition.
func (r *TaskRepository) SetState(ctx context.Context, id int64, state domain.TaskState) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE task_instances SET state = $1 WHERE id = $2`, state, id)
	if rowsErr := execRequireRows(result, err, fmt.Errorf("task %d: %w", id, ErrNotFound)); rowsErr != nil {
		if err != nil {
			return fmt.Errorf("failed to set task state: %w", err)
		}
		return rowsErr
	}
	return nil
}

// SetHandle attaches the broker handle to a task after submission.
func (r *TaskRepository) SetHandle(ctx context.Context, id int64, handle string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE task_instances SET task_handle = $1 WHERE id = $2`, handle, id)
	if rowsErr := execRequireRows(result, err, fmt.Errorf("task %d: %w", id, ErrNotFound)); rowsErr != nil {
		if err != nil {
			return fmt.Errorf("failed to set task handle: %w", err)
		}
		return rowsErr
	}
	return nil
}

// Complete records a terminal task outcome and promotes the owning
// job's status in the same transaction. The job row is locked while
// both rows are written.
func (r *TaskRepository) Complete(ctx context.Context, task *domain.TaskInstance, jobStatus domain.JobStatus) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked int64
		err := tx.GetContext(ctx, &locked,
			`SELECT id FROM jobs WHERE id = $1 FOR UPDATE`, task.JobID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock job: %w", err)
		}
		jobExists := err == nil

		query := `
			UPDATE task_instances
			SET state = $1, result = $2,
			    finished_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $3
		`
		result, execErr := tx.ExecContext(ctx, query, task.State, task.Result, task.ID)
		if rowsErr := execRequireRows(result, execErr, fmt.Errorf("task %d: %w", task.ID, ErrNotFound)); rowsErr != nil {
			if execErr != nil {
				return fmt.Errorf("failed to complete task: %w", execErr)
			}
			return rowsErr
		}

		// The job may have been removed while the task was in flight.
		if !jobExists {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = $1, last_task_result = $2, last_execution_ts = $3,
			    update_time = NOW() AT TIME ZONE 'utc'
			WHERE id = $4
		`, jobStatus, task.Result, task.ExecutionDate, task.JobID); err != nil {
			return fmt.Errorf("failed to promote job status: %w", err)
		}
		return nil
	})
}

// insertTask adds a task instance row within an open transaction.
func insertTask(ctx context.Context, tx *sqlx.Tx, task *domain.TaskInstance) error {
	query := `
		INSERT INTO task_instances (job_id, job_name, execution_date,
			operator, command, state, task_handle, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := tx.QueryRowContext(
		ctx,
		query,
		task.JobID,
		task.JobName,
		task.ExecutionDate,
		task.Operator,
		task.Command,
		task.State,
		task.TaskHandle,
		task.Result,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}
