package domain

import "time"

// TaskState mirrors the broker's task lifecycle states.
type TaskState string

// Task lifecycle states.
const (
	TaskPending TaskState = "PENDING"
	TaskStarted TaskState = "STARTED"
	TaskSuccess TaskState = "SUCCESS"
	TaskFailure TaskState = "FAILURE"
	TaskRetry   TaskState = "RETRY"
	TaskRevoked TaskState = "REVOKED"
)

// Terminal reports whether the state will never change again.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSuccess, TaskFailure, TaskRevoked:
		return true
	default:
		return false
	}
}

// Open reports whether the reconcile pass should still poll the task.
func (s TaskState) Open() bool {
	return !s.Terminal()
}

// resultMax caps the stored result text.
const resultMax = 1000

// TaskInstance is one materialized execution of a job.
type TaskInstance struct {
	ID            int64      `db:"id"             json:"id"`
	JobID         int64      `db:"job_id"         json:"job_id"`
	JobName       string     `db:"job_name"       json:"job_name"`
	ExecutionDate time.Time  `db:"execution_date" json:"execution_date"`
	Operator      Operator   `db:"operator"       json:"operator"`
	Command       string     `db:"command"        json:"command"`
	State         TaskState  `db:"state"          json:"state"`
	TaskHandle    *string    `db:"task_handle"    json:"task_handle,omitempty"`
	Result        string     `db:"result"         json:"result,omitempty"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	FinishedAt    *time.Time `db:"finished_at"    json:"finished_at,omitempty"`
}

// TruncateResult caps a broker result to the stored limit, cutting on
// a rune boundary.
func TruncateResult(result string) string {
	if len(result) <= resultMax {
		return result
	}
	return result[:truncationPoint(result, resultMax)]
}
