// Package broker adapts the scheduler to the external task execution
// backend.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/godash/internal/domain"
)

// ErrUnsupportedOperator is returned when a job's operator has no
// submit path on the broker.
var ErrUnsupportedOperator = errors.New("unsupported operator")

// Handle identifies a submitted task on the broker side.
type Handle string

// SubmitParams carries everything the broker needs to run a task.
// JobID and ExecutionDate together form the idempotency key: a
// resubmission of the same pair returns the original handle instead of
// enqueueing a second run.
type SubmitParams struct {
	JobID         int64
	JobName       string
	ExecutionDate time.Time
	Command       string
	Database      string
}

// TaskStatus is the broker-side view of a task.
type TaskStatus struct {
	State  domain.TaskState
	Result string
}

// Broker submits commands for execution and reports their progress.
type Broker interface {
	// SubmitCommand enqueues a shell command.
	SubmitCommand(ctx context.Context, params SubmitParams) (Handle, error)
	// SubmitSQL enqueues a SQL statement against the named database.
	SubmitSQL(ctx context.Context, params SubmitParams) (Handle, error)
	// Poll reports the current status of a submitted task.
	Poll(ctx context.Context, handle Handle) (TaskStatus, error)
}

// Submit routes params to the submit path matching the operator.
func Submit(ctx context.Context, b Broker, op domain.Operator, params SubmitParams) (Handle, error) {
	switch op {
	case domain.OperatorBash:
		return b.SubmitCommand(ctx, params)
	case domain.OperatorSQL:
		return b.SubmitSQL(ctx, params)
	default:
		return "", ErrUnsupportedOperator
	}
}
