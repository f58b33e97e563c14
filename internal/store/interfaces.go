package store

import (
	"context"
	"time"

	"github.com/jonesrussell/godash/internal/domain"
)

// JobStore defines the job persistence operations consumers depend on.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job, tags, subscribers []string) error
	Edit(ctx context.Context, job *domain.Job, tags, subscribers []string) error
	GetByName(ctx context.Context, name string) (*domain.Job, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Job, error)
	ListByTag(ctx context.Context, tag string) ([]*domain.Job, error)
	ListForTick(ctx context.Context) ([]*domain.Job, error)
	UpdateScheduled(ctx context.Context, job *domain.Job, task *domain.TaskInstance) error
	SetActive(ctx context.Context, name string, active bool) error
	Block(ctx context.Context, name string, till time.Time, by, msg string) error
	DeleteCascade(ctx context.Context, name string) error
}

// TaskStore defines the task instance persistence operations.
type TaskStore interface {
	Create(ctx context.Context, task *domain.TaskInstance) error
	GetByID(ctx context.Context, id int64) (*domain.TaskInstance, error)
	ListOpen(ctx context.Context) ([]*domain.TaskInstance, error)
	ListForJob(ctx context.Context, jobName string, limit int) ([]*domain.TaskInstance, error)
	DeleteForJob(ctx context.Context, jobName string) (int64, error)
	SetState(ctx context.Context, id int64, state domain.TaskState) error
	SetHandle(ctx context.Context, id int64, handle string) error
	Complete(ctx context.Context, task *domain.TaskInstance, jobStatus domain.JobStatus) error
}

// AlertStore defines tag and alert subscription operations.
type AlertStore interface {
	Subscribe(ctx context.Context, kind domain.SubscriptionKind, name, email string) error
	Unsubscribe(ctx context.Context, kind domain.SubscriptionKind, name, email string) error
	Recipients(ctx context.Context, jobName string) ([]string, error)
	TagsForJob(ctx context.Context, jobName string) ([]string, error)
	ListTags(ctx context.Context) ([]string, error)
	Subscribers(ctx context.Context, jobName string) ([]string, error)
}

// UserStore defines user persistence operations.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Interface guards.
var (
	_ JobStore   = (*JobRepository)(nil)
	_ TaskStore  = (*TaskRepository)(nil)
	_ AlertStore = (*AlertRepository)(nil)
	_ UserStore  = (*UserRepository)(nil)
)
