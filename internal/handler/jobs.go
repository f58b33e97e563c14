package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/godash/internal/broker"
	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/schedule"
)

// defaultInfoLimit caps the task history returned by InfoJob.
const defaultInfoLimit = 20

// defaultResetStatusAt is the time-of-day used when none is given.
const defaultResetStatusAt = "0:00"

// JobParams carries the caller-supplied fields for AddJob and EditJob.
// Timestamps are naive wall-clock strings in the job's timezone.
type JobParams struct {
	Name     string
	Timezone string
	Operator domain.Operator
	Database string
	Command  string

	StartDT string
	EndDT   string

	// ScheduleInterval is a preset alias or a raw 5-field crontab.
	// Weekdays (ISO 1-7) select the days for @weekly schedules.
	// A non-empty CrontabOverride wins over both.
	ScheduleInterval string
	Weekdays         []int
	CrontabOverride  string

	// ResetStatusAt is an "H:MM" local time-of-day; empty means 0:00.
	ResetStatusAt string

	Tags        []string
	Subscribers []string
}

// AddJob validates params and creates the job with its tags and alert
// subscribers. A job created without tags gets the default tag.
func (h *Handler) AddJob(ctx context.Context, params JobParams) (*domain.Job, error) {
	job, err := h.buildJob(params)
	if err != nil {
		return nil, err
	}

	tags := params.Tags
	if len(tags) == 0 {
		tags = []string{domain.DefaultTag}
	}

	if err := h.jobs.Create(ctx, job, tags, params.Subscribers); err != nil {
		return nil, err
	}

	h.logger.Info("job created", "job", job.Name,
		"schedule", job.ScheduleInterval,
		"next_run", job.NextRunTS.Format(time.DateTime))
	return job, nil
}

// EditJob replaces the job's mutable fields and reconciles tags and
// subscribers to the given sets. The store applies the whole edit in
// one transaction so the reconciliation cannot race a concurrent
// subscribe.
func (h *Handler) EditJob(ctx context.Context, params JobParams) (*domain.Job, error) {
	existing, err := h.jobs.GetByName(ctx, params.Name)
	if err != nil {
		return nil, err
	}

	job, err := h.buildJob(params)
	if err != nil {
		return nil, err
	}
	job.ID = existing.ID

	if err := h.jobs.Edit(ctx, job, params.Tags, params.Subscribers); err != nil {
		return nil, err
	}

	h.logger.Info("job updated", "job", job.Name,
		"schedule", job.ScheduleInterval,
		"next_run", job.NextRunTS.Format(time.DateTime))
	return job, nil
}

// buildJob validates params and assembles an unsaved job with its
// schedule expanded and the first fire time computed.
func (h *Handler) buildJob(params JobParams) (*domain.Job, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	if params.Command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidJob)
	}
	if !params.Operator.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, params.Operator)
	}
	if params.Operator == domain.OperatorSQL && params.Database == "" {
		return nil, fmt.Errorf("%w: sql jobs require a database", ErrInvalidJob)
	}
	if _, err := time.LoadLocation(params.Timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidJob, params.Timezone)
	}
	if err := validEmails(params.Subscribers); err != nil {
		return nil, err
	}

	start, err := parseTimestamp(params.StartDT)
	if err != nil {
		return nil, err
	}

	var end *time.Time
	if params.EndDT != "" {
		e, parseErr := parseTimestamp(params.EndDT)
		if parseErr != nil {
			return nil, parseErr
		}
		if !e.After(start) {
			return nil, fmt.Errorf("%w: end_dt must be after start_dt", ErrInvalidJob)
		}
		end = &e
	}

	resetAt := params.ResetStatusAt
	if resetAt == "" {
		resetAt = defaultResetStatusAt
	}
	resetMinutes, err := parseTimeOfDay(resetAt)
	if err != nil {
		return nil, err
	}

	expr, err := h.resolveSchedule(params, start)
	if err != nil {
		return nil, err
	}

	// Stepping back one second makes a start that matches the
	// expression its own first fire.
	next, err := schedule.Next(expr, start.Add(-time.Second))
	if err != nil {
		return nil, err
	}

	return &domain.Job{
		Name:               params.Name,
		Timezone:           params.Timezone,
		Operator:           params.Operator,
		Database:           params.Database,
		Command:            params.Command,
		StartDT:            start,
		EndDT:              end,
		ScheduleInterval:   expr,
		NextRunTS:          next,
		ResetStatusMinutes: resetMinutes,
		Active:             true,
		Status:             domain.StatusUnknown,
	}, nil
}

// resolveSchedule picks the effective cron expression: an explicit
// crontab override wins, otherwise the preset or raw interval is
// expanded against the start timestamp.
func (h *Handler) resolveSchedule(params JobParams, start time.Time) (string, error) {
	if params.CrontabOverride != "" {
		if err := schedule.Valid(params.CrontabOverride); err != nil {
			return "", err
		}
		return params.CrontabOverride, nil
	}
	return schedule.Expand(params.ScheduleInterval, start, params.Weekdays)
}

// RemoveJob cascade-deletes the job, its tasks, tags and alert
// subscriptions.
func (h *Handler) RemoveJob(ctx context.Context, name string) error {
	if err := h.jobs.DeleteCascade(ctx, name); err != nil {
		return err
	}
	h.logger.Info("job removed", "job", name)
	return nil
}

// ChangeJobStatus activates or deactivates the job. When the job is
// already in the requested state, the returned reason explains the
// no-op and nothing is written. A job under a live block cannot be
// activated until the block expires or is lifted.
func (h *Handler) ChangeJobStatus(ctx context.Context, name string, deactivate bool) (string, error) {
	job, err := h.jobs.GetByName(ctx, name)
	if err != nil {
		return "", err
	}

	if deactivate && !job.Active {
		return fmt.Sprintf("job %q is already inactive", name), nil
	}
	if !deactivate && job.Active {
		return fmt.Sprintf("job %q is already active", name), nil
	}
	if !deactivate && job.Blocked(domain.Naive(h.clock.Now().UTC())) {
		return "", fmt.Errorf("%w: %q until %s",
			ErrJobBlocked, name, job.BlockTill.Format(time.DateTime))
	}

	if err := h.jobs.SetActive(ctx, name, !deactivate); err != nil {
		return "", err
	}
	h.logger.Info("job status changed", "job", name, "active", !deactivate)
	return "", nil
}

// BlockJobTill deactivates the job until the given naive UTC timestamp.
// All validation problems are reported together.
func (h *Handler) BlockJobTill(ctx context.Context, name, till, msg, email string) error {
	var errs []error

	ts, err := parseTimestamp(till)
	if err != nil {
		errs = append(errs, err)
	}
	if err := validEmail(email); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := h.jobs.Block(ctx, name, ts, email, msg); err != nil {
		return err
	}
	h.logger.Info("job blocked", "job", name, "till", till, "by", email)
	return nil
}

// ForceScheduleForJob dispatches an immediate run with execution date
// now, leaving the regular schedule untouched.
func (h *Handler) ForceScheduleForJob(ctx context.Context, name string) (*domain.TaskInstance, error) {
	job, err := h.jobs.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	nowUTC := domain.Naive(h.clock.Now().UTC()).Truncate(time.Second)
	nowLocal, err := domain.UTCToWall(nowUTC, job.Timezone)
	if err != nil {
		return nil, err
	}

	handle, err := broker.Submit(ctx, h.broker, job.Operator, broker.SubmitParams{
		JobID:         job.ID,
		JobName:       job.Name,
		ExecutionDate: nowLocal,
		Command:       job.Command,
		Database:      job.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit forced run: %w", err)
	}

	h1 := string(handle)
	task := &domain.TaskInstance{
		JobID:         job.ID,
		JobName:       job.Name,
		ExecutionDate: nowLocal,
		Operator:      job.Operator,
		Command:       job.Command,
		State:         domain.TaskPending,
		TaskHandle:    &h1,
	}
	if err := h.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	h.logger.Info("forced run dispatched", "job", name,
		"execution_date", nowLocal.Format(time.DateTime))
	return task, nil
}

// ClearTasksHistory deletes every task instance of the job and reports
// how many were removed.
func (h *Handler) ClearTasksHistory(ctx context.Context, name string) (int64, error) {
	n, err := h.tasks.DeleteForJob(ctx, name)
	if err != nil {
		return 0, err
	}
	h.logger.Info("task history cleared", "job", name, "deleted", n)
	return n, nil
}

// JobInfo is the display bundle returned by InfoJob.
type JobInfo struct {
	Job         *domain.Job
	Tags        []string
	Tasks       []*domain.TaskInstance
	Subscribers []string
}

// InfoJob returns the job with its tags, most recent tasks and direct
// subscribers. A non-positive limit defaults to 20.
func (h *Handler) InfoJob(ctx context.Context, name string, limit int) (*JobInfo, error) {
	if limit <= 0 {
		limit = defaultInfoLimit
	}

	job, err := h.jobs.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	tags, err := h.alerts.TagsForJob(ctx, name)
	if err != nil {
		return nil, err
	}
	tasks, err := h.tasks.ListForJob(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	subs, err := h.alerts.Subscribers(ctx, name)
	if err != nil {
		return nil, err
	}

	return &JobInfo{Job: job, Tags: tags, Tasks: tasks, Subscribers: subs}, nil
}

// ListJobs returns all jobs, or only the active ones.
func (h *Handler) ListJobs(ctx context.Context, activeOnly bool) ([]*domain.Job, error) {
	return h.jobs.List(ctx, activeOnly)
}

// JobsByTag returns the jobs carrying a tag.
func (h *Handler) JobsByTag(ctx context.Context, tag string) ([]*domain.Job, error) {
	return h.jobs.ListByTag(ctx, tag)
}

// ListTags returns every tag name in use.
func (h *Handler) ListTags(ctx context.Context) ([]string, error) {
	return h.alerts.ListTags(ctx)
}

// GetTask returns one task instance by id.
func (h *Handler) GetTask(ctx context.Context, id int64) (*domain.TaskInstance, error) {
	return h.tasks.GetByID(ctx, id)
}
