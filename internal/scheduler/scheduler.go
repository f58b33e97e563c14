// Package scheduler runs the single-leader loop that turns due jobs
// into dispatched tasks and reconciles open tasks with the broker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/godash/internal/broker"
	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/logger"
	"github.com/jonesrussell/godash/internal/schedule"
	"github.com/jonesrussell/godash/internal/store"
)

const (
	// DefaultPollInterval is the pause between ticks.
	DefaultPollInterval = 30 * time.Second

	// releaseTimeout bounds the lease release on shutdown.
	releaseTimeout = 5 * time.Second
)

// ErrAlreadyRunning is returned when another scheduler instance holds
// the lease.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Lease is the single-leader mutex the loop runs under.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

// Notifier fans out failure alerts.
type Notifier interface {
	NotifyFailure(ctx context.Context, job *domain.Job)
}

// Config holds scheduler tuning.
type Config struct {
	PollInterval time.Duration
}

// Scheduler owns the dispatch and reconcile passes.
type Scheduler struct {
	jobs      store.JobStore
	tasks     store.TaskStore
	broker    broker.Broker
	notifier  Notifier
	lease     Lease
	clock     domain.Clock
	succeeded domain.SuccessPredicate
	logger    logger.Interface

	pollInterval time.Duration
}

// New creates a scheduler. A nil clock defaults to the system clock and
// a nil predicate to the legacy "result starts with 1" convention.
func New(
	jobs store.JobStore,
	tasks store.TaskStore,
	b broker.Broker,
	notifier Notifier,
	l Lease,
	clock domain.Clock,
	succeeded domain.SuccessPredicate,
	log logger.Interface,
	cfg Config,
) *Scheduler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if succeeded == nil {
		succeeded = domain.DefaultSuccessPredicate
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Scheduler{
		jobs:         jobs,
		tasks:        tasks,
		broker:       b,
		notifier:     notifier,
		lease:        l,
		clock:        clock,
		succeeded:    succeeded,
		logger:       log.WithComponent("scheduler"),
		pollInterval: cfg.PollInterval,
	}
}

// Run acquires the lease and ticks until ctx is cancelled. It returns
// ErrAlreadyRunning when another instance holds the lease. The lease is
// released on every exit path.
func (s *Scheduler) Run(ctx context.Context) error {
	acquired, err := s.lease.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire scheduler lease: %w", err)
	}
	if !acquired {
		return ErrAlreadyRunning
	}
	s.logger.Info("scheduler lease acquired", "poll_interval", s.pollInterval.String())

	defer func() {
		// ctx is usually cancelled by the time we get here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if releaseErr := s.lease.Release(releaseCtx); releaseErr != nil {
			s.logger.Warn("failed to release scheduler lease", "error", releaseErr)
		}
	}()

	for {
		start := s.clock.Now()

		s.Tick(ctx)

		if renewErr := s.lease.Renew(ctx); renewErr != nil {
			s.logger.Warn("failed to renew scheduler lease", "error", renewErr)
		}

		sleep := s.pollInterval - s.clock.Now().Sub(start)
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return nil
		case <-time.After(sleep):
		}
	}
}

// Tick runs one dispatch pass followed by one reconcile pass. Errors on
// individual jobs or tasks are logged and never abort the tick.
func (s *Scheduler) Tick(ctx context.Context) {
	s.dispatchPass(ctx)
	s.reconcilePass(ctx)
}

// dispatchPass visits every tick-eligible job, in id order.
func (s *Scheduler) dispatchPass(ctx context.Context) {
	jobs, err := s.jobs.ListForTick(ctx)
	if err != nil {
		s.logger.Error("failed to list jobs for tick", "error", err)
		return
	}

	for _, job := range jobs {
		if err := s.visitJob(ctx, job); err != nil {
			s.logger.Error("dispatch failed", "job", job.Name, "error", err)
		}
	}
}

// visitJob applies unblock, end-of-window deactivation, daily status
// reset and the due check, dispatching a task when the job is due. Each
// job's outcome commits independently.
func (s *Scheduler) visitJob(ctx context.Context, job *domain.Job) error {
	nowUTC := domain.Naive(s.clock.Now().UTC())
	nowLocal, err := domain.UTCToWall(nowUTC, job.Timezone)
	if err != nil {
		return err
	}

	dirty := false

	if job.BlockTill != nil && !nowUTC.Before(*job.BlockTill) {
		job.ClearBlock()
		dirty = true
		s.logger.Info("job unblocked", "job", job.Name)
	}

	// A live block wins over everything, including the active flag.
	if job.Blocked(nowUTC) {
		return nil
	}

	if !job.Active {
		if dirty {
			return s.commit(ctx, job, nil)
		}
		return nil
	}

	if job.EndDT != nil && !nowLocal.Before(*job.EndDT) {
		job.Active = false
		s.logger.Info("job reached end of schedule window", "job", job.Name)
		return s.commit(ctx, job, nil)
	}

	resetPoint := job.ResetPointOn(nowLocal)
	if job.Status != domain.StatusUnknown && !nowLocal.Before(resetPoint) &&
		(job.LastExecutionTS == nil || job.LastExecutionTS.Before(resetPoint)) {
		job.Status = domain.StatusUnknown
		dirty = true
	}

	dueUTC, err := domain.WallToUTC(job.NextRunTS, job.Timezone)
	if err != nil {
		return err
	}
	if dueUTC.After(nowUTC) {
		if dirty {
			return s.commit(ctx, job, nil)
		}
		return nil
	}

	task := &domain.TaskInstance{
		JobID:         job.ID,
		JobName:       job.Name,
		ExecutionDate: job.NextRunTS,
		Operator:      job.Operator,
		Command:       job.Command,
		State:         domain.TaskPending,
	}

	handle, err := broker.Submit(ctx, s.broker, job.Operator, broker.SubmitParams{
		JobID:         job.ID,
		JobName:       job.Name,
		ExecutionDate: task.ExecutionDate,
		Command:       job.Command,
		Database:      job.Database,
	})
	switch {
	case errors.Is(err, broker.ErrUnsupportedOperator):
		// The schedule still advances so the job does not hot-loop.
		task.State = domain.TaskFailure
		task.Result = fmt.Sprintf("operator %q is not supported", job.Operator)
		s.logger.Error("job has unsupported operator", "job", job.Name, "operator", job.Operator)
	case err != nil:
		// Leave the job untouched; the next tick retries and the
		// broker's idempotency key absorbs any half-submitted run.
		return fmt.Errorf("failed to submit task: %w", err)
	default:
		h := string(handle)
		task.TaskHandle = &h
	}

	next, err := schedule.Next(job.ScheduleInterval, job.NextRunTS)
	if err != nil {
		return fmt.Errorf("failed to compute next run: %w", err)
	}
	job.NextRunTS = next

	if err := s.commit(ctx, job, task); err != nil {
		return err
	}

	s.logger.Info("task dispatched",
		"job", job.Name,
		"execution_date", task.ExecutionDate.Format(time.DateTime),
		"next_run", job.NextRunTS.Format(time.DateTime))
	return nil
}

// commit persists a visit outcome. A job rewritten since the tick's
// snapshot keeps its newer definition and the visit's update is
// dropped.
func (s *Scheduler) commit(ctx context.Context, job *domain.Job, task *domain.TaskInstance) error {
	err := s.jobs.UpdateScheduled(ctx, job, task)
	if errors.Is(err, store.ErrStale) {
		s.logger.Warn("job changed during tick, dropping update", "job", job.Name)
		return nil
	}
	return err
}

// reconcilePass polls every open task and promotes terminal outcomes.
func (s *Scheduler) reconcilePass(ctx context.Context) {
	tasks, err := s.tasks.ListOpen(ctx)
	if err != nil {
		s.logger.Error("failed to list open tasks", "error", err)
		return
	}

	for _, task := range tasks {
		if err := s.reconcileTask(ctx, task); err != nil {
			s.logger.Error("reconcile failed",
				"task", task.ID, "job", task.JobName, "error", err)
		}
	}
}

// reconcileTask advances one task from broker state, committing once
// per task.
func (s *Scheduler) reconcileTask(ctx context.Context, task *domain.TaskInstance) error {
	if task.TaskHandle == nil {
		// Never submitted; nothing to poll.
		return nil
	}

	status, err := s.broker.Poll(ctx, broker.Handle(*task.TaskHandle))
	if err != nil {
		return fmt.Errorf("failed to poll broker: %w", err)
	}
	if status.State == task.State {
		return nil
	}

	if !status.State.Terminal() {
		return s.tasks.SetState(ctx, task.ID, status.State)
	}

	task.State = status.State
	task.Result = domain.TruncateResult(status.Result)

	jobStatus := domain.StatusFail
	if s.succeeded(task.Result) {
		jobStatus = domain.StatusSuccess
	}

	if err := s.tasks.Complete(ctx, task, jobStatus); err != nil {
		return err
	}

	s.logger.Info("task completed",
		"task", task.ID, "job", task.JobName,
		"state", string(task.State), "job_status", jobStatus.String())

	if jobStatus == domain.StatusFail {
		job, getErr := s.jobs.GetByName(ctx, task.JobName)
		if getErr != nil {
			// The job may be gone; the task outcome is already durable.
			s.logger.Warn("failed to load job for alerting",
				"job", task.JobName, "error", getErr)
			return nil
		}
		s.notifier.NotifyFailure(ctx, job)
	}
	return nil
}
