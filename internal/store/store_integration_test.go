package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/store"
)

// setupDB connects to the database named by TEST_DATABASE_URL, applies
// the schema and truncates all tables. Tests are skipped when the env
// var is unset.
func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database integration test")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.Migrate(context.Background(), db))
	_, err = db.Exec(`TRUNCATE jobs, task_instances, tags, job_alerts, tag_alerts, users RESTART IDENTITY`)
	require.NoError(t, err)

	return db
}

func testJob(name string) *domain.Job {
	return &domain.Job{
		Name:             name,
		Timezone:         "Europe/Berlin",
		Operator:         domain.OperatorBash,
		Command:          "echo 1",
		StartDT:          time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		ScheduleInterval: "30 9 * * *",
		NextRunTS:        time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		Active:           true,
		Status:           domain.StatusUnknown,
	}
}

func TestJobRepositoryCreateAndGet(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	alerts := store.NewAlertRepository(db)

	job := testJob("nightly-report")
	require.NoError(t, jobs.Create(ctx, job, []string{"reports", "etl"}, []string{"ops@example.com"}))
	assert.NotZero(t, job.ID)

	got, err := jobs.GetByName(ctx, "nightly-report")
	require.NoError(t, err)
	assert.Equal(t, job.Name, got.Name)
	assert.Equal(t, domain.StatusUnknown, got.Status)
	assert.True(t, got.Active)

	tags, err := alerts.TagsForJob(ctx, "nightly-report")
	require.NoError(t, err)
	assert.Equal(t, []string{"etl", "reports"}, tags)

	subs, err := alerts.Subscribers(ctx, "nightly-report")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, subs)

	// Duplicate name is rejected.
	err = jobs.Create(ctx, testJob("nightly-report"), nil, nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = jobs.GetByName(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobRepositoryEditReconcilesTagsAndSubscribers(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	alerts := store.NewAlertRepository(db)

	job := testJob("editable")
	require.NoError(t, jobs.Create(ctx, job, []string{"a", "b"}, []string{"a@example.com"}))

	job.Command = "echo 2"
	require.NoError(t, jobs.Edit(ctx, job, []string{"b", "c"}, []string{"a@example.com", "b@example.com"}))

	got, err := jobs.GetByName(ctx, "editable")
	require.NoError(t, err)
	assert.Equal(t, "echo 2", got.Command)

	tags, err := alerts.TagsForJob(ctx, "editable")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, tags)

	subs, err := alerts.Subscribers(ctx, "editable")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, subs)

	missing := testJob("ghost")
	assert.ErrorIs(t, jobs.Edit(ctx, missing, nil, nil), store.ErrNotFound)
}

func TestJobRepositoryListForTick(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)

	active := testJob("active-job")
	require.NoError(t, jobs.Create(ctx, active, nil, nil))

	inactive := testJob("inactive-job")
	inactive.Active = false
	require.NoError(t, jobs.Create(ctx, inactive, nil, nil))

	blocked := testJob("blocked-job")
	require.NoError(t, jobs.Create(ctx, blocked, nil, nil))
	till := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, jobs.Block(ctx, "blocked-job", till, "tester", "maintenance"))

	ticked, err := jobs.ListForTick(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(ticked))
	for _, j := range ticked {
		names = append(names, j.Name)
	}
	// Inactive jobs stay out, blocked jobs stay in so they can unblock.
	assert.Equal(t, []string{"active-job", "blocked-job"}, names)

	// Ordered by id ascending.
	assert.Less(t, ticked[0].ID, ticked[1].ID)
}

func TestUpdateScheduledPersistsJobAndTask(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	tasks := store.NewTaskRepository(db)

	job := testJob("dispatching")
	require.NoError(t, jobs.Create(ctx, job, nil, nil))

	execDate := job.NextRunTS
	job.NextRunTS = execDate.Add(24 * time.Hour)
	lastExec := execDate
	job.LastExecutionTS = &lastExec
	handle := "handle-123"
	task := &domain.TaskInstance{
		JobID:         job.ID,
		JobName:       job.Name,
		ExecutionDate: execDate,
		Operator:      job.Operator,
		Command:       job.Command,
		State:         domain.TaskPending,
		TaskHandle:    &handle,
	}
	require.NoError(t, jobs.UpdateScheduled(ctx, job, task))
	assert.NotZero(t, task.ID)

	got, err := jobs.GetByName(ctx, "dispatching")
	require.NoError(t, err)
	assert.Equal(t, job.NextRunTS, got.NextRunTS.UTC())
	require.NotNil(t, got.LastExecutionTS)

	open, err := tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.TaskPending, open[0].State)
	require.NotNil(t, open[0].TaskHandle)
	assert.Equal(t, "handle-123", *open[0].TaskHandle)
}

func TestUpdateScheduledRejectsStaleSnapshot(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)

	job := testJob("racing")
	require.NoError(t, jobs.Create(ctx, job, nil, nil))

	snapshot := *job

	// Another writer rewrites the schedule between the snapshot read
	// and the write-back.
	edited := *job
	edited.ScheduleInterval = "0 12 * * *"
	edited.NextRunTS = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.Edit(ctx, &edited, nil, nil))

	snapshot.NextRunTS = snapshot.NextRunTS.Add(24 * time.Hour)
	err := jobs.UpdateScheduled(ctx, &snapshot, nil)
	assert.ErrorIs(t, err, store.ErrStale)

	// The edit survives untouched.
	got, err := jobs.GetByName(ctx, "racing")
	require.NoError(t, err)
	assert.Equal(t, "0 12 * * *", got.ScheduleInterval)
	assert.Equal(t, edited.NextRunTS, got.NextRunTS.UTC())
}

func TestCompletePromotesJobStatus(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	tasks := store.NewTaskRepository(db)

	job := testJob("completing")
	require.NoError(t, jobs.Create(ctx, job, nil, nil))

	task := &domain.TaskInstance{
		JobID:         job.ID,
		JobName:       job.Name,
		ExecutionDate: job.NextRunTS,
		Operator:      job.Operator,
		Command:       job.Command,
		State:         domain.TaskPending,
	}
	require.NoError(t, tasks.Create(ctx, task))

	task.State = domain.TaskFailure
	task.Result = "0 rows loaded"
	require.NoError(t, tasks.Complete(ctx, task, domain.StatusFail))

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailure, got.State)
	assert.Equal(t, "0 rows loaded", got.Result)
	assert.NotNil(t, got.FinishedAt)

	j, err := jobs.GetByName(ctx, "completing")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, j.Status)
	assert.Equal(t, "0 rows loaded", j.LastTaskResult)
	require.NotNil(t, j.LastExecutionTS)
	assert.Equal(t, task.ExecutionDate, j.LastExecutionTS.UTC())

	open, err := tasks.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRecipientsUnionDedup(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	alerts := store.NewAlertRepository(db)

	job := testJob("alerting")
	require.NoError(t, jobs.Create(ctx, job, []string{"etl"}, []string{"both@example.com", "direct@example.com"}))
	require.NoError(t, alerts.Subscribe(ctx, domain.SubscribeTag, "etl", "both@example.com"))
	require.NoError(t, alerts.Subscribe(ctx, domain.SubscribeTag, "etl", "tagonly@example.com"))

	got, err := alerts.Recipients(ctx, "alerting")
	require.NoError(t, err)
	assert.Equal(t, []string{"both@example.com", "direct@example.com", "tagonly@example.com"}, got)
}

func TestDeleteCascadeKeepsTagAlerts(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	tasks := store.NewTaskRepository(db)
	alerts := store.NewAlertRepository(db)

	job := testJob("doomed")
	require.NoError(t, jobs.Create(ctx, job, []string{"shared"}, []string{"sub@example.com"}))
	require.NoError(t, alerts.Subscribe(ctx, domain.SubscribeTag, "shared", "tag@example.com"))
	require.NoError(t, tasks.Create(ctx, &domain.TaskInstance{
		JobID: job.ID, JobName: job.Name, ExecutionDate: job.NextRunTS,
		Operator: job.Operator, Command: job.Command, State: domain.TaskPending,
	}))

	require.NoError(t, jobs.DeleteCascade(ctx, "doomed"))

	_, err := jobs.GetByName(ctx, "doomed")
	assert.ErrorIs(t, err, store.ErrNotFound)

	history, err := tasks.ListForJob(ctx, "doomed", 20)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Tag alert subscriptions survive job removal.
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM tag_alerts WHERE tag_name = 'shared'`))
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, jobs.DeleteCascade(ctx, "doomed"), store.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	users := store.NewUserRepository(db)

	u := &domain.User{Username: "ops", Email: "ops@example.com", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)

	dup := &domain.User{Username: "other", Email: "ops@example.com", PasswordHash: "y"}
	assert.ErrorIs(t, users.Create(ctx, dup), store.ErrDuplicate)

	got, err := users.GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ops", got.Username)

	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTaskHistoryLimitAndClear(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	jobs := store.NewJobRepository(db)
	tasks := store.NewTaskRepository(db)

	job := testJob("history")
	require.NoError(t, jobs.Create(ctx, job, nil, nil))

	for i := 0; i < 5; i++ {
		require.NoError(t, tasks.Create(ctx, &domain.TaskInstance{
			JobID:         job.ID,
			JobName:       job.Name,
			ExecutionDate: job.NextRunTS.Add(time.Duration(i) * time.Hour),
			Operator:      job.Operator,
			Command:       fmt.Sprintf("echo %d", i),
			State:         domain.TaskSuccess,
		}))
	}

	history, err := tasks.ListForJob(ctx, "history", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Newest first.
	assert.Equal(t, "echo 4", history[0].Command)

	n, err := tasks.DeleteForJob(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
