package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godash/internal/domain"
)

// fakeRedis implements redisAPI in memory.
type fakeRedis struct {
	strings map[string]string
	hashes  map[string]map[string]string
	pushed  []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
	}
}

func (f *fakeRedis) LPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.pushed = append(f.pushed, string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.pushed)), nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.strings[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.strings[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	return redis.NewMapStringStringResult(f.hashes[key], nil)
}

var execDate = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func TestSubmitCommandEnqueuesPayload(t *testing.T) {
	fake := newFakeRedis()
	b := newRedisBroker(fake, RedisConfig{})

	handle, err := b.SubmitCommand(context.Background(), SubmitParams{
		JobID:         7,
		JobName:       "nightly-report",
		ExecutionDate: execDate,
		Command:       "echo 1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	require.Len(t, fake.pushed, 1)
	var got payload
	require.NoError(t, json.Unmarshal([]byte(fake.pushed[0]), &got))
	assert.Equal(t, string(handle), got.Handle)
	assert.Equal(t, "bash", got.Kind)
	assert.Equal(t, int64(7), got.JobID)
	assert.Equal(t, "nightly-report", got.JobName)
	assert.Equal(t, "2025-06-02T09:30:00Z", got.ExecutionDate)
	assert.Equal(t, "echo 1", got.Command)
	assert.Empty(t, got.Database)
}

func TestSubmitSQLCarriesDatabase(t *testing.T) {
	fake := newFakeRedis()
	b := newRedisBroker(fake, RedisConfig{})

	_, err := b.SubmitSQL(context.Background(), SubmitParams{
		JobID:         3,
		ExecutionDate: execDate,
		Command:       "SELECT refresh()",
		Database:      "warehouse",
	})
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal([]byte(fake.pushed[0]), &got))
	assert.Equal(t, "sql", got.Kind)
	assert.Equal(t, "warehouse", got.Database)
}

func TestSubmitIsIdempotentPerExecution(t *testing.T) {
	fake := newFakeRedis()
	b := newRedisBroker(fake, RedisConfig{})
	ctx := context.Background()
	params := SubmitParams{JobID: 7, ExecutionDate: execDate, Command: "echo 1"}

	first, err := b.SubmitCommand(ctx, params)
	require.NoError(t, err)
	second, err := b.SubmitCommand(ctx, params)
	require.NoError(t, err)

	// Same (job, execution date) returns the original handle and does
	// not enqueue again.
	assert.Equal(t, first, second)
	assert.Len(t, fake.pushed, 1)

	// A different execution date is a fresh submission.
	params.ExecutionDate = execDate.Add(time.Hour)
	third, err := b.SubmitCommand(ctx, params)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Len(t, fake.pushed, 2)
}

func TestPollStates(t *testing.T) {
	fake := newFakeRedis()
	b := newRedisBroker(fake, RedisConfig{})
	ctx := context.Background()

	// No hash yet: the task is still pending.
	status, err := b.Poll(ctx, "unknown-handle")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, status.State)
	assert.Empty(t, status.Result)

	fake.hashes[statusKeyPrefix+"h1"] = map[string]string{"state": "STARTED"}
	status, err = b.Poll(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStarted, status.State)

	fake.hashes[statusKeyPrefix+"h1"] = map[string]string{
		"state":  "SUCCESS",
		"result": "1 - 42 rows loaded",
	}
	status, err = b.Poll(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSuccess, status.State)
	assert.Equal(t, "1 - 42 rows loaded", status.Result)
}

func TestSubmitRoutesByOperator(t *testing.T) {
	fake := newFakeRedis()
	b := newRedisBroker(fake, RedisConfig{})
	ctx := context.Background()

	_, err := Submit(ctx, b, domain.OperatorBash, SubmitParams{JobID: 1, ExecutionDate: execDate})
	require.NoError(t, err)

	_, err = Submit(ctx, b, domain.OperatorPython, SubmitParams{JobID: 2, ExecutionDate: execDate})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}
