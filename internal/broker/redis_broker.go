package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/godash/internal/domain"
)

const (
	// DefaultQueue is the list the workers consume from.
	DefaultQueue = "godash:tasks"

	// statusKeyPrefix prefixes the per-handle status hash a worker
	// maintains.
	statusKeyPrefix = "godash:task:"

	// indexKeyPrefix prefixes the idempotency index mapping
	// (job id, execution date) to an existing handle.
	indexKeyPrefix = "godash:task_index:"

	// DefaultIndexTTL bounds how long an idempotency entry survives.
	DefaultIndexTTL = 24 * time.Hour
)

// ErrNilRedisClient is returned when the broker is built without a
// Redis client.
var ErrNilRedisClient = errors.New("redis client is nil")

// redisAPI is the slice of the go-redis client the broker uses. Narrow
// on purpose so tests can substitute a fake.
type redisAPI interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// payload is the message pushed onto the worker queue.
type payload struct {
	Handle        string `json:"handle"`
	Kind          string `json:"kind"`
	JobID         int64  `json:"job_id"`
	JobName       string `json:"job_name"`
	ExecutionDate string `json:"execution_date"`
	Command       string `json:"command"`
	Database      string `json:"database,omitempty"`
}

// RedisBroker submits tasks by pushing JSON payloads onto a Redis list
// and polls the per-handle status hash the workers write back.
type RedisBroker struct {
	client   redisAPI
	queue    string
	indexTTL time.Duration
}

// RedisConfig holds broker configuration.
type RedisConfig struct {
	Queue    string        // worker queue list (default: godash:tasks)
	IndexTTL time.Duration // idempotency index TTL (default: 24h)
}

// NewRedisBroker creates a Redis-backed broker.
func NewRedisBroker(client *redis.Client, cfg RedisConfig) (*RedisBroker, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}
	return newRedisBroker(client, cfg), nil
}

func newRedisBroker(client redisAPI, cfg RedisConfig) *RedisBroker {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.IndexTTL <= 0 {
		cfg.IndexTTL = DefaultIndexTTL
	}
	return &RedisBroker{client: client, queue: cfg.Queue, indexTTL: cfg.IndexTTL}
}

// SubmitCommand enqueues a shell command.
func (b *RedisBroker) SubmitCommand(ctx context.Context, params SubmitParams) (Handle, error) {
	return b.submit(ctx, "bash", params)
}

// SubmitSQL enqueues a SQL statement.
func (b *RedisBroker) SubmitSQL(ctx context.Context, params SubmitParams) (Handle, error) {
	return b.submit(ctx, "sql", params)
}

func (b *RedisBroker) submit(ctx context.Context, kind string, params SubmitParams) (Handle, error) {
	handle := uuid.NewString()

	indexKey := b.indexKey(params.JobID, params.ExecutionDate)
	created, err := b.client.SetNX(ctx, indexKey, handle, b.indexTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to reserve task index: %w", err)
	}
	if !created {
		// Already submitted for this (job, execution date); hand the
		// caller the original handle.
		existing, getErr := b.client.Get(ctx, indexKey).Result()
		if getErr != nil {
			return "", fmt.Errorf("failed to read task index: %w", getErr)
		}
		return Handle(existing), nil
	}

	body, err := json.Marshal(payload{
		Handle:        handle,
		Kind:          kind,
		JobID:         params.JobID,
		JobName:       params.JobName,
		ExecutionDate: params.ExecutionDate.Format(time.RFC3339),
		Command:       params.Command,
		Database:      params.Database,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode task payload: %w", err)
	}

	if err := b.client.LPush(ctx, b.queue, body).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return Handle(handle), nil
}

// Poll reads the status hash for a handle. A hash the worker has not
// written yet reads as PENDING.
func (b *RedisBroker) Poll(ctx context.Context, handle Handle) (TaskStatus, error) {
	fields, err := b.client.HGetAll(ctx, statusKeyPrefix+string(handle)).Result()
	if err != nil {
		return TaskStatus{}, fmt.Errorf("failed to poll task: %w", err)
	}

	state, ok := fields["state"]
	if !ok || state == "" {
		return TaskStatus{State: domain.TaskPending}, nil
	}
	return TaskStatus{
		State:  domain.TaskState(state),
		Result: fields["result"],
	}, nil
}

func (b *RedisBroker) indexKey(jobID int64, executionDate time.Time) string {
	return fmt.Sprintf("%s%d:%s", indexKeyPrefix, jobID, executionDate.Format(time.RFC3339))
}
