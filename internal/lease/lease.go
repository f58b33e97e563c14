// Package lease provides the Redis-backed scheduler lease that keeps at
// most one scheduler loop running at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the lease key a scheduler instance contends for.
	DefaultKey = "scheduler_manager"

	// DefaultTTL is the lease time-to-live. A crashed holder frees the
	// lease after at most this long.
	DefaultTTL = 20 * time.Second
)

var (
	// ErrNilClient is returned when the lease store is built without a
	// Redis client.
	ErrNilClient = errors.New("redis client is nil")

	// ErrNotHeld is returned when renewing or releasing a lease this
	// instance does not hold.
	ErrNotHeld = errors.New("lease not held")
)

// renewScript extends the TTL only while this instance still holds the
// lease.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// releaseScript deletes the key only while this instance still holds
// the lease.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Store is a single-holder lease on a Redis key. Each Store instance
// carries its own holder token, so two instances never mistake each
// other's lease for their own.
type Store struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	// value is the stored lease value of the current acquisition.
	value string
}

// Config holds lease configuration.
type Config struct {
	Key string        // lease key (default: scheduler_manager)
	TTL time.Duration // lease TTL (default: 20s)
}

// NewStore creates a new lease store.
func NewStore(client *redis.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &Store{
		client: client,
		key:    cfg.Key,
		token:  uuid.New().String(),
		ttl:    cfg.TTL,
	}, nil
}

// Acquire attempts to take the lease without blocking. Returns true if
// this instance now holds it.
func (s *Store) Acquire(ctx context.Context) (bool, error) {
	value := fmt.Sprintf("%s|%s", s.token, time.Now().UTC().Format(time.RFC3339))
	ok, err := s.client.SetNX(ctx, s.key, value, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if ok {
		s.value = value
	}
	return ok, nil
}

// Renew extends the lease TTL. Returns ErrNotHeld if the lease expired
// or was taken over since the last renewal.
func (s *Store) Renew(ctx context.Context) error {
	result, err := renewScript.Run(ctx, s.client, []string{s.key}, s.value, s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release frees the lease if this instance holds it.
func (s *Store) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, s.client, []string{s.key}, s.value).Int()
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// Holder returns the current lease value, or empty when the lease is
// free.
func (s *Store) Holder(ctx context.Context) (string, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read lease holder: %w", err)
	}
	return value, nil
}

// TTL returns the configured lease TTL.
func (s *Store) TTL() time.Duration { return s.ttl }
