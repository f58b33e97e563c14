// Package common wires the shared dependencies the subcommands build
// on.
package common

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/godash/internal/broker"
	"github.com/jonesrussell/godash/internal/config"
	"github.com/jonesrussell/godash/internal/handler"
	"github.com/jonesrussell/godash/internal/logger"
	"github.com/jonesrussell/godash/internal/store"
)

// pingTimeout bounds the Redis connectivity check.
const pingTimeout = 5 * time.Second

// Deps bundles the process-wide dependencies.
type Deps struct {
	Cfg    *config.Config
	Logger logger.Interface
	DB     *sqlx.DB
	Redis  *redis.Client

	Jobs   *store.JobRepository
	Tasks  *store.TaskRepository
	Alerts *store.AlertRepository
	Users  *store.UserRepository
}

// Build loads config and connects to Postgres and Redis.
func Build() (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := store.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", pingErr)
	}

	return &Deps{
		Cfg:    cfg,
		Logger: log,
		DB:     db,
		Redis:  client,
		Jobs:   store.NewJobRepository(db),
		Tasks:  store.NewTaskRepository(db),
		Alerts: store.NewAlertRepository(db),
		Users:  store.NewUserRepository(db),
	}, nil
}

// Close releases the connections.
func (d *Deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// Broker builds the Redis task broker.
func (d *Deps) Broker() (*broker.RedisBroker, error) {
	return broker.NewRedisBroker(d.Redis, broker.RedisConfig{
		Queue: d.Cfg.Scheduler.TaskQueue,
	})
}

// Handler builds the request handler over the shared stores.
func (d *Deps) Handler() (*handler.Handler, error) {
	b, err := d.Broker()
	if err != nil {
		return nil, err
	}
	return handler.New(d.Jobs, d.Tasks, d.Alerts, d.Users, b, nil, d.Logger), nil
}
