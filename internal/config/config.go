// Package config materializes viper configuration into typed structs.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/godash/internal/logger"
	"github.com/jonesrussell/godash/internal/mailer"
	"github.com/jonesrussell/godash/internal/store"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SchedulerConfig holds scheduler loop settings.
type SchedulerConfig struct {
	PollInterval time.Duration
	LeaseKey     string
	LeaseTTL     time.Duration
	TaskQueue    string
}

// Config is the full application configuration.
type Config struct {
	App       AppConfig
	Logger    logger.Config
	Database  store.Config
	Redis     RedisConfig
	SMTP      mailer.Config
	Scheduler SchedulerConfig
}

// SetDefaults registers every configuration default with viper.
func SetDefaults() {
	viper.SetDefault("app.environment", "development")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "console")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "godash")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "godash")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("smtp.host", "localhost")
	viper.SetDefault("smtp.port", 25)
	viper.SetDefault("smtp.from", "dashboard@localhost")
	viper.SetDefault("smtp.username", "")
	viper.SetDefault("smtp.password", "")

	viper.SetDefault("scheduler.poll_interval", "30s")
	viper.SetDefault("scheduler.lease_key", "scheduler_manager")
	viper.SetDefault("scheduler.lease_ttl", "20s")
	viper.SetDefault("scheduler.task_queue", "godash:tasks")
}

// Load reads the configuration out of viper.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Environment: viper.GetString("app.environment"),
		},
		Logger: logger.Config{
			Level:       viper.GetString("logger.level"),
			Development: viper.GetString("app.environment") == "development",
			Encoding:    viper.GetString("logger.encoding"),
		},
		Database: store.Config{
			Host:     viper.GetString("database.host"),
			Port:     viper.GetString("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.dbname"),
			SSLMode:  viper.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		SMTP: mailer.Config{
			Host:     viper.GetString("smtp.host"),
			Port:     viper.GetInt("smtp.port"),
			From:     viper.GetString("smtp.from"),
			Username: viper.GetString("smtp.username"),
			Password: viper.GetString("smtp.password"),
		},
		Scheduler: SchedulerConfig{
			PollInterval: viper.GetDuration("scheduler.poll_interval"),
			LeaseKey:     viper.GetString("scheduler.lease_key"),
			LeaseTTL:     viper.GetDuration("scheduler.lease_ttl"),
			TaskQueue:    viper.GetString("scheduler.task_queue"),
		},
	}

	if cfg.Scheduler.PollInterval <= 0 {
		return nil, fmt.Errorf("scheduler.poll_interval must be positive")
	}
	if cfg.Scheduler.LeaseTTL <= 0 {
		return nil, fmt.Errorf("scheduler.lease_ttl must be positive")
	}

	return cfg, nil
}
