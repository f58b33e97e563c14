// Package handler exposes the in-process operations the CLI and HTTP
// collaborators call.
package handler

import (
	"errors"

	"github.com/jonesrussell/godash/internal/broker"
	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/logger"
	"github.com/jonesrussell/godash/internal/store"
)

// Validation and auth errors surfaced to callers.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrInvalidOperator    = errors.New("invalid operator")
	ErrInvalidJob         = errors.New("invalid job")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrJobBlocked         = errors.New("job is blocked")
)

// Handler implements the request operations over the store and broker.
type Handler struct {
	jobs   store.JobStore
	tasks  store.TaskStore
	alerts store.AlertStore
	users  store.UserStore
	broker broker.Broker
	clock  domain.Clock
	logger logger.Interface
}

// New creates a handler. A nil clock defaults to the system clock.
func New(
	jobs store.JobStore,
	tasks store.TaskStore,
	alerts store.AlertStore,
	users store.UserStore,
	b broker.Broker,
	clock domain.Clock,
	log logger.Interface,
) *Handler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Handler{
		jobs:   jobs,
		tasks:  tasks,
		alerts: alerts,
		users:  users,
		broker: b,
		clock:  clock,
		logger: log.WithComponent("handler"),
	}
}
