package handler

import (
	"context"
	"fmt"

	"github.com/jonesrussell/godash/internal/domain"
)

// validKind checks the subscription kind.
func validKind(kind domain.SubscriptionKind) error {
	if kind != domain.SubscribeJob && kind != domain.SubscribeTag {
		return fmt.Errorf("%w: unknown subscription kind %q", ErrInvalidJob, kind)
	}
	return nil
}

// Subscribe adds an alert subscription for a job or tag. Subscribing
// twice is a no-op.
func (h *Handler) Subscribe(ctx context.Context, kind domain.SubscriptionKind, name, email string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if err := validEmail(email); err != nil {
		return err
	}

	if err := h.alerts.Subscribe(ctx, kind, name, email); err != nil {
		return err
	}
	h.logger.Info("subscribed", "kind", string(kind), "target", name, "email", email)
	return nil
}

// Unsubscribe removes an alert subscription.
func (h *Handler) Unsubscribe(ctx context.Context, kind domain.SubscriptionKind, name, email string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if err := validEmail(email); err != nil {
		return err
	}

	if err := h.alerts.Unsubscribe(ctx, kind, name, email); err != nil {
		return err
	}
	h.logger.Info("unsubscribed", "kind", string(kind), "target", name, "email", email)
	return nil
}
