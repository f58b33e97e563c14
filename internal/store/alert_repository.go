package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godash/internal/domain"
)

// AlertRepository handles database operations for tags and alert
// subscriptions.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Subscribe adds an alert subscription of the given kind. Subscribing
// twice is a no-op.
func (r *AlertRepository) Subscribe(ctx context.Context, kind domain.SubscriptionKind, name, email string) error {
	var query string
	switch kind {
	case domain.SubscribeJob:
		query = `INSERT INTO job_alerts (job_name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	case domain.SubscribeTag:
		query = `INSERT INTO tag_alerts (tag_name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	default:
		return fmt.Errorf("unknown subscription kind %q", kind)
	}

	if _, err := r.db.ExecContext(ctx, query, name, email); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes an alert subscription of the given kind.
func (r *AlertRepository) Unsubscribe(ctx context.Context, kind domain.SubscriptionKind, name, email string) error {
	var query string
	switch kind {
	case domain.SubscribeJob:
		query = `DELETE FROM job_alerts WHERE job_name = $1 AND email = $2`
	case domain.SubscribeTag:
		query = `DELETE FROM tag_alerts WHERE tag_name = $1 AND email = $2`
	default:
		return fmt.Errorf("unknown subscription kind %q", kind)
	}

	result, err := r.db.ExecContext(ctx, query, name, email)
	if rowsErr := execRequireRows(result, err, fmt.Errorf("subscription %s/%s: %w", name, email, ErrNotFound)); rowsErr != nil {
		if err != nil {
			return fmt.Errorf("failed to unsubscribe: %w", err)
		}
		return rowsErr
	}
	return nil
}

// Recipients returns the distinct, sorted set of addresses subscribed
// to failures of the named job: direct job subscribers plus the
// subscribers of every tag attached to the job.
func (r *AlertRepository) Recipients(ctx context.Context, jobName string) ([]string, error) {
	query := `
		SELECT email FROM job_alerts WHERE job_name = $1
		UNION
		SELECT ta.email
		FROM tag_alerts ta
		JOIN tags t ON t.name = ta.tag_name
		WHERE t.job_name = $1
		ORDER BY email
	`

	var emails []string
	if err := r.db.SelectContext(ctx, &emails, query, jobName); err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return emails, nil
}

// TagsForJob returns the tags attached to a job, sorted by name.
func (r *AlertRepository) TagsForJob(ctx context.Context, jobName string) ([]string, error) {
	var tags []string
	query := `SELECT name FROM tags WHERE job_name = $1 ORDER BY name`

	if err := r.db.SelectContext(ctx, &tags, query, jobName); err != nil {
		return nil, fmt.Errorf("failed to list job tags: %w", err)
	}
	return tags, nil
}

// ListTags returns every distinct tag name in use, sorted.
func (r *AlertRepository) ListTags(ctx context.Context) ([]string, error) {
	var tags []string
	query := `SELECT DISTINCT name FROM tags ORDER BY name`

	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// Subscribers returns the direct job alert subscribers of a job,
// sorted by email.
func (r *AlertRepository) Subscribers(ctx context.Context, jobName string) ([]string, error) {
	var emails []string
	query := `SELECT email FROM job_alerts WHERE job_name = $1 ORDER BY email`

	if err := r.db.SelectContext(ctx, &emails, query, jobName); err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return emails, nil
}
