package domain

// DefaultTag is attached to jobs created without any explicit tags.
const DefaultTag = "no-tag"

// Tag associates a label with a job.
type Tag struct {
	ID      int64  `db:"id"       json:"id"`
	Name    string `db:"name"     json:"name"`
	JobName string `db:"job_name" json:"job_name"`
}

// JobAlert subscribes an email address to failures of a single job.
type JobAlert struct {
	ID      int64  `db:"id"       json:"id"`
	JobName string `db:"job_name" json:"job_name"`
	Email   string `db:"email"    json:"email"`
}

// TagAlert subscribes an email address to failures of every job
// carrying a tag.
type TagAlert struct {
	ID      int64  `db:"id"       json:"id"`
	TagName string `db:"tag_name" json:"tag_name"`
	Email   string `db:"email"    json:"email"`
}

// SubscriptionKind selects which alert table a subscription targets.
type SubscriptionKind string

// Subscription kinds.
const (
	SubscribeJob SubscriptionKind = "job"
	SubscribeTag SubscriptionKind = "tag"
)
