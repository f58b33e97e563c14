package alert_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/godash/internal/alert"
	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/logger"
	"github.com/jonesrussell/godash/internal/mailer"
)

// fakeAlertStore implements the alert store subset the fanout uses.
type fakeAlertStore struct {
	recipients map[string][]string
	err        error
}

func (f *fakeAlertStore) Recipients(_ context.Context, jobName string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recipients[jobName], nil
}

func (f *fakeAlertStore) Subscribe(context.Context, domain.SubscriptionKind, string, string) error {
	return nil
}
func (f *fakeAlertStore) Unsubscribe(context.Context, domain.SubscriptionKind, string, string) error {
	return nil
}
func (f *fakeAlertStore) TagsForJob(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeAlertStore) ListTags(context.Context) ([]string, error)          { return nil, nil }
func (f *fakeAlertStore) Subscribers(context.Context, string) ([]string, error) {
	return nil, nil
}

// fakeSender records messages and optionally fails.
type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func failedJob() *domain.Job {
	return &domain.Job{
		Name:           "nightly-report",
		Command:        "run_report.sh",
		LastTaskResult: "0 rows loaded",
	}
}

func TestNotifyFailureSendsToAllRecipients(t *testing.T) {
	store := &fakeAlertStore{recipients: map[string][]string{
		"nightly-report": {"a@example.com", "b@example.com"},
	}}
	sender := &fakeSender{}
	fanout := alert.NewFanout(store, sender, logger.NewNoOp())

	fanout.NotifyFailure(context.Background(), failedJob())

	assert.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, msg.To)
	assert.Equal(t, alert.FailureSubject, msg.Subject)
	assert.Contains(t, msg.Body, "nightly-report")
	assert.Contains(t, msg.Body, "run_report.sh")
	assert.Contains(t, msg.Body, "0 rows loaded")
}

func TestNotifyFailureNoSubscribersIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	fanout := alert.NewFanout(&fakeAlertStore{}, sender, logger.NewNoOp())

	fanout.NotifyFailure(context.Background(), failedJob())

	assert.Empty(t, sender.sent)
}

func TestNotifyFailureToleratesSendErrors(t *testing.T) {
	store := &fakeAlertStore{recipients: map[string][]string{
		"nightly-report": {"a@example.com"},
	}}
	sender := &fakeSender{err: errors.New("relay down")}
	fanout := alert.NewFanout(store, sender, logger.NewNoOp())

	// Must not panic or propagate.
	fanout.NotifyFailure(context.Background(), failedJob())
	assert.Empty(t, sender.sent)
}

func TestNotifyFailureToleratesStoreErrors(t *testing.T) {
	sender := &fakeSender{}
	fanout := alert.NewFanout(&fakeAlertStore{err: errors.New("db down")}, sender, logger.NewNoOp())

	fanout.NotifyFailure(context.Background(), failedJob())
	assert.Empty(t, sender.sent)
}
