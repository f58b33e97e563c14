// Package alert fans out job failure notifications to subscribed
// addresses.
package alert

import (
	"context"
	"fmt"

	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/logger"
	"github.com/jonesrussell/godash/internal/mailer"
	"github.com/jonesrussell/godash/internal/store"
)

// FailureSubject is the subject line used for every failure alert.
const FailureSubject = "Dashboard - Job Failure Alert"

// Fanout resolves recipients and sends failure mail. Delivery problems
// are logged and swallowed so a broken relay never stalls the
// scheduler.
type Fanout struct {
	alerts store.AlertStore
	sender mailer.Sender
	logger logger.Interface
}

// NewFanout creates a fanout.
func NewFanout(alerts store.AlertStore, sender mailer.Sender, log logger.Interface) *Fanout {
	return &Fanout{
		alerts: alerts,
		sender: sender,
		logger: log.WithComponent("alert"),
	}
}

// NotifyFailure mails every subscriber of the job. A job without
// subscribers is a silent no-op.
func (f *Fanout) NotifyFailure(ctx context.Context, job *domain.Job) {
	recipients, err := f.alerts.Recipients(ctx, job.Name)
	if err != nil {
		f.logger.Error("failed to resolve alert recipients",
			"job", job.Name, "error", err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	msg := mailer.Message{
		To:      recipients,
		Subject: FailureSubject,
		Body:    failureBody(job),
	}
	if err := f.sender.Send(msg); err != nil {
		f.logger.Error("failed to send failure alert",
			"job", job.Name, "recipients", len(recipients), "error", err)
		return
	}

	f.logger.Info("failure alert sent",
		"job", job.Name, "recipients", len(recipients))
}

// failureBody renders the alert mail body. The last task result is
// included verbatim.
func failureBody(job *domain.Job) string {
	return fmt.Sprintf(
		"Job %q failed.\n\nCommand: %s\n\nResult:\n%s\n",
		job.Name, job.Command, job.LastTaskResult,
	)
}
