// Package scheduler implements the scheduler subcommand.
package scheduler

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/godash/cmd/common"
	"github.com/jonesrussell/godash/internal/alert"
	"github.com/jonesrussell/godash/internal/lease"
	"github.com/jonesrussell/godash/internal/mailer"
	"github.com/jonesrussell/godash/internal/scheduler"
)

// Command returns the scheduler command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the scheduler loop",
		Long: `Run the single-leader scheduler loop: dispatch due jobs, reconcile
open tasks and send failure alerts. Exits immediately when another
instance already holds the lease.`,
		RunE: run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	deps, err := common.Build()
	if err != nil {
		return err
	}
	defer deps.Close()

	leaseStore, err := lease.NewStore(deps.Redis, lease.Config{
		Key: deps.Cfg.Scheduler.LeaseKey,
		TTL: deps.Cfg.Scheduler.LeaseTTL,
	})
	if err != nil {
		return err
	}

	taskBroker, err := deps.Broker()
	if err != nil {
		return err
	}

	sender := mailer.NewSMTPSender(deps.Cfg.SMTP)
	fanout := alert.NewFanout(deps.Alerts, sender, deps.Logger)

	sched := scheduler.New(
		deps.Jobs,
		deps.Tasks,
		taskBroker,
		fanout,
		leaseStore,
		nil,
		nil,
		deps.Logger,
		scheduler.Config{PollInterval: deps.Cfg.Scheduler.PollInterval},
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sched.Run(ctx)
}
