// Package jobs implements the jobs subcommands.
package jobs

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/godash/cmd/common"
	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/handler"
)

// flags shared by add and edit.
type jobFlags struct {
	timezone    string
	operator    string
	database    string
	command     string
	start       string
	end         string
	interval    string
	weekdays    []int
	crontab     string
	resetAt     string
	tags        []string
	subscribers []string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.timezone, "timezone", "UTC", "IANA timezone of the schedule")
	cmd.Flags().StringVar(&f.operator, "operator", "bash", "operator (bash|sql|python)")
	cmd.Flags().StringVar(&f.database, "database", "", "target database for sql jobs")
	cmd.Flags().StringVar(&f.command, "command", "", "command to run")
	cmd.Flags().StringVar(&f.start, "start", "", "start timestamp (YYYY-MM-DD [HH:MM])")
	cmd.Flags().StringVar(&f.end, "end", "", "optional end timestamp")
	cmd.Flags().StringVar(&f.interval, "interval", "@daily", "schedule preset or crontab")
	cmd.Flags().IntSliceVar(&f.weekdays, "weekday", nil, "weekdays to run (1=Mon..7=Sun, for @weekly)")
	cmd.Flags().StringVar(&f.crontab, "crontab", "", "raw crontab override")
	cmd.Flags().StringVar(&f.resetAt, "reset-status-at", "", "daily status reset time (H:MM)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tags to attach")
	cmd.Flags().StringSliceVar(&f.subscribers, "subscribe", nil, "alert subscriber emails")
}

func (f *jobFlags) params(name string) handler.JobParams {
	return handler.JobParams{
		Name:             name,
		Timezone:         f.timezone,
		Operator:         domain.Operator(f.operator),
		Database:         f.database,
		Command:          f.command,
		StartDT:          f.start,
		EndDT:            f.end,
		ScheduleInterval: f.interval,
		Weekdays:         f.weekdays,
		CrontabOverride:  f.crontab,
		ResetStatusAt:    f.resetAt,
		Tags:             f.tags,
		Subscribers:      f.subscribers,
	}
}

// Command returns the jobs command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scheduled jobs",
	}

	cmd.AddCommand(
		addCommand(),
		editCommand(),
		removeCommand(),
		listCommand(),
		infoCommand(),
		runCommand(),
		blockCommand(),
		statusCommand("activate", "Activate a job", false),
		statusCommand("deactivate", "Deactivate a job", true),
		clearCommand(),
		subscribeCommand(true),
		subscribeCommand(false),
		tagsCommand(),
	)
	return cmd
}

// withHandler builds deps, runs fn and cleans up.
func withHandler(fn func(*cobra.Command, []string, *handler.Handler) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		deps, err := common.Build()
		if err != nil {
			return err
		}
		defer deps.Close()

		h, err := deps.Handler()
		if err != nil {
			return err
		}
		return fn(cmd, args, h)
	}
}

func addCommand() *cobra.Command {
	flags := &jobFlags{}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a job",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			job, err := h.AddJob(cmd.Context(), flags.params(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("job %q created; next run %s\n",
				job.Name, job.NextRunTS.Format(time.DateTime))
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}

func editCommand() *cobra.Command {
	flags := &jobFlags{}
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Edit a job",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			job, err := h.EditJob(cmd.Context(), flags.params(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("job %q updated; next run %s\n",
				job.Name, job.NextRunTS.Format(time.DateTime))
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}

func removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a job and its history",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			if err := h.RemoveJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("job %q removed\n", args[0])
			return nil
		}),
	}
}

func listCommand() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			jobs, err := h.ListJobs(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			renderJobs(jobs)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active jobs")
	return cmd
}

func infoCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show a job with its tags, subscribers and recent tasks",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			info, err := h.InfoJob(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			renderInfo(info)
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max tasks to show")
	return cmd
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Force an immediate run",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			task, err := h.ForceScheduleForJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("task %d dispatched for %s\n",
				task.ID, task.ExecutionDate.Format(time.DateTime))
			return nil
		}),
	}
}

func blockCommand() *cobra.Command {
	var (
		till  string
		msg   string
		email string
	)
	cmd := &cobra.Command{
		Use:   "block <name>",
		Short: "Block a job until a UTC timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			if err := h.BlockJobTill(cmd.Context(), args[0], till, msg, email); err != nil {
				return err
			}
			fmt.Printf("job %q blocked until %s\n", args[0], till)
			return nil
		}),
	}
	cmd.Flags().StringVar(&till, "till", "", "UTC timestamp the block expires at")
	cmd.Flags().StringVar(&msg, "message", "", "reason for the block")
	cmd.Flags().StringVar(&email, "by", "", "email of the blocker")
	return cmd
}

func statusCommand(use, short string, deactivate bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			reason, err := h.ChangeJobStatus(cmd.Context(), args[0], deactivate)
			if err != nil {
				return err
			}
			if reason != "" {
				fmt.Println(reason)
				return nil
			}
			fmt.Printf("job %q %sd\n", args[0], use)
			return nil
		}),
	}
}

func clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <name>",
		Short: "Delete a job's task history",
		Args:  cobra.ExactArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			n, err := h.ClearTasksHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d tasks of job %q\n", n, args[0])
			return nil
		}),
	}
}

func subscribeCommand(subscribe bool) *cobra.Command {
	use := "subscribe"
	if !subscribe {
		use = "unsubscribe"
	}
	var kind string
	cmd := &cobra.Command{
		Use:   use + " <name> <email>",
		Short: use + " an email to failure alerts of a job or tag",
		Args:  cobra.ExactArgs(2),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			k := domain.SubscriptionKind(kind)
			var err error
			if subscribe {
				err = h.Subscribe(cmd.Context(), k, args[0], args[1])
			} else {
				err = h.Unsubscribe(cmd.Context(), k, args[0], args[1])
			}
			if err != nil {
				return err
			}
			fmt.Printf("%sd %s to %s %q\n", use, args[1], kind, args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", "job", "subscription kind (job|tag)")
	return cmd
}

func tagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags [tag]",
		Short: "List tags, or the jobs carrying one tag",
		Args:  cobra.MaximumNArgs(1),
		RunE: withHandler(func(cmd *cobra.Command, args []string, h *handler.Handler) error {
			if len(args) == 0 {
				tags, err := h.ListTags(cmd.Context())
				if err != nil {
					return err
				}
				for _, tag := range tags {
					fmt.Println(tag)
				}
				return nil
			}

			jobs, err := h.JobsByTag(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderJobs(jobs)
			return nil
		}),
	}
}

// renderJobs prints a job table.
func renderJobs(jobs []*domain.Job) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Operator", "Schedule", "Next Run", "Active", "Status", "Command"})
	for _, job := range jobs {
		t.AppendRow(table.Row{
			job.Name,
			job.Operator,
			job.ScheduleInterval,
			job.NextRunTS.Format(time.DateTime),
			job.Active,
			job.Status.String(),
			job.ShortCommand(),
		})
	}
	t.Render()
}

// renderInfo prints a job's detail view.
func renderInfo(info *handler.JobInfo) {
	renderJobs([]*domain.Job{info.Job})

	fmt.Printf("\ntags: %v\nsubscribers: %v\n\n", info.Tags, info.Subscribers)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Execution Date", "State", "Result"})
	for _, task := range info.Tasks {
		t.AppendRow(table.Row{
			task.ID,
			task.ExecutionDate.Format(time.DateTime),
			task.State,
			task.Result,
		})
	}
	t.Render()
}
