package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/spf13/cobra"
)

func (c *cli) enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "enqueue '<job-json>'",
		Short:   "Add a job, e.g. '{\"id\":\"job1\",\"command\":\"echo hi\",\"max_retries\":2}'",
		Example: `  queuectl enqueue '{"command":"sleep 2"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := dto.DecodeJobSpec([]byte(args[0]))
			if err != nil {
				return fmt.Errorf("%w: %w", job.ErrValidation, err)
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			created, err := a.Service.CreateJob(cmd.Context(), spec)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %s\n", created.ID)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			jobs, err := a.Service.ListJobs(cmd.Context(), state)
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs found")
				return nil
			}
			printJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (pending, processing, completed, failed, dead)")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its output and attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			j, err := a.Service.GetJobByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(j)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := a.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			var total int64
			for _, st := range config.AllJobStatuses {
				fmt.Fprintf(tw, "%s\t%d\n", st, stats[string(st)])
				total += stats[string(st)]
			}
			fmt.Fprintf(tw, "total\t%d\n", total)
			return tw.Flush()
		},
	}
}

func printJobs(w io.Writer, jobs []dto.JobResponseDTO) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tATTEMPTS\tMAX_RETRIES\tRUN_AT\tCOMMAND")
	for _, j := range jobs {
		runAt := "-"
		if j.RunAt != nil {
			runAt = j.RunAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", j.ID, j.State, j.Attempts, j.MaxRetries, runAt, j.Command)
	}
	tw.Flush()
}
