package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (c *cli) workerCmd() *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run workers",
	}

	var count int
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start workers in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("%w: --count must be at least 1", errUsage)
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			workerPool := a.NewPool(count)
			workerPool.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "started %d worker(s), press Ctrl+C to stop\n", count)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			select {
			case <-stop:
			case <-cmd.Context().Done():
			}

			fmt.Fprintln(cmd.OutOrStdout(), "stopping, waiting for running jobs to finish")
			workerPool.Stop()
			return nil
		},
	}
	startCmd.Flags().IntVar(&count, "count", 1, "Number of workers")

	workerCmd.AddCommand(startCmd)
	return workerCmd
}
