package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/spf13/cobra"
)

var errUsage = fmt.Errorf("%w: invalid usage", job.ErrValidation)

func (c *cli) configCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change queue settings (max-retries, backoff-base)",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			entries, err := a.Service.ListConfig(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.Key, e.Value)
			}
			return tw.Flush()
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			entry, err := a.Service.GetConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), entry.Value)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Change one setting",
		Example: "  queuectl config set max-retries 5\n  queuectl config set backoff-base 2",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return errors.Join(errUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			entry, err := a.Service.SetConfig(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", entry.Key, entry.Value)
			return nil
		},
	}

	// values such as -1 are arguments, not shorthand flags
	setCmd.Flags().SetInterspersed(false)

	configCmd.AddCommand(showCmd, getCmd, setCmd)
	return configCmd
}
