package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joshu-sajeev/queuectl/common"
	"github.com/joshu-sajeev/queuectl/internal/app"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/storage"
	"github.com/spf13/cobra"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitNotFound   = 3
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer c.close()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", describe(err))
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, job.ErrValidation):
		return exitValidation
	case errors.Is(err, job.ErrNotFound):
		return exitNotFound
	default:
		return exitFailure
	}
}

func describe(err error) string {
	var apiErr common.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(apiErr.Fields))
	for k := range apiErr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, apiErr.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", err.Error(), strings.Join(parts, ", "))
}

// cli opens the store on first use so that help and usage errors work
// without a database.
type cli struct {
	dbPath string
	app    *app.App
}

func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	rt, err := config.LoadRuntimeFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	dbCfg, err := storage.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	if c.dbPath != "" {
		dbCfg.Driver = storage.DriverSQLite
		dbCfg.Path = c.dbPath
	}

	a, err := app.Open(ctx, rt, dbCfg, app.NewLogger(os.Stderr, rt))
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Persistent background job queue for shell commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Join(errUsage, err)
	})
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database file (overrides QUEUE_DB_DRIVER and QUEUE_DB_PATH)")

	root.AddCommand(
		c.enqueueCmd(),
		c.listCmd(),
		c.showCmd(),
		c.statusCmd(),
		c.workerCmd(),
		c.dlqCmd(),
		c.configCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the job store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// open applies pending migrations
			if _, err := c.open(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
