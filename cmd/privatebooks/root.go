package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/redcoatwright/privatebooks/internal/buildinfo"
	"github.com/redcoatwright/privatebooks/internal/daemon"
	"github.com/redcoatwright/privatebooks/internal/plugins"
	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/config"
)

// cli holds state shared by every subcommand.
type cli struct {
	registry   *plugins.Registry
	logger     *slog.Logger
	configPath string
	password   string
}

func newRootCommand(registry *plugins.Registry, logger *slog.Logger) *cobra.Command {
	c := &cli{registry: registry, logger: logger}

	rootCmd := &cobra.Command{
		Use:     "privatebooks",
		Short:   "Local-first personal finance ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "optional JSON config file")
	rootCmd.PersistentFlags().StringVar(&c.password, "password", "", "store password (overrides PRIVATEBOOKS_PASSWORD)")

	rootCmd.AddCommand(
		c.newIngestCommand(),
		c.newListCommand(),
		c.newUpdateCommand(),
		c.newDeleteCommand(),
		c.newSummaryCommand(),
		c.newBreakdownCommand(),
		c.newMonthlyCommand(),
		c.newTrendsCommand(),
		c.newCategoriesCommand(),
		c.newTrainCommand(),
		c.newServeCommand(),
		c.newStatusCommand(),
		c.newPasswordCommand(),
	)

	return rootCmd
}

func (c *cli) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.password != "" {
		cfg.Password = c.password
	}
	return cfg, nil
}

// open loads the config and opens the application without checking the password.
func (c *cli) open() (*daemon.App, config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	app, err := daemon.New(c.registry, c.logger).Open(cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return app, cfg, nil
}

// run opens an unlocked application, calls fn and prints its envelope.
// Failures are printed as a failure envelope and returned.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, app *daemon.App) (any, error)) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := c.runApp(ctx, fn)
	if err != nil {
		_ = printJSON(out, api.Failure(err))
		return err
	}
	return printJSON(out, result)
}

func (c *cli) runApp(ctx context.Context, fn func(ctx context.Context, app *daemon.App) (any, error)) (any, error) {
	app, cfg, err := c.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := app.Close(); err != nil {
			c.logger.Warn("closing store", "error", err)
		}
	}()

	if err := app.Gate.Unlock(ctx, cfg.Password); err != nil {
		return nil, err
	}
	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
