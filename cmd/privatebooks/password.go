package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

func (c *cli) newPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the store password",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <new-password>",
			Short: "Require a password; --password must hold the current one if set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withGate(cmd, "password set", func(ctx context.Context, g gate, current string) error {
					return g.Set(ctx, current, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Stop requiring a password; --password must hold the current one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withGate(cmd, "password cleared", func(ctx context.Context, g gate, current string) error {
					return g.Clear(ctx, current)
				})
			},
		},
	)
	return cmd
}

type gate interface {
	Set(ctx context.Context, current, password string) error
	Clear(ctx context.Context, current string) error
}

// withGate runs fn against the store's password gate. The gate checks the
// current password itself, so the store is not unlocked first.
func (c *cli) withGate(cmd *cobra.Command, message string, fn func(ctx context.Context, g gate, current string) error) error {
	out := cmd.OutOrStdout()

	app, cfg, err := c.open()
	if err != nil {
		_ = printJSON(out, api.Failure(err))
		return err
	}
	defer func() { _ = app.Close() }()

	if err := fn(cmd.Context(), app.Gate, cfg.Password); err != nil {
		_ = printJSON(out, api.Failure(err))
		return err
	}
	return printJSON(out, api.OK(message))
}
