package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redcoatwright/privatebooks/internal/daemon"
)

func (c *cli) newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			// Cancel on SIGINT/SIGTERM
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case sig := <-sigChan:
					c.logger.Info("received shutdown signal", "signal", sig)
					cancel()
				case <-ctx.Done():
				}
			}()

			if err := daemon.New(c.registry, c.logger).Run(ctx, cfg); err != nil {
				c.logger.Error("server failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PRIVATEBOOKS_HTTP_ADDR)")
	return cmd
}
