package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/redcoatwright/privatebooks/internal/daemon"
	"github.com/redcoatwright/privatebooks/pkg/config"
)

func (c *cli) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, rules and store connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// runStatus prints a checklist of everything privatebooks needs to run.
func (c *cli) runStatus(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "=== privatebooks status ===")
	fmt.Fprintln(w)

	allGood := true

	cfg := c.checkConfig(w, &allGood)
	c.checkExtractors(w)
	if cfg != nil {
		checkRules(w, *cfg, &allGood)
		c.checkStore(ctx, w, *cfg, &allGood)
	}

	printFinalStatus(w, allGood)
	if !allGood {
		return fmt.Errorf("configuration issues detected")
	}
	return nil
}

func (c *cli) checkConfig(w io.Writer, allGood *bool) *config.Config {
	if c.configPath != "" {
		fmt.Fprintf(w, "Config file (%s): ", c.configPath)
		if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
			fmt.Fprintln(w, "✗ Not found")
			*allGood = false
			return nil
		}
		fmt.Fprintln(w, "✓ Found")
	}

	fmt.Fprint(w, "Configuration: ")
	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintf(w, "✗ %v\n", err)
		*allGood = false
		return nil
	}
	fmt.Fprintf(w, "✓ store=%s\n", cfg.Store)
	return &cfg
}

func (c *cli) checkExtractors(w io.Writer) {
	fmt.Fprintln(w, "Extractors:")
	for _, p := range c.registry.ListExtractors() {
		fmt.Fprintf(w, "  %s (%s): %s\n", p.Name(), strings.Join(p.Extensions(), ", "), p.Description())
	}
}

func checkRules(w io.Writer, cfg config.Config, allGood *bool) {
	if cfg.RulesFile == "" {
		fmt.Fprintln(w, "Rules: ✓ built-in")
		return
	}
	fmt.Fprintf(w, "Rules file (%s): ", cfg.RulesFile)
	if _, err := os.Stat(cfg.RulesFile); os.IsNotExist(err) {
		fmt.Fprintln(w, "✗ Not found")
		*allGood = false
		return
	}
	fmt.Fprintln(w, "✓ Found")
}

func (c *cli) checkStore(ctx context.Context, w io.Writer, cfg config.Config, allGood *bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Store:")

	fmt.Fprintf(w, "  Open (%s): ", cfg.Store)
	app, err := daemon.New(c.registry, c.logger).Open(cfg)
	if err != nil {
		fmt.Fprintf(w, "✗ %v\n", err)
		*allGood = false
		return
	}
	defer func() { _ = app.Close() }()
	fmt.Fprintf(w, "✓ %d rules loaded\n", app.Categorizer.Rules())

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fmt.Fprint(w, "  Connectivity: ")
	if err := app.Service.Ping(pingCtx); err != nil {
		fmt.Fprintf(w, "✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Fprintln(w, "✓ Connected")

	fmt.Fprint(w, "  Password: ")
	enabled, err := app.Gate.Enabled(pingCtx)
	switch {
	case err != nil:
		fmt.Fprintf(w, "✗ %v\n", err)
		*allGood = false
	case !enabled:
		fmt.Fprintln(w, "✓ Not set")
	default:
		if err := app.Gate.Unlock(pingCtx, cfg.Password); err != nil {
			fmt.Fprintln(w, "⚠ Set (supply --password or PRIVATEBOOKS_PASSWORD)")
		} else {
			fmt.Fprintln(w, "✓ Set and unlocked")
		}
	}
}

func printFinalStatus(w io.Writer, allGood bool) {
	fmt.Fprintln(w)
	if allGood {
		fmt.Fprintln(w, "Status: ✓ Ready to run")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Run 'privatebooks ingest <file>' to import transactions.")
	} else {
		fmt.Fprintln(w, "Status: ✗ Configuration issues detected")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above, then run 'privatebooks status' again.")
	}
}
