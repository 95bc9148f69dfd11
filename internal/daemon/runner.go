// Package daemon assembles privatebooks from its configuration and plugins.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redcoatwright/privatebooks/internal/plugins"
	"github.com/redcoatwright/privatebooks/internal/server"
	"github.com/redcoatwright/privatebooks/internal/service"
	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/auth"
	"github.com/redcoatwright/privatebooks/pkg/categorizer"
	"github.com/redcoatwright/privatebooks/pkg/config"
	"github.com/redcoatwright/privatebooks/pkg/pipeline"
)

// Runner builds applications from registered plugins.
type Runner struct {
	registry *plugins.Registry
	logger   *slog.Logger
}

// New creates a new runner.
func New(registry *plugins.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry: registry,
		logger:   logger,
	}
}

// App is a fully wired privatebooks instance.
type App struct {
	Service     *service.Service
	Gate        *auth.Gate
	Store       api.Store
	Categorizer *categorizer.Categorizer
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Open creates the store, extractors and categorizer described by cfg.
func (r *Runner) Open(cfg config.Config) (*App, error) {
	rules := categorizer.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := categorizer.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		rules = loaded
	}
	cat := categorizer.New(rules, r.logger)

	extractors, err := r.registry.CreateExtractors(r.logger)
	if err != nil {
		return nil, fmt.Errorf("creating extractors: %w", err)
	}

	storeCfg, err := cfg.StorePluginConfig()
	if err != nil {
		return nil, fmt.Errorf("building store config: %w", err)
	}
	st, err := r.registry.CreateStore(
		cfg.Store,
		storeCfg,
		r.logger.With("component", "store", "plugin", cfg.Store),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	p := pipeline.New(extractors, cat, st, r.logger)
	r.logger.Debug("application ready",
		"store", cfg.Store,
		"extractors", len(extractors),
		"rules", cat.Rules(),
	)

	return &App{
		Service:     service.New(p, st, cat, r.logger),
		Gate:        auth.NewGate(st),
		Store:       st,
		Categorizer: cat,
	}, nil
}

// Run opens the application and serves the HTTP API on cfg.HTTPAddr.
// It blocks until the context is canceled or an error occurs.
func (r *Runner) Run(ctx context.Context, cfg config.Config) error {
	app, err := r.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			r.logger.Warn("closing store", "error", err)
		}
	}()

	if err := app.Gate.Unlock(ctx, cfg.Password); err != nil {
		return err
	}

	r.logger.Info("starting privatebooks", "store", cfg.Store, "addr", cfg.HTTPAddr)
	srv := server.New(app.Service, r.logger)
	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}

	r.logger.Info("privatebooks stopped")
	return nil
}
