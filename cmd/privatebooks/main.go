// Command privatebooks ingests bank documents into a local ledger and reports on spending.
package main

import (
	"os"

	"github.com/redcoatwright/privatebooks/internal/plugins"
	"github.com/redcoatwright/privatebooks/pkg/logging"
	mboxplugin "github.com/redcoatwright/privatebooks/pkg/plugins/extractors/mbox"
	statementplugin "github.com/redcoatwright/privatebooks/pkg/plugins/extractors/statement"
	tabularplugin "github.com/redcoatwright/privatebooks/pkg/plugins/extractors/tabular"
	postgresplugin "github.com/redcoatwright/privatebooks/pkg/plugins/stores/postgres"
	sqliteplugin "github.com/redcoatwright/privatebooks/pkg/plugins/stores/sqlite"
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	registry, err := newRegistry()
	if err != nil {
		logger.Error("failed to register plugins", "error", err)
		os.Exit(1)
	}

	if err := newRootCommand(registry, logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRegistry() (*plugins.Registry, error) {
	registry := plugins.NewRegistry()

	// Extractors
	if err := registry.RegisterExtractor(&tabularplugin.Plugin{}); err != nil {
		return nil, err
	}
	if err := registry.RegisterExtractor(&statementplugin.Plugin{}); err != nil {
		return nil, err
	}
	if err := registry.RegisterExtractor(&mboxplugin.Plugin{}); err != nil {
		return nil, err
	}

	// Stores
	if err := registry.RegisterStore(&sqliteplugin.Plugin{}); err != nil {
		return nil, err
	}
	if err := registry.RegisterStore(&postgresplugin.Plugin{}); err != nil {
		return nil, err
	}

	return registry, nil
}
