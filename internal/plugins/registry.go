// Package plugins provides a plugin registry for source extractors and stores.
package plugins

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

// ExtractorPlugin defines the interface for source extractor plugins.
type ExtractorPlugin interface {
	// Name returns the plugin name (e.g., "tabular", "statement").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Extensions returns the lower-case file extensions, with the dot, handled by default.
	Extensions() []string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewExtractor creates a new extractor instance with the given config.
	NewExtractor(config json.RawMessage, logger *slog.Logger) (api.Extractor, error)
}

// StorePlugin defines the interface for transaction store plugins.
type StorePlugin interface {
	// Name returns the plugin name (e.g., "sqlite", "postgres").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewStore opens a store with the given config.
	NewStore(config json.RawMessage, logger *slog.Logger) (api.Store, error)
}

// Registry manages available extractor and store plugins.
type Registry struct {
	extractors map[string]ExtractorPlugin
	extensions map[string]string
	stores     map[string]StorePlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]ExtractorPlugin),
		extensions: make(map[string]string),
		stores:     make(map[string]StorePlugin),
	}
}

// RegisterExtractor registers an extractor plugin and claims its extensions.
func (r *Registry) RegisterExtractor(plugin ExtractorPlugin) error {
	name := plugin.Name()
	if _, exists := r.extractors[name]; exists {
		return fmt.Errorf("extractor plugin %q already registered", name)
	}
	for _, ext := range plugin.Extensions() {
		ext = strings.ToLower(ext)
		if owner, taken := r.extensions[ext]; taken {
			return fmt.Errorf("extension %q already handled by extractor plugin %q", ext, owner)
		}
	}

	r.extractors[name] = plugin
	for _, ext := range plugin.Extensions() {
		r.extensions[strings.ToLower(ext)] = name
	}
	return nil
}

// RegisterStore registers a store plugin.
func (r *Registry) RegisterStore(plugin StorePlugin) error {
	name := plugin.Name()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store plugin %q already registered", name)
	}
	r.stores[name] = plugin
	return nil
}

// GetExtractor returns an extractor plugin by name.
func (r *Registry) GetExtractor(name string) (ExtractorPlugin, error) {
	plugin, exists := r.extractors[name]
	if !exists {
		return nil, fmt.Errorf("extractor plugin %q not found", name)
	}
	return plugin, nil
}

// ExtractorForExtension returns the extractor plugin claiming ext.
func (r *Registry) ExtractorForExtension(ext string) (ExtractorPlugin, error) {
	name, exists := r.extensions[strings.ToLower(ext)]
	if !exists {
		return nil, fmt.Errorf("no extractor plugin for extension %q", ext)
	}
	return r.extractors[name], nil
}

// GetStore returns a store plugin by name.
func (r *Registry) GetStore(name string) (StorePlugin, error) {
	plugin, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("store plugin %q not found", name)
	}
	return plugin, nil
}

// ListExtractors returns all registered extractor plugins sorted by name.
func (r *Registry) ListExtractors() []ExtractorPlugin {
	plugins := make([]ExtractorPlugin, 0, len(r.extractors))
	for _, plugin := range r.extractors {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// ListStores returns all registered store plugins sorted by name.
func (r *Registry) ListStores() []StorePlugin {
	plugins := make([]StorePlugin, 0, len(r.stores))
	for _, plugin := range r.stores {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// CreateExtractors instantiates every extractor plugin with its default
// config and returns them keyed by extension.
func (r *Registry) CreateExtractors(logger *slog.Logger) (map[string]api.Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	byExt := make(map[string]api.Extractor, len(r.extensions))
	for _, plugin := range r.ListExtractors() {
		e, err := plugin.NewExtractor(nil, logger.With("component", "extractor", "plugin", plugin.Name()))
		if err != nil {
			return nil, fmt.Errorf("creating extractor %q: %w", plugin.Name(), err)
		}
		for _, ext := range plugin.Extensions() {
			byExt[strings.ToLower(ext)] = e
		}
	}
	return byExt, nil
}

// CreateStore opens a store from a plugin.
func (r *Registry) CreateStore(name string, config json.RawMessage, logger *slog.Logger) (api.Store, error) {
	plugin, err := r.GetStore(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewStore(config, logger)
}
