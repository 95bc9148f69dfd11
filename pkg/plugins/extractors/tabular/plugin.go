// Package tabular provides a plugin wrapper for the delimited-file extractor.
package tabular

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor/tabular"
)

// Plugin implements the ExtractorPlugin interface for CSV exports.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return tabular.Name
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read transactions from bank CSV exports with a header row"
}

// Extensions returns the file extensions handled by this plugin.
func (p *Plugin) Extensions() []string {
	return []string{".csv"}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delimiter": map[string]any{
				"type":        "string",
				"description": "Single-character field delimiter",
				"default":     ",",
			},
		},
	}
}

// Config represents the tabular extractor configuration.
type Config struct {
	Delimiter string `json:"delimiter,omitempty"`
}

// NewExtractor creates a new tabular extractor instance.
func (p *Plugin) NewExtractor(configData json.RawMessage, logger *slog.Logger) (api.Extractor, error) {
	var cfg Config
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling tabular config: %w", err)
		}
	}

	var comma rune
	if cfg.Delimiter != "" {
		if utf8.RuneCountInString(cfg.Delimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", cfg.Delimiter)
		}
		comma, _ = utf8.DecodeRuneInString(cfg.Delimiter)
	}

	return tabular.New(tabular.Config{Comma: comma}, logger), nil
}
