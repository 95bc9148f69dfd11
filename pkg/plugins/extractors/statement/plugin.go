// Package statement provides a plugin wrapper for the PDF and text statement extractor.
package statement

import (
	"encoding/json"
	"log/slog"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor/statement"
)

// Plugin implements the ExtractorPlugin interface for statements.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return statement.Name
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read transaction lines from PDF or plain-text bank statements"
}

// Extensions returns the file extensions handled by this plugin.
func (p *Plugin) Extensions() []string {
	return []string{".pdf", ".txt"}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
// The statement extractor takes no options.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// NewExtractor creates a new statement extractor instance.
func (p *Plugin) NewExtractor(_ json.RawMessage, logger *slog.Logger) (api.Extractor, error) {
	return statement.New(statement.Config{}, logger), nil
}
