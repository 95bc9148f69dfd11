// Package mbox provides a plugin wrapper for the mailbox extractor.
package mbox

import (
	"encoding/json"
	"log/slog"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor/mbox"
)

// Plugin implements the ExtractorPlugin interface for mbox exports.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return mbox.Name
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read transactions from bank alert emails exported as an mbox file"
}

// Extensions returns the file extensions handled by this plugin.
func (p *Plugin) Extensions() []string {
	return []string{".mbox"}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// NewExtractor creates a new mbox extractor instance.
func (p *Plugin) NewExtractor(_ json.RawMessage, logger *slog.Logger) (api.Extractor, error) {
	return mbox.New(mbox.Config{}, logger), nil
}
