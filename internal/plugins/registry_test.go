package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

type fakeExtractor struct{ name string }

func (f fakeExtractor) Name() string { return f.name }

func (f fakeExtractor) Extract(context.Context, string) ([]api.Transaction, error) {
	return nil, nil
}

type fakeExtractorPlugin struct {
	name string
	exts []string
	err  error
}

func (p fakeExtractorPlugin) Name() string                 { return p.name }
func (p fakeExtractorPlugin) Description() string          { return "fake " + p.name }
func (p fakeExtractorPlugin) Extensions() []string         { return p.exts }
func (p fakeExtractorPlugin) ConfigSchema() map[string]any { return nil }

func (p fakeExtractorPlugin) NewExtractor(json.RawMessage, *slog.Logger) (api.Extractor, error) {
	if p.err != nil {
		return nil, p.err
	}
	return fakeExtractor{name: p.name}, nil
}

type fakeStorePlugin struct {
	name string
	got  *json.RawMessage
}

func (p fakeStorePlugin) Name() string                 { return p.name }
func (p fakeStorePlugin) Description() string          { return "fake store" }
func (p fakeStorePlugin) ConfigSchema() map[string]any { return nil }

func (p fakeStorePlugin) NewStore(config json.RawMessage, _ *slog.Logger) (api.Store, error) {
	*p.got = config
	return nil, nil
}

func TestRegisterExtractor(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterExtractor(fakeExtractorPlugin{name: "tabular", exts: []string{".CSV"}}))

	err := r.RegisterExtractor(fakeExtractorPlugin{name: "tabular"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"tabular" already registered`)

	err = r.RegisterExtractor(fakeExtractorPlugin{name: "other", exts: []string{".csv"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `already handled by extractor plugin "tabular"`)

	// A rejected plugin must not be half-registered.
	_, err = r.GetExtractor("other")
	assert.Error(t, err)

	p, err := r.ExtractorForExtension(".csv")
	require.NoError(t, err)
	assert.Equal(t, "tabular", p.Name())

	_, err = r.ExtractorForExtension(".xls")
	assert.Error(t, err)
}

func TestCreateExtractors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterExtractor(fakeExtractorPlugin{name: "statement", exts: []string{".pdf", ".txt"}}))
	require.NoError(t, r.RegisterExtractor(fakeExtractorPlugin{name: "tabular", exts: []string{".csv"}}))

	byExt, err := r.CreateExtractors(nil)
	require.NoError(t, err)
	require.Len(t, byExt, 3)
	assert.Equal(t, "statement", byExt[".pdf"].Name())
	assert.Equal(t, "statement", byExt[".txt"].Name())
	assert.Equal(t, "tabular", byExt[".csv"].Name())

	names := []string{}
	for _, p := range r.ListExtractors() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"statement", "tabular"}, names)
}

func TestCreateExtractors_Error(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterExtractor(fakeExtractorPlugin{name: "broken", exts: []string{".x"}, err: errors.New("boom")}))

	_, err := r.CreateExtractors(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `creating extractor "broken": boom`)
}

func TestStores(t *testing.T) {
	var got json.RawMessage
	r := NewRegistry()
	require.NoError(t, r.RegisterStore(fakeStorePlugin{name: "sqlite", got: &got}))
	require.Error(t, r.RegisterStore(fakeStorePlugin{name: "sqlite", got: &got}))

	_, err := r.CreateStore("sqlite", json.RawMessage(`{"path":"x.db"}`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"x.db"}`, string(got))

	_, err = r.CreateStore("mongo", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store plugin "mongo" not found`)
	assert.Len(t, r.ListStores(), 1)
}
