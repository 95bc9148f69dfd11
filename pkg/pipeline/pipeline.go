// Package pipeline runs a source document through extraction, categorization and storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

// ErrUnsupportedSource is returned when no extractor handles a document.
var ErrUnsupportedSource = errors.New("unsupported source")

// ParseError reports that a document could not be turned into transactions.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Categorizer assigns a category and confidence to a draft transaction.
type Categorizer interface {
	Categorize(txn api.Transaction) (string, float64)
}

// Result is the outcome of one ingestion.
type Result struct {
	Transactions []api.Transaction
	// Failed counts transactions the store rejected.
	Failed int
}

// Count is the number of extracted transactions.
func (r Result) Count() int { return len(r.Transactions) }

// Pipeline ingests documents into a store.
type Pipeline struct {
	byExt       map[string]api.Extractor
	byName      map[string]api.Extractor
	categorizer Categorizer
	store       api.Store
	logger      *slog.Logger
}

// New creates a pipeline. extractors is keyed by lower-case file extension including the dot.
func New(extractors map[string]api.Extractor, categorizer Categorizer, store api.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		byExt:       make(map[string]api.Extractor, len(extractors)),
		byName:      make(map[string]api.Extractor),
		categorizer: categorizer,
		store:       store,
		logger:      logger.With("component", "pipeline"),
	}
	for ext, e := range extractors {
		p.byExt[strings.ToLower(ext)] = e
		p.byName[e.Name()] = e
	}
	return p
}

// Ingest picks an extractor from the file extension and ingests path.
func (p *Pipeline) Ingest(ctx context.Context, path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := p.byExt[ext]
	if !ok {
		return Result{}, &ParseError{Path: path, Err: fmt.Errorf("%w: extension %q", ErrUnsupportedSource, ext)}
	}
	return p.run(ctx, e, path)
}

// IngestWith ingests path with the extractor registered under name, ignoring the extension.
func (p *Pipeline) IngestWith(ctx context.Context, name, path string) (Result, error) {
	e, ok := p.byName[name]
	if !ok {
		return Result{}, &ParseError{Path: path, Err: fmt.Errorf("%w: format %q", ErrUnsupportedSource, name)}
	}
	return p.run(ctx, e, path)
}

func (p *Pipeline) run(ctx context.Context, e api.Extractor, path string) (Result, error) {
	logger := p.logger.With("source", filepath.Base(path), "extractor", e.Name())

	drafts, err := e.Extract(ctx, path)
	if err != nil {
		return Result{}, &ParseError{Path: path, Err: err}
	}

	categorized := 0
	for i := range drafts {
		if !drafts[i].IsUncategorized() {
			continue
		}
		drafts[i].Category, drafts[i].Confidence = p.categorizer.Categorize(drafts[i])
		if !drafts[i].IsUncategorized() {
			categorized++
		}
	}

	failed := 0
	for _, txn := range drafts {
		if err := p.store.Upsert(ctx, txn); err != nil {
			logger.Error("failed to store transaction", "id", txn.ID, "error", err)
			failed++
		}
	}

	if failed > 0 {
		logger.Warn("some transactions were not stored", "failed", failed, "total", len(drafts))
	}
	logger.Info("ingested source",
		"transactions", len(drafts),
		"categorized", categorized,
		"failed", failed,
	)

	if drafts == nil {
		drafts = []api.Transaction{}
	}
	return Result{Transactions: drafts, Failed: failed}, nil
}
