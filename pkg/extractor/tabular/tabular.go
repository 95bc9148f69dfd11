// Package tabular implements an Extractor for delimited exports with a header row.
package tabular

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor"
	"github.com/redcoatwright/privatebooks/pkg/normalize"
)

// Name identifies this extractor in the plugin registry.
const Name = "tabular"

type role int

const (
	roleNone role = iota
	roleDate
	roleMerchant
	roleAmount
	roleCategory
)

// roleKeywords is scanned in order; the first role with a keyword contained
// in the lower-cased header wins for that column.
var roleKeywords = []struct {
	role     role
	keywords []string
}{
	{roleDate, []string{"date", "posted"}},
	{roleMerchant, []string{"payee", "merchant", "description"}},
	{roleAmount, []string{"amount"}},
	{roleCategory, []string{"category"}},
}

// Config holds configuration for the tabular extractor.
type Config struct {
	// IDs mints transaction ids. Defaults to extractor.RandomID.
	IDs extractor.IDGenerator
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
}

// Extractor reads transactions from CSV-like files.
type Extractor struct {
	ids    extractor.IDGenerator
	comma  rune
	logger *slog.Logger
}

// New creates a new tabular extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Comma == 0 {
		cfg.Comma = ','
	}

	return &Extractor{
		ids:    extractor.OrRandom(cfg.IDs),
		comma:  cfg.Comma,
		logger: logger,
	}
}

// Name returns the extractor name.
func (e *Extractor) Name() string { return Name }

// Extract opens the file at path and parses it.
func (e *Extractor) Extract(ctx context.Context, path string) ([]api.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening tabular source")
	}
	defer f.Close()

	return e.Parse(ctx, f)
}

// columns maps roles to column indexes; -1 means absent.
type columns struct {
	date, merchant, amount, category int
}

func detectColumns(header []string) columns {
	cols := columns{date: -1, merchant: -1, amount: -1, category: -1}

	for i, h := range header {
		switch classify(h) {
		case roleDate:
			cols.date = i
		case roleMerchant:
			cols.merchant = i
		case roleAmount:
			cols.amount = i
		case roleCategory:
			cols.category = i
		}
	}
	return cols
}

func classify(header string) role {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(h, kw) {
				return rk.role
			}
		}
	}
	return roleNone
}

// Parse reads a header row followed by data rows.
// Rows missing a required cell are skipped; the rest of the document still parses.
func (e *Extractor) Parse(ctx context.Context, r io.Reader) ([]api.Transaction, error) {
	cr := csv.NewReader(r)
	cr.Comma = e.comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, extractor.ErrEmptyDocument
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := detectColumns(header)
	switch {
	case cols.date < 0:
		return nil, errors.Errorf("no date column in header %q", header)
	case cols.merchant < 0:
		return nil, errors.Errorf("no payee, merchant or description column in header %q", header)
	case cols.amount < 0:
		return nil, errors.Errorf("no amount column in header %q", header)
	}
	required := max(cols.date, cols.merchant, cols.amount)

	var txns []api.Transaction
	skipped := 0
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			e.logger.Debug("skipping unreadable row", "line", line, "error", err)
			skipped++
			continue
		}
		if len(rec) <= required {
			e.logger.Debug("skipping row with missing columns", "line", line, "fields", len(rec))
			skipped++
			continue
		}

		txns = append(txns, e.rowToTransaction(rec, cols))
	}

	e.logger.Info("parsed tabular source", "transactions", len(txns), "skipped", skipped)
	return txns, nil
}

func (e *Extractor) rowToTransaction(rec []string, cols columns) api.Transaction {
	raw := strings.TrimSpace(rec[cols.merchant])

	txn := extractor.NewDraft(
		e.ids,
		normalize.ParseDate(rec[cols.date]),
		normalize.ExtractMerchant(raw),
		raw,
		normalize.ParseAmount(rec[cols.amount]),
	)

	if cols.category >= 0 && cols.category < len(rec) {
		if cat := strings.TrimSpace(rec[cols.category]); cat != "" {
			txn.Category = cat
			txn.Confidence = api.ConfidenceAuthoritative
		}
	}
	return txn
}
