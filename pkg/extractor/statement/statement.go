// Package statement implements an Extractor for free-text statement dumps.
//
// Statements are scanned line by line. A line is a transaction when it carries
// both a date-like token and a decimal amount; everything else is noise.
package statement

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor"
	"github.com/redcoatwright/privatebooks/pkg/normalize"
)

// Name identifies this extractor in the plugin registry.
const Name = "statement"

const (
	descriptionLen = 50
	merchantLen    = 30
)

var (
	hasDateRe   = regexp.MustCompile(`\d{1,2}/\d{1,2}`)
	hasAmountRe = regexp.MustCompile(`[\d,]+\.\d{2}`)
	dateRe      = regexp.MustCompile(`(\d{1,2}/\d{1,2}(?:/\d{2,4})?)`)
	amountRe    = regexp.MustCompile(`(-?[\d,]+\.\d{2})`)
)

// Config holds configuration for the statement extractor.
type Config struct {
	// IDs mints transaction ids. Defaults to extractor.RandomID.
	IDs extractor.IDGenerator
}

// Extractor reads transactions from PDF or plain-text statements.
type Extractor struct {
	ids    extractor.IDGenerator
	logger *slog.Logger
}

// New creates a new statement extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ids:    extractor.OrRandom(cfg.IDs),
		logger: logger,
	}
}

// Name returns the extractor name.
func (e *Extractor) Name() string { return Name }

// Extract reads the statement at path. PDFs are read page by page; any other
// file is treated as plain text.
func (e *Extractor) Extract(ctx context.Context, path string) ([]api.Transaction, error) {
	var pages []string
	var err error
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err = ReadPDFPages(path)
	} else {
		pages, err = readTextFile(path)
	}
	if err != nil {
		return nil, err
	}

	var txns []api.Transaction
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found := e.ParseText(page)
		e.logger.Debug("parsed statement page", "page", i+1, "transactions", len(found))
		txns = append(txns, found...)
	}

	e.logger.Info("parsed statement", "pages", len(pages), "transactions", len(txns))
	return txns, nil
}

func readTextFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading statement")
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, extractor.ErrEmptyDocument
	}
	return []string{string(data)}, nil
}

// ReadPDFPages returns the text of every page, one row per line.
func ReadPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening pdf")
	}
	defer f.Close()

	var pages []string
	hasText := false
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, errors.Wrapf(err, "extracting text from page %d", i)
		}

		var sb strings.Builder
		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}

		text := sb.String()
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		pages = append(pages, text)
	}

	if !hasText {
		return nil, errors.Wrap(extractor.ErrEmptyDocument, "pdf has no extractable text")
	}
	return pages, nil
}

// ParseText extracts transactions from a block of statement text.
// Lines that do not qualify, or whose fields cannot be recovered, are dropped.
func (e *Extractor) ParseText(text string) []api.Transaction {
	var txns []api.Transaction

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !IsTransactionLine(line) {
			continue
		}
		if txn, ok := e.parseLine(line); ok {
			txns = append(txns, txn)
		}
	}
	if err := sc.Err(); err != nil {
		e.logger.Warn("statement scan stopped early", "error", err)
	}
	return txns
}

// IsTransactionLine reports whether line has both a date-like and an amount-like token.
func IsTransactionLine(line string) bool {
	return hasDateRe.MatchString(line) && hasAmountRe.MatchString(line)
}

func (e *Extractor) parseLine(line string) (api.Transaction, bool) {
	date := dateRe.FindString(line)
	if date == "" {
		return api.Transaction{}, false
	}

	// Statements put the amount last; earlier decimals are balances or references.
	amounts := amountRe.FindAllString(line, -1)
	if len(amounts) == 0 {
		return api.Transaction{}, false
	}

	description := normalize.Truncate(strings.TrimSpace(line), descriptionLen)
	return extractor.NewDraft(
		e.ids,
		normalize.ParseDate(date),
		normalize.Truncate(description, merchantLen),
		description,
		normalize.ParseAmount(amounts[len(amounts)-1]),
	), true
}
