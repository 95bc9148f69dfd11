// Package service exposes the application operations shared by the CLI and the HTTP bridge.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/normalize"
	"github.com/redcoatwright/privatebooks/pkg/pipeline"
)

// DefaultTrendMonths is used when GetTrends is asked for a non-positive window.
const DefaultTrendMonths = 6

// ErrInvalidInput marks errors caused by the caller's arguments.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Ingester runs documents through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, path string) (pipeline.Result, error)
	IngestWith(ctx context.Context, extractor, path string) (pipeline.Result, error)
}

// Trainer receives user-corrected transactions.
type Trainer interface {
	Train(ctx context.Context, txns []api.Transaction) error
}

// Service implements the application operations over a pipeline and a store.
type Service struct {
	ingester Ingester
	store    api.Store
	trainer  Trainer
	logger   *slog.Logger
}

// New creates a service.
func New(ingester Ingester, store api.Store, trainer Trainer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ingester: ingester,
		store:    store,
		trainer:  trainer,
		logger:   logger.With("component", "service"),
	}
}

// ParseSource ingests the document at path. format optionally names the
// extractor to use instead of picking one from the extension.
func (s *Service) ParseSource(ctx context.Context, path, format string) (pipeline.Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return pipeline.Result{}, invalid("path is required")
	}
	if format = strings.TrimSpace(format); format != "" {
		return s.ingester.IngestWith(ctx, format, path)
	}
	return s.ingester.Ingest(ctx, path)
}

func checkRange(start, end string) error {
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(normalize.ISODate, d); err != nil {
			return invalid("date %q is not YYYY-MM-DD", d)
		}
	}
	if start != "" && end != "" && start > end {
		return invalid("start date %s is after end date %s", start, end)
	}
	return nil
}

// GetTransactions returns the transactions matching filter, newest first.
func (s *Service) GetTransactions(ctx context.Context, filter api.Filter) ([]api.Transaction, error) {
	if err := checkRange(filter.Start, filter.End); err != nil {
		return nil, err
	}
	return s.store.Query(ctx, filter)
}

// UpdateTransaction applies a user edit. Editing the category makes it
// authoritative, so later re-ingestion cannot overwrite it. A confidence
// supplied without a category is checked and then ignored.
func (s *Service) UpdateTransaction(ctx context.Context, id string, patch api.Patch) error {
	if strings.TrimSpace(id) == "" {
		return invalid("transaction id is required")
	}
	if c := patch.Confidence; c != nil && !(*c >= api.ConfidenceNone && *c <= api.ConfidenceAuthoritative) {
		return invalid("confidence %v is outside [0, 1]", *c)
	}
	// Confidence only moves with a category edit.
	patch.Confidence = nil
	if patch.Category != nil {
		cat := strings.TrimSpace(*patch.Category)
		if cat == "" {
			return invalid("category must not be empty")
		}
		conf := api.ConfidenceAuthoritative
		patch.Category = &cat
		patch.Confidence = &conf
	}
	if patch.Date != nil {
		if _, err := time.Parse(normalize.ISODate, *patch.Date); err != nil {
			return invalid("date %q is not YYYY-MM-DD", *patch.Date)
		}
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return err
	}
	s.logger.Info("updated transaction", "id", id)
	return nil
}

// DeleteTransaction permanently removes a transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("transaction id is required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted transaction", "id", id)
	return nil
}

// GetCategorySummary returns outflow totals per category, largest first.
func (s *Service) GetCategorySummary(ctx context.Context, start, end string) ([]api.CategoryTotal, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	return s.store.AggregateByCategory(ctx, start, end)
}

// GetMonthlyCategorySummary returns the dense month by category outflow grid.
func (s *Service) GetMonthlyCategorySummary(ctx context.Context, start, end string) (api.MonthlyBreakdown, error) {
	if err := checkRange(start, end); err != nil {
		return api.MonthlyBreakdown{}, err
	}
	return s.store.AggregateByMonthAndCategory(ctx, start, end)
}

// GetSpendingSummary totals spending and income over a date range.
func (s *Service) GetSpendingSummary(ctx context.Context, start, end string) (api.Summary, error) {
	txns, err := s.GetTransactions(ctx, api.Filter{Start: start, End: end})
	if err != nil {
		return api.Summary{}, err
	}

	sum := api.Summary{
		TotalSpending:    decimal.Zero,
		TotalIncome:      decimal.Zero,
		TransactionCount: len(txns),
	}
	byCategory := make(map[string]decimal.Decimal)
	for _, t := range txns {
		switch {
		case t.Amount.IsNegative():
			out := t.Amount.Abs()
			sum.TotalSpending = sum.TotalSpending.Add(out)
			byCategory[t.Category] = byCategory[t.Category].Add(out)
		case t.Amount.IsPositive():
			sum.TotalIncome = sum.TotalIncome.Add(t.Amount)
		}
	}
	sum.NetCashFlow = sum.TotalIncome.Sub(sum.TotalSpending)
	sum.TopCategory = topCategory(byCategory)
	return sum, nil
}

// topCategory picks the largest total; equal totals go to the smaller name.
func topCategory(totals map[string]decimal.Decimal) string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	top := ""
	best := decimal.Zero
	for _, name := range names {
		if top == "" || totals[name].GreaterThan(best) {
			top, best = name, totals[name]
		}
	}
	return top
}

// GetTrends returns outflow totals for the trailing months ending with the
// month of now, oldest first. Months without spending are reported as zero.
func (s *Service) GetTrends(ctx context.Context, months int, now time.Time) ([]api.MonthTotal, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}

	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := current.AddDate(0, -(months - 1), 0)
	start := first.Format(normalize.ISODate)
	end := current.AddDate(0, 1, -1).Format(normalize.ISODate)

	grid, err := s.store.AggregateByMonthAndCategory(ctx, start, end)
	if err != nil {
		return nil, err
	}

	trend := make([]api.MonthTotal, 0, months)
	for m := first; !m.After(current); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		total := decimal.Zero
		for _, v := range grid.Totals[key] {
			total = total.Add(v)
		}
		trend = append(trend, api.MonthTotal{Month: key, Total: total})
	}
	return trend, nil
}

// GetCategories returns the category vocabulary.
func (s *Service) GetCategories(ctx context.Context) ([]api.Category, error) {
	return s.store.GetAllCategories(ctx)
}

// AddCategory registers a category so it can be assigned before any transaction uses it.
func (s *Service) AddCategory(ctx context.Context, cat api.Category) error {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return invalid("category name is required")
	}
	return s.store.RegisterCategory(ctx, cat)
}

// Train hands every user-corrected transaction to the categorizer and
// returns how many were offered.
func (s *Service) Train(ctx context.Context) (int, error) {
	txns, err := s.store.Query(ctx, api.Filter{})
	if err != nil {
		return 0, err
	}

	var corrected []api.Transaction
	for _, t := range txns {
		if t.Confidence >= api.ConfidenceAuthoritative {
			corrected = append(corrected, t)
		}
	}
	if err := s.trainer.Train(ctx, corrected); err != nil {
		return 0, fmt.Errorf("training categorizer: %w", err)
	}
	return len(corrected), nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
