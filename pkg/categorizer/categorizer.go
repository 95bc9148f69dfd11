// Package categorizer assigns categories to transactions using an ordered
// keyword rule table.
package categorizer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

// Rule maps a keyword found in a transaction's text to a category.
type Rule struct {
	Keyword  string `json:"keyword" koanf:"keyword"`
	Category string `json:"category" koanf:"category"`
}

type compiledRule struct {
	keyword  string
	category string
}

// Categorizer matches transactions against rules in insertion order.
// It is safe for concurrent use; the rule table is never modified after New.
type Categorizer struct {
	rules  []compiledRule
	logger *slog.Logger
}

// New creates a categorizer over rules. Rules are tried in the order given.
func New(rules []Rule, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}

	fold := cases.Fold()
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		kw := fold.String(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		compiled = append(compiled, compiledRule{keyword: kw, category: r.Category})
	}

	return &Categorizer{
		rules:  compiled,
		logger: logger.With("component", "categorizer"),
	}
}

// Rules returns the number of active rules.
func (c *Categorizer) Rules() int { return len(c.rules) }

// Categorize returns the category and confidence for txn.
//
// The first rule whose keyword appears in the merchant or description wins.
// Unmatched inflows fall back to Income; everything else is Uncategorized.
func (c *Categorizer) Categorize(txn api.Transaction) (string, float64) {
	text := cases.Fold().String(txn.Merchant + " " + txn.Description)

	for _, r := range c.rules {
		if strings.Contains(text, r.keyword) {
			return r.category, api.ConfidenceRule
		}
	}

	if txn.Amount.IsPositive() {
		return api.Income, api.ConfidenceIncome
	}
	return api.Uncategorized, api.ConfidenceNone
}

// Train receives user-corrected transactions. Rules are static, so it only
// records how many examples were offered.
func (c *Categorizer) Train(_ context.Context, txns []api.Transaction) error {
	c.logger.Debug("training requested", "examples", len(txns))
	return nil
}
