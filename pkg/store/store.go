// Package store holds the pieces shared by every api.Store backend.
package store

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

// ErrNotFound is returned when an operation targets a transaction id that does not exist.
var ErrNotFound = errors.New("transaction not found")

// ErrAmountOutOfRange is returned when a backend cannot represent an amount.
var ErrAmountOutOfRange = errors.New("amount out of range")

// Settings keys persisted by the credential gate.
const (
	SettingPasswordEnabled = "password_enabled"
	SettingPasswordHash    = "password_hash"
	SettingFirstLaunch     = "is_first_launch"
)

// Cell is one (month, category) outflow total as read from a backend.
type Cell struct {
	Month    string
	Category string
	Total    decimal.Decimal
}

// Densify turns sparse cells into a full month by category grid.
// Every month present gets an entry for every category seen anywhere, zero
// where the pair had no rows. Months and categories are sorted ascending.
func Densify(cells []Cell) api.MonthlyBreakdown {
	totals := make(map[string]map[string]decimal.Decimal)
	seen := make(map[string]struct{})

	for _, c := range cells {
		row, ok := totals[c.Month]
		if !ok {
			row = make(map[string]decimal.Decimal)
			totals[c.Month] = row
		}
		row[c.Category] = row[c.Category].Add(c.Total)
		seen[c.Category] = struct{}{}
	}

	months := make([]string, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	sort.Strings(months)

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, m := range months {
		for _, c := range categories {
			if _, ok := totals[m][c]; !ok {
				totals[m][c] = decimal.Zero
			}
		}
	}

	return api.MonthlyBreakdown{
		Months:     months,
		Categories: categories,
		Totals:     totals,
	}
}
