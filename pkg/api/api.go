// Package api defines the core interfaces and data structures for privatebooks.
package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Uncategorized is the category of a transaction nothing has classified yet.
const Uncategorized = "Uncategorized"

// Income is assigned to unmatched inflows.
const Income = "Income"

// Confidence levels. They order trust; they are not probabilities.
const (
	ConfidenceNone   = 0.0
	ConfidenceIncome = 0.8
	ConfidenceRule   = 0.9
	// ConfidenceAuthoritative marks categories taken from the source or corrected by the user.
	ConfidenceAuthoritative = 1.0
)

// Transaction is a single normalized ledger entry.
type Transaction struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Merchant    string `json:"merchant"`
	Description string `json:"description"`
	// Amount is negative for outflows and positive for inflows. Stores keep
	// whole cents.
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"created_at,omitzero"`
}

// IsUncategorized reports whether nothing has assigned a category yet.
func (t Transaction) IsUncategorized() bool {
	return t.Category == "" || t.Category == Uncategorized
}

// Category is an entry of the category vocabulary.
type Category struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Filter restricts a transaction query. Empty fields are ignored and the rest are combined with AND.
type Filter struct {
	Start    string `json:"start_date,omitempty"`
	End      string `json:"end_date,omitempty"`
	Category string `json:"category,omitempty"`
}

// Patch is a field-level update. Nil fields are left untouched.
type Patch struct {
	Date        *string          `json:"date,omitempty"`
	Merchant    *string          `json:"merchant,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Confidence  *float64         `json:"confidence,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.Merchant == nil && p.Description == nil &&
		p.Amount == nil && p.Category == nil && p.Confidence == nil
}

// CategoryTotal is the absolute outflow of one category.
type CategoryTotal struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"value"`
}

// MonthlyBreakdown is a dense month x category grid of outflows.
// Every month in Months has an entry for every category in Categories.
type MonthlyBreakdown struct {
	Months     []string                              `json:"months"`
	Categories []string                              `json:"categories"`
	Totals     map[string]map[string]decimal.Decimal `json:"totals"`
}

// MonthTotal is the outflow of a single calendar month (YYYY-MM).
type MonthTotal struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// Summary holds spending analytics over a date range.
type Summary struct {
	TotalSpending    decimal.Decimal `json:"totalSpending"`
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	NetCashFlow      decimal.Decimal `json:"netCashFlow"`
	TransactionCount int             `json:"transactionCount"`
	TopCategory      string          `json:"topCategory,omitempty"`
}

// Extractor turns a source document into draft transactions.
// Implementations must release the document before returning.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, path string) ([]Transaction, error)
}

// Store is the durable transaction collection.
type Store interface {
	// Upsert inserts or replaces a transaction by ID and registers its category.
	Upsert(ctx context.Context, txn Transaction) error
	// Query returns matching transactions, newest date first.
	Query(ctx context.Context, filter Filter) ([]Transaction, error)
	// Update applies a field patch exactly as given.
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	// AggregateByCategory sums absolute outflows per category, largest first.
	AggregateByCategory(ctx context.Context, start, end string) ([]CategoryTotal, error)
	AggregateByMonthAndCategory(ctx context.Context, start, end string) (MonthlyBreakdown, error)
	GetAllCategories(ctx context.Context) ([]Category, error)
	RegisterCategory(ctx context.Context, category Category) error
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}
