package api

import "strings"

// Result is the envelope every public operation answers with.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK returns a successful envelope with an optional message.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// Failure returns a failed envelope carrying err as a single line of text.
func Failure(err error) Result {
	if err == nil {
		return Result{Success: false, Error: "unknown error"}
	}
	return Result{Success: false, Error: OneLine(err.Error())}
}

// OneLine collapses newlines and runs of whitespace into single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IngestResult is returned by document ingestion.
type IngestResult struct {
	Result
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
	// Failed counts transactions that could not be persisted.
	Failed int `json:"failed,omitempty"`
}

// TransactionsResult is returned by transaction queries.
type TransactionsResult struct {
	Result
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

// SummaryResult wraps a spending summary.
type SummaryResult struct {
	Result
	Summary *Summary `json:"summary,omitempty"`
}

// CategoriesResult lists the category vocabulary.
type CategoriesResult struct {
	Result
	Categories []Category `json:"categories"`
}

// BreakdownResult lists per-category outflows.
type BreakdownResult struct {
	Result
	Categories []CategoryTotal `json:"categories"`
}

// MonthlyResult wraps a month x category grid.
type MonthlyResult struct {
	Result
	MonthlyBreakdown
}

// TrendsResult lists trailing monthly outflows.
type TrendsResult struct {
	Result
	Months []MonthTotal `json:"months"`
}
