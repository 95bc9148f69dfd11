// Package normalize converts raw source text into canonical transaction fields.
//
// Every function here is pure and never fails: malformed input resolves to a
// safe default so that one bad field never aborts an ingestion.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary amount such as "$1,234.56" or "(45.00)".
// Parenthesized values are negative. Unparseable input yields zero.
// The result is rounded half away from zero to whole cents.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("$", "", ",", "").Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	d = d.Round(2)
	if negative {
		return d.Neg()
	}
	return d
}
