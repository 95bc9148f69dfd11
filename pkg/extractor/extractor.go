// Package extractor holds what every source extractor shares: id minting and draft construction.
package extractor

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

// IDPrefix starts every generated transaction id.
const IDPrefix = "txn_"

// ErrEmptyDocument is returned when a source has no readable content at all.
var ErrEmptyDocument = errors.New("document has no readable content")

// IDGenerator mints transaction ids.
type IDGenerator func() string

// RandomID returns a random id such as "txn_9f1c0d...".
func RandomID() string {
	return IDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SequentialIDs returns a generator yielding txn_<prefix>0001, txn_<prefix>0002, ...
// It is safe for concurrent use and intended for deterministic tests.
func SequentialIDs(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%s%04d", IDPrefix, prefix, n.Add(1))
	}
}

// OrRandom returns ids, or RandomID when ids is nil.
func OrRandom(ids IDGenerator) IDGenerator {
	if ids == nil {
		return RandomID
	}
	return ids
}

// NewDraft builds an uncategorized transaction with a fresh id.
func NewDraft(ids IDGenerator, date, merchant, description string, amount decimal.Decimal) api.Transaction {
	return api.Transaction{
		ID:          OrRandom(ids)(),
		Date:        date,
		Merchant:    merchant,
		Description: description,
		Amount:      amount,
		Category:    api.Uncategorized,
		Confidence:  api.ConfidenceNone,
	}
}
