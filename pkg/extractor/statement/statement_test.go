package statement

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor"
)

const sampleStatement = `ACME BANK STATEMENT
Account Number: XXXX1234
Statement Period: Mar 01, 2024 to Mar 31, 2024

03/01 OPENING BALANCE 1,000.00
03/05 STARBUCKS SEATTLE WA      12.50     987.50
03/07/2024 NETFLIX.COM  -15.49
Total fees 0.00
Page 1 of 2
`

func newTestExtractor() *Extractor {
	return New(Config{IDs: extractor.SequentialIDs("")}, nil)
}

func TestIsTransactionLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"03/05 STARBUCKS 12.50", true},
		{"3/5/24 PAYROLL 1,500.00", true},
		{"Total fees 0.00", false},
		{"03/05 NO AMOUNT HERE", false},
		{"Page 1 of 2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransactionLine(tt.line))
		})
	}
}

func TestParseText(t *testing.T) {
	txns := newTestExtractor().ParseText(sampleStatement)
	require.Len(t, txns, 3)

	assert.Equal(t, "03/01", txns[0].Date)
	assert.Equal(t, "1000.00", txns[0].Amount.StringFixed(2))

	// Rightmost amount wins over the earlier one.
	assert.Equal(t, "987.50", txns[1].Amount.StringFixed(2))
	assert.Equal(t, "03/05 STARBUCKS SEATTLE WA", txns[1].Merchant)
	assert.True(t, strings.HasPrefix(txns[1].Description, "03/05 STARBUCKS SEATTLE WA"))

	assert.Equal(t, "2024-03-07", txns[2].Date)
	assert.Equal(t, "-15.49", txns[2].Amount.StringFixed(2))

	for i, txn := range txns {
		assert.Equal(t, api.Uncategorized, txn.Category)
		assert.Equal(t, 0.0, txn.Confidence)
		assert.LessOrEqual(t, len([]rune(txn.Description)), descriptionLen, "txn %d", i)
		assert.LessOrEqual(t, len([]rune(txn.Merchant)), merchantLen, "txn %d", i)
	}
}

func TestParseText_LongLineIsBounded(t *testing.T) {
	line := "04/02 " + strings.Repeat("VERY LONG MERCHANT NAME ", 5) + "99.99"
	txns := newTestExtractor().ParseText(line)
	require.Len(t, txns, 1)

	assert.Len(t, []rune(txns[0].Description), descriptionLen)
	assert.Equal(t, "99.99", txns[0].Amount.StringFixed(2))
}

func TestExtract_TextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleStatement), 0o600))

	txns, err := newTestExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, txns, 3)
	assert.Equal(t, "txn_0001", txns[0].ID)
}

func TestExtract_EmptyTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))

	_, err := newTestExtractor().Extract(context.Background(), path)
	assert.ErrorIs(t, err, extractor.ErrEmptyDocument)
}

func TestExtract_InvalidPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o600))

	_, err := newTestExtractor().Extract(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening pdf")
}

func TestExtract_NoTransactionLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("nothing to see here\n"), 0o600))

	txns, err := newTestExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, txns)
}
