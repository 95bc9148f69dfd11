package categorizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcoatwright/privatebooks/pkg/api"
)

func txn(merchant, description, amount string) api.Transaction {
	return api.Transaction{
		Merchant:    merchant,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Category:    api.Uncategorized,
	}
}

func TestCategorize_DefaultRules(t *testing.T) {
	c := New(DefaultRules(), nil)

	tests := []struct {
		name     string
		txn      api.Transaction
		wantCat  string
		wantConf float64
	}{
		{"rule match", txn("OPENAI", "OPENAI *CHATGPT SUBSCR", "-20.00"), "AI Services", 0.9},
		{"case folded", txn("", "Netflix.com monthly", "-15.49"), "Entertainment", 0.9},
		{"multi word keyword", txn("", "AMAZON WEB SERVICES INVOICE", "-42.00"), "Cloud Services", 0.9},
		{"match in description only", txn("SQ", "SQ *REPUBLIC FITNESS", "-60.00"), "Health & Fitness", 0.9},
		{"income fallback", txn("ACME", "ACME PAYROLL", "1500.00"), api.Income, 0.8},
		{"rule beats income", txn("UBER", "UBER REFUND", "12.00"), "Transportation", 0.9},
		{"no match", txn("CORNER STORE", "CORNER STORE 123", "-4.00"), api.Uncategorized, 0.0},
		{"zero amount is not income", txn("MYSTERY", "MYSTERY", "0"), api.Uncategorized, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, conf := c.Categorize(tt.txn)
			assert.Equal(t, tt.wantCat, cat)
			assert.Equal(t, tt.wantConf, conf)
		})
	}
}

func TestCategorize_InsertionOrderWins(t *testing.T) {
	rules := []Rule{
		{Keyword: "amazon", Category: "Shopping"},
		{Keyword: "amazon web services", Category: "Cloud Services"},
	}
	cat, _ := New(rules, nil).Categorize(txn("", "AMAZON WEB SERVICES", "-1.00"))
	assert.Equal(t, "Shopping", cat)

	rules[0], rules[1] = rules[1], rules[0]
	cat, _ = New(rules, nil).Categorize(txn("", "AMAZON WEB SERVICES", "-1.00"))
	assert.Equal(t, "Cloud Services", cat)
}

func TestNew_SkipsBlankKeywords(t *testing.T) {
	c := New([]Rule{{Keyword: "  ", Category: "Nothing"}, {Keyword: "gym", Category: "Fitness"}}, nil)
	assert.Equal(t, 1, c.Rules())

	cat, _ := c.Categorize(txn("", "CORNER", "-1.00"))
	assert.Equal(t, api.Uncategorized, cat)
}

func TestTrain_IsNoop(t *testing.T) {
	c := New(DefaultRules(), nil)
	require.NoError(t, c.Train(context.Background(), []api.Transaction{txn("A", "A", "-1")}))

	cat, _ := c.Categorize(txn("A", "A", "-1"))
	assert.Equal(t, api.Uncategorized, cat)
}

func TestLoadRules(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "rules.yaml",
			content: `rules:
  - keyword: trader joe
    category: Groceries
  - keyword: shell
    category: Fuel
`,
		},
		{
			name:    "json",
			file:    "rules.json",
			content: `{"rules":[{"keyword":"trader joe","category":"Groceries"},{"keyword":"shell","category":"Fuel"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			rules, err := LoadRules(path)
			require.NoError(t, err)
			assert.Equal(t, []Rule{
				{Keyword: "trader joe", Category: "Groceries"},
				{Keyword: "shell", Category: "Fuel"},
			}, rules)
		})
	}
}

func TestLoadRules_Errors(t *testing.T) {
	dir := t.TempDir()

	blank := filepath.Join(dir, "blank.yaml")
	require.NoError(t, os.WriteFile(blank, []byte("rules:\n  - keyword: \"\"\n    category: X\n"), 0o600))
	_, err := LoadRules(blank)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword is required")

	_, err = LoadRules(filepath.Join(dir, "rules.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported rules file type")

	_, err = LoadRules(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
