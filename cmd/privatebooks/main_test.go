package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcoatwright/privatebooks/pkg/auth"
	"github.com/redcoatwright/privatebooks/pkg/logging"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PRIVATEBOOKS_STORE", "sqlite")
	t.Setenv("PRIVATEBOOKS_STORE_CONFIG", "")
	t.Setenv("PRIVATEBOOKS_RULES_FILE", "")
	t.Setenv("PRIVATEBOOKS_PASSWORD", "")
	t.Setenv("PRIVATEBOOKS_DB_PATH", filepath.Join(dir, "books.db"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	registry, err := newRegistry()
	require.NoError(t, err)

	cmd := newRootCommand(registry, logging.Discard())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "bank.csv")
	body := "Date,Description,Amount\n" +
		"2024-01-03,SPOTIFY USA,-9.99\n" +
		"2024-01-04,CORNER BAKERY,-4.50\n" +
		"2024-01-05,ACME PAYROLL,1500.00\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestIngestListUpdate(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "ingest", writeCSV(t, dir))
	require.NoError(t, err)
	res := decode(t, out)
	assert.Equal(t, true, res["success"])
	assert.EqualValues(t, 3, res["count"])

	out, err = execute(t, "list", "--category", "Income")
	require.NoError(t, err)
	res = decode(t, out)
	require.EqualValues(t, 1, res["total"])
	id := res["transactions"].([]any)[0].(map[string]any)["id"].(string)

	out, err = execute(t, "update", id, "--category", "Salary")
	require.NoError(t, err)
	assert.Equal(t, "updated "+id, decode(t, out)["message"])

	out, err = execute(t, "list", "--category", "Salary")
	require.NoError(t, err)
	txn := decode(t, out)["transactions"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, txn["confidence"])

	out, err = execute(t, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, `"Salary"`)
}

func TestUpdate_BadAmount(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "update", "txn_1", "--amount", "ten")
	require.Error(t, err)
	res := decode(t, out)
	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["error"], `amount "ten" is not a number`)
}

func TestDelete_NotFound(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "delete", "txn_missing")
	require.Error(t, err)
	assert.Equal(t, "transaction not found", decode(t, out)["error"])
}

func TestReports(t *testing.T) {
	dir := setupEnv(t)
	_, err := execute(t, "ingest", writeCSV(t, dir))
	require.NoError(t, err)

	out, err := execute(t, "summary", "--start", "2024-01-01", "--end", "2024-01-31")
	require.NoError(t, err)
	sum := decode(t, out)["summary"].(map[string]any)
	assert.Equal(t, "14.49", sum["totalSpending"])
	assert.Equal(t, "1500", sum["totalIncome"])

	out, err = execute(t, "breakdown")
	require.NoError(t, err)
	assert.Len(t, decode(t, out)["categories"], 2)

	out, err = execute(t, "monthly")
	require.NoError(t, err)
	assert.Equal(t, []any{"2024-01"}, decode(t, out)["months"])

	out, err = execute(t, "trends", "--months", "2")
	require.NoError(t, err)
	assert.Len(t, decode(t, out)["months"], 2)
}

func TestPassword(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "password", "set", "swordfish-42")
	require.NoError(t, err)

	out, err := execute(t, "list")
	require.ErrorIs(t, err, auth.ErrInvalidPassword)
	assert.Equal(t, false, decode(t, out)["success"])

	_, err = execute(t, "list", "--password", "swordfish-42")
	require.NoError(t, err)

	t.Setenv("PRIVATEBOOKS_PASSWORD", "swordfish-42")
	_, err = execute(t, "list")
	require.NoError(t, err)

	_, err = execute(t, "password", "clear")
	require.NoError(t, err)

	t.Setenv("PRIVATEBOOKS_PASSWORD", "")
	_, err = execute(t, "list")
	require.NoError(t, err)
}

func TestStatus(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Connectivity: ✓ Connected")
	assert.Contains(t, out, "tabular (.csv)")
	assert.Contains(t, out, "Status: ✓ Ready to run")

	out, err = execute(t, "status", "--config", "/does/not/exist.json")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Not found")
}
