package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcoatwright/privatebooks/internal/service"
	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/logging"
	"github.com/redcoatwright/privatebooks/pkg/pipeline"
	"github.com/redcoatwright/privatebooks/pkg/store"
	"github.com/redcoatwright/privatebooks/pkg/store/sqlite"
)

type fakeService struct {
	Service

	err        error
	txns       []api.Transaction
	gotFilter  api.Filter
	gotPatch   api.Patch
	gotID      string
	gotMonths  int
	gotNow     time.Time
	gotIngest  [2]string
	categories []api.Category
}

func (f *fakeService) ParseSource(_ context.Context, path, format string) (pipeline.Result, error) {
	f.gotIngest = [2]string{path, format}
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	return pipeline.Result{Transactions: f.txns, Failed: 1}, nil
}

func (f *fakeService) GetTransactions(_ context.Context, filter api.Filter) ([]api.Transaction, error) {
	f.gotFilter = filter
	return f.txns, f.err
}

func (f *fakeService) UpdateTransaction(_ context.Context, id string, patch api.Patch) error {
	f.gotID, f.gotPatch = id, patch
	return f.err
}

func (f *fakeService) DeleteTransaction(_ context.Context, id string) error {
	f.gotID = id
	return f.err
}

func (f *fakeService) GetTrends(_ context.Context, months int, now time.Time) ([]api.MonthTotal, error) {
	f.gotMonths, f.gotNow = months, now
	return []api.MonthTotal{{Month: "2024-03", Total: decimal.NewFromInt(5)}}, f.err
}

func (f *fakeService) GetCategories(context.Context) ([]api.Category, error) {
	return f.categories, f.err
}

func (f *fakeService) AddCategory(_ context.Context, cat api.Category) error {
	f.categories = append(f.categories, cat)
	return f.err
}

func (f *fakeService) Ping(context.Context) error { return f.err }

func newTestServer(svc Service) *Server {
	s := New(svc, logging.Discard())
	s.now = func() time.Time { return time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestIngest(t *testing.T) {
	svc := &fakeService{txns: []api.Transaction{{ID: "txn_1", Amount: decimal.NewFromInt(-3)}}}
	rec, out := do(t, newTestServer(svc), http.MethodPost, "/api/ingest", `{"path":"/tmp/a.csv","format":"tabular"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 1, out["count"])
	assert.EqualValues(t, 1, out["failed"])
	assert.Equal(t, [2]string{"/tmp/a.csv", "tabular"}, svc.gotIngest)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"parse error", &pipeline.ParseError{Path: "a.pdf", Err: errors.New("no text")}, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("updating: %w", store.ErrNotFound), http.StatusNotFound},
		{"invalid input", fmt.Errorf("%w: bad date", service.ErrInvalidInput), http.StatusBadRequest},
		{"amount out of range", fmt.Errorf("upserting: %w", store.ErrAmountOutOfRange), http.StatusBadRequest},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec, out := do(t, newTestServer(svc), http.MethodPost, "/api/ingest", `{"path":"a.pdf"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, api.OneLine(tt.err.Error()), out["error"])
		})
	}
}

func TestUpdateTransaction_GuardsStoredValues(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.New(sqlite.Config{Path: filepath.Join(t.TempDir(), "books.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Upsert(ctx, api.Transaction{
		ID:         "txn_1",
		Date:       "2024-01-05",
		Amount:     decimal.NewFromInt(-4),
		Category:   "Food",
		Confidence: api.ConfidenceRule,
	}))
	s := newTestServer(service.New(nil, st, nil, logging.Discard()))

	rec, out := do(t, s, http.MethodPatch, "/api/transactions/txn_1", `{"confidence":7.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "confidence")

	rec, _ = do(t, s, http.MethodPatch, "/api/transactions/txn_1", `{"confidence":-3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPatch, "/api/transactions/txn_1", `{"confidence":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, out = do(t, s, http.MethodPatch, "/api/transactions/txn_1", `{"amount":"1e30"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "amount out of range")

	got, err := st.Query(ctx, api.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, api.ConfidenceRule, got[0].Confidence)
	assert.Equal(t, "Food", got[0].Category)
	assert.Equal(t, "-4.00", got[0].Amount.StringFixed(2))
}

func TestBadBody(t *testing.T) {
	rec, out := do(t, newTestServer(&fakeService{}), http.MethodPatch, "/api/transactions/txn_1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "request body")
}

func TestTransactions(t *testing.T) {
	svc := &fakeService{txns: []api.Transaction{{ID: "txn_1"}, {ID: "txn_2"}}}
	s := newTestServer(svc)

	rec, out := do(t, s, http.MethodGet, "/api/transactions?start=2024-01-01&category=Food", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, out["total"])
	assert.Equal(t, api.Filter{Start: "2024-01-01", Category: "Food"}, svc.gotFilter)

	rec, _ = do(t, s, http.MethodPatch, "/api/transactions/txn_2", `{"category":"Coffee"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "txn_2", svc.gotID)
	require.NotNil(t, svc.gotPatch.Category)
	assert.Equal(t, "Coffee", *svc.gotPatch.Category)

	rec, out = do(t, s, http.MethodDelete, "/api/transactions/txn_1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deleted txn_1", out["message"])
}

func TestTrends(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	rec, out := do(t, s, http.MethodGet, "/api/trends?months=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.gotMonths)
	assert.Equal(t, 2024, svc.gotNow.Year())
	assert.Len(t, out["months"], 1)

	rec, _ = do(t, s, http.MethodGet, "/api/trends?months=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategories(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	rec, _ := do(t, s, http.MethodPost, "/api/categories", `{"name":"Pets","color":"#0f0"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, out := do(t, s, http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{map[string]any{"name": "Pets", "color": "#0f0"}}, out["categories"])
}

func TestHealth(t *testing.T) {
	rec, out := do(t, newTestServer(&fakeService{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])

	rec, _ = do(t, newTestServer(&fakeService{err: errors.New("closed")}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecovery(t *testing.T) {
	// Methods the fake does not override hit the nil embedded interface and panic.
	rec, out := do(t, newTestServer(&fakeService{}), http.MethodGet, "/api/summary", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", out["error"])
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(&fakeService{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
