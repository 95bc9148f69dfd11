// Package server exposes the application service over a local JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redcoatwright/privatebooks/internal/service"
	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/pipeline"
)

const shutdownTimeout = 10 * time.Second

// Service is the set of operations the HTTP API serves.
type Service interface {
	ParseSource(ctx context.Context, path, format string) (pipeline.Result, error)
	GetTransactions(ctx context.Context, filter api.Filter) ([]api.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, patch api.Patch) error
	DeleteTransaction(ctx context.Context, id string) error
	GetSpendingSummary(ctx context.Context, start, end string) (api.Summary, error)
	GetCategorySummary(ctx context.Context, start, end string) ([]api.CategoryTotal, error)
	GetMonthlyCategorySummary(ctx context.Context, start, end string) (api.MonthlyBreakdown, error)
	GetTrends(ctx context.Context, months int, now time.Time) ([]api.MonthTotal, error)
	GetCategories(ctx context.Context) ([]api.Category, error)
	AddCategory(ctx context.Context, cat api.Category) error
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	logger *slog.Logger
	now    func() time.Time
}

// New creates a server.
func New(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:    svc,
		logger: logger.With("component", "http"),
		now:    time.Now,
	}
}

// Handler returns the routed handler wrapped in logging and recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /api/ingest", s.ingest)
	mux.HandleFunc("GET /api/transactions", s.listTransactions)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.updateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.deleteTransaction)
	mux.HandleFunc("GET /api/summary", s.summary)
	mux.HandleFunc("GET /api/categories", s.listCategories)
	mux.HandleFunc("POST /api/categories", s.addCategory)
	mux.HandleFunc("GET /api/categories/breakdown", s.breakdown)
	mux.HandleFunc("GET /api/categories/monthly", s.monthly)
	mux.HandleFunc("GET /api/trends", s.trends)

	return Recovery(s.logger)(Logger(s.logger)(mux))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		WriteError(w, http.StatusServiceUnavailable, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.OK("ok"))
}

type ingestRequest struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.ParseSource(r.Context(), req.Path, req.Format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.IngestResult{
		Result:       api.OK(fmt.Sprintf("imported %d transactions", res.Count())),
		Transactions: res.Transactions,
		Count:        res.Count(),
		Failed:       res.Failed,
	})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txns, err := s.svc.GetTransactions(r.Context(), api.Filter{
		Start:    q.Get("start"),
		End:      q.Get("end"),
		Category: q.Get("category"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.TransactionsResult{
		Result:       api.OK(""),
		Transactions: txns,
		Total:        len(txns),
	})
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch api.Patch
	if !s.decode(w, r, &patch) {
		return
	}
	id := r.PathValue("id")
	if err := s.svc.UpdateTransaction(r.Context(), id, patch); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.OK("updated "+id))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.DeleteTransaction(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.OK("deleted "+id))
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sum, err := s.svc.GetSpendingSummary(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.SummaryResult{Result: api.OK(""), Summary: &sum})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.GetCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.CategoriesResult{Result: api.OK(""), Categories: cats})
}

func (s *Server) addCategory(w http.ResponseWriter, r *http.Request) {
	var cat api.Category
	if !s.decode(w, r, &cat) {
		return
	}
	if err := s.svc.AddCategory(r.Context(), cat); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, api.OK("added "+cat.Name))
}

func (s *Server) breakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	totals, err := s.svc.GetCategorySummary(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.BreakdownResult{Result: api.OK(""), Categories: totals})
}

func (s *Server) monthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	grid, err := s.svc.GetMonthlyCategorySummary(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.MonthlyResult{Result: api.OK(""), MonthlyBreakdown: grid})
}

func (s *Server) trends(w http.ResponseWriter, r *http.Request) {
	months := 0
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: months must be a number", service.ErrInvalidInput))
			return
		}
		months = n
	}

	trend, err := s.svc.GetTrends(r.Context(), months, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.TrendsResult{Result: api.OK(""), Months: trend})
}

// decode reads a JSON body into v, answering 400 when it cannot.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, r, fmt.Errorf("%w: request body: %v", service.ErrInvalidInput, err))
		return false
	}
	return true
}
