// Package postgres provides a PostgreSQL api.Store for shared or server deployments.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/store"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL store configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// DSN, when set, is used as the connection string and the fields above are ignored.
	DSN string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int

	// ConnectAttempts is how many times the startup ping is tried.
	ConnectAttempts uint
	// ConnectDelay is the initial wait between startup pings.
	ConnectDelay time.Duration
}

// Store is a PostgreSQL-backed api.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL, waits for it to answer and applies the schema.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectDelay == 0 {
		cfg.ConnectDelay = 500 * time.Millisecond
	}

	connStr := cfg.DSN
	if connStr == "" {
		connStr = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		},
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database not ready, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	s := &Store{
		pool:   pool,
		logger: logger.With("component", "postgres"),
	}

	if err := s.runMigrations(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	s.logger.Info("running database migrations")

	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	s.logger.Info("migrations completed successfully")
	return nil
}

// Upsert inserts txn or refreshes the stored row with the same id.
// The stored category only yields to an incoming one of equal or higher confidence.
func (s *Store) Upsert(ctx context.Context, txn api.Transaction) error {
	if txn.Category == "" {
		txn.Category = api.Uncategorized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, date, merchant, description, amount, category, confidence)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			merchant = EXCLUDED.merchant,
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			category = CASE WHEN EXCLUDED.confidence >= transactions.confidence
				THEN EXCLUDED.category ELSE transactions.category END,
			confidence = GREATEST(transactions.confidence, EXCLUDED.confidence),
			updated_at = NOW()
	`,
		txn.ID, txn.Date, txn.Merchant, txn.Description,
		txn.Amount.StringFixed(2), txn.Category, txn.Confidence,
	); err != nil {
		return fmt.Errorf("upserting transaction %s: %w", txn.ID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO categories (name)
		SELECT category FROM transactions WHERE id = $1
		ON CONFLICT (name) DO NOTHING
	`, txn.ID); err != nil {
		return fmt.Errorf("registering category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// predicates accumulates AND-ed conditions with numbered placeholders.
type predicates struct {
	clauses []string
	args    []any
}

func newPredicates(f api.Filter, extra ...string) *predicates {
	p := &predicates{clauses: append([]string(nil), extra...)}
	if f.Start != "" {
		p.add("date >= ", f.Start)
	}
	if f.End != "" {
		p.add("date <= ", f.End)
	}
	if f.Category != "" {
		p.add("category = ", f.Category)
	}
	return p
}

func (p *predicates) add(expr string, v any) {
	p.args = append(p.args, v)
	p.clauses = append(p.clauses, fmt.Sprintf("%s$%d", expr, len(p.args)))
}

func (p *predicates) String() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// Query returns transactions matching f, newest date first.
func (s *Store) Query(ctx context.Context, f api.Filter) ([]api.Transaction, error) {
	p := newPredicates(f)
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, merchant, description, amount::text, category, confidence, created_at
		FROM transactions`+p.String()+`
		ORDER BY date DESC, id ASC`, p.args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	txns := []api.Transaction{}
	for rows.Next() {
		var (
			txn    api.Transaction
			amount string
		)
		if err := rows.Scan(&txn.ID, &txn.Date, &txn.Merchant, &txn.Description,
			&amount, &txn.Category, &txn.Confidence, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if txn.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// Update applies patch to the transaction with the given id.
func (s *Store) Update(ctx context.Context, id string, patch api.Patch) error {
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Date != nil {
		set("date", *patch.Date)
	}
	if patch.Merchant != nil {
		set("merchant", *patch.Merchant)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Amount != nil {
		args = append(args, patch.Amount.StringFixed(2))
		sets = append(sets, fmt.Sprintf("amount = $%d::numeric", len(args)))
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Confidence != nil {
		set("confidence", *patch.Confidence)
	}

	if len(sets) == 0 {
		var one int
		err := s.pool.QueryRow(ctx, `SELECT 1 FROM transactions WHERE id = $1`, id).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	args = append(args, id)
	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE transactions SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if patch.Category != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			*patch.Category); err != nil {
			return fmt.Errorf("registering category: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete permanently removes a transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AggregateByCategory sums absolute outflows per category between start and end inclusive.
func (s *Store) AggregateByCategory(ctx context.Context, start, end string) ([]api.CategoryTotal, error) {
	p := newPredicates(api.Filter{Start: start, End: end}, "amount < 0")
	rows, err := s.pool.Query(ctx, `
		SELECT category, SUM(ABS(amount))::text
		FROM transactions`+p.String()+`
		GROUP BY category
		ORDER BY SUM(ABS(amount)) DESC, category ASC`, p.args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating by category: %w", err)
	}
	defer rows.Close()

	totals := []api.CategoryTotal{}
	for rows.Next() {
		var name, total string
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scanning category total: %w", err)
		}
		d, err := parseDecimal(total)
		if err != nil {
			return nil, err
		}
		totals = append(totals, api.CategoryTotal{Name: name, Total: d})
	}
	return totals, rows.Err()
}

// AggregateByMonthAndCategory returns the dense month by category outflow grid.
func (s *Store) AggregateByMonthAndCategory(ctx context.Context, start, end string) (api.MonthlyBreakdown, error) {
	p := newPredicates(api.Filter{Start: start, End: end}, "amount < 0")
	rows, err := s.pool.Query(ctx, `
		SELECT substr(date, 1, 7) AS month, category, SUM(ABS(amount))::text
		FROM transactions`+p.String()+`
		GROUP BY month, category`, p.args...)
	if err != nil {
		return api.MonthlyBreakdown{}, fmt.Errorf("aggregating by month: %w", err)
	}
	defer rows.Close()

	var cells []store.Cell
	for rows.Next() {
		var (
			c     store.Cell
			total string
		)
		if err := rows.Scan(&c.Month, &c.Category, &total); err != nil {
			return api.MonthlyBreakdown{}, fmt.Errorf("scanning monthly total: %w", err)
		}
		if c.Total, err = parseDecimal(total); err != nil {
			return api.MonthlyBreakdown{}, err
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return api.MonthlyBreakdown{}, err
	}
	return store.Densify(cells), nil
}

// GetAllCategories returns the category vocabulary sorted by name.
func (s *Store) GetAllCategories(ctx context.Context) ([]api.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	cats := []api.Category{}
	for rows.Next() {
		var c api.Category
		if err := rows.Scan(&c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// RegisterCategory adds a category to the vocabulary. A non-empty color replaces the stored one.
func (s *Store) RegisterCategory(ctx context.Context, c api.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (name, color) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			color = CASE WHEN EXCLUDED.color <> '' THEN EXCLUDED.color ELSE categories.color END
	`, c.Name, c.Color)
	if err != nil {
		return fmt.Errorf("registering category %q: %w", c.Name, err)
	}
	return nil
}

// GetSetting returns the value stored under key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing setting %q: %w", key, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}
