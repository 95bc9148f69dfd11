// Package sqlite provides the default embedded api.Store backed by a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/store"
)

//go:embed 001_init.sql
var migrationSQL string

// Config holds the SQLite store configuration.
type Config struct {
	// Path is the database file. It is created if missing.
	Path string `json:"path"`

	// BusyTimeout is how long SQLite waits on a locked database before failing.
	BusyTimeout time.Duration `json:"busy_timeout"`

	// BusyRetries is how many times a write is attempted when the database stays busy.
	BusyRetries uint `json:"busy_retries"`
}

// Store is a SQLite-backed api.Store.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	retries uint
	now     func() time.Time
}

// New opens (or creates) the database at cfg.Path and applies the schema.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.BusyRetries == 0 {
		cfg.BusyRetries = 3
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")

	db, err := sql.Open("sqlite", "file:"+cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes every statement.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		logger:  logger.With("component", "sqlite"),
		retries: cfg.BusyRetries,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := s.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("opened SQLite store", "path", cfg.Path)
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	s.logger.Debug("running database migrations")
	if _, err := s.db.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

// withRetry runs fn again while SQLite reports the database as busy or locked.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.RetryIf(isBusy),
		retry.Attempts(s.retries),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("database busy, retrying", "attempt", n+1, "error", err)
		}),
	)
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// toCents converts d to whole cents, rounding half away from zero.
func toCents(d decimal.Decimal) (int64, error) {
	c := d.Shift(2).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s", store.ErrAmountOutOfRange, d)
	}
	return c.IntPart(), nil
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339Nano)
}

// Upsert inserts txn or refreshes the stored row with the same id.
// The stored category is only replaced when the incoming confidence is at
// least as high, so user corrections survive re-ingestion.
func (s *Store) Upsert(ctx context.Context, txn api.Transaction) error {
	if txn.Category == "" {
		txn.Category = api.Uncategorized
	}
	cents, err := toCents(txn.Amount)
	if err != nil {
		return fmt.Errorf("upserting transaction %s: %w", txn.ID, err)
	}

	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		now := s.timestamp()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, date, merchant, description, amount, category, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				date = excluded.date,
				merchant = excluded.merchant,
				description = excluded.description,
				amount = excluded.amount,
				category = CASE WHEN excluded.confidence >= transactions.confidence
					THEN excluded.category ELSE transactions.category END,
				confidence = MAX(transactions.confidence, excluded.confidence)
		`,
			txn.ID, txn.Date, txn.Merchant, txn.Description,
			cents, txn.Category, txn.Confidence, now,
		); err != nil {
			return fmt.Errorf("upserting transaction %s: %w", txn.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (name, color, created_at)
			SELECT category, '', ? FROM transactions WHERE id = ?
			ON CONFLICT (name) DO NOTHING
		`, now, txn.ID); err != nil {
			return fmt.Errorf("registering category: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// where builds an AND-ed predicate from the non-empty filter fields.
func where(f api.Filter, extra ...string) (string, []any) {
	clauses := append([]string(nil), extra...)
	var args []any
	if f.Start != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.Start)
	}
	if f.End != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.End)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query returns transactions matching f, newest date first.
func (s *Store) Query(ctx context.Context, f api.Filter) ([]api.Transaction, error) {
	cond, args := where(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, merchant, description, amount, category, confidence, created_at
		FROM transactions`+cond+`
		ORDER BY date DESC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	txns := []api.Transaction{}
	for rows.Next() {
		var (
			txn     api.Transaction
			cents   int64
			created string
		)
		if err := rows.Scan(&txn.ID, &txn.Date, &txn.Merchant, &txn.Description,
			&cents, &txn.Category, &txn.Confidence, &created); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txn.Amount = fromCents(cents)
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			txn.CreatedAt = t
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
		sets = append(sets, col+" = ?")
		args = append(args, v)
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
		cents, err := toCents(*patch.Amount)
		if err != nil {
			return fmt.Errorf("updating transaction %s: %w", id, err)
		}
		set("amount", cents)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Confidence != nil {
		set("confidence", *patch.Confidence)
	}

	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if len(sets) == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE id = ?`, id).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
			append(args, id)...)
		if err != nil {
			return fmt.Errorf("updating transaction %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("checking update of %s: %w", id, err)
		} else if n == 0 {
			return store.ErrNotFound
		}

		if patch.Category != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO categories (name, color, created_at) VALUES (?, '', ?)
				ON CONFLICT (name) DO NOTHING
			`, *patch.Category, s.timestamp()); err != nil {
				return fmt.Errorf("registering category: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// Delete permanently removes a transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting transaction %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking delete of %s: %w", id, err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// AggregateByCategory sums absolute outflows per category between start and end inclusive.
func (s *Store) AggregateByCategory(ctx context.Context, start, end string) ([]api.CategoryTotal, error) {
	cond, args := where(api.Filter{Start: start, End: end}, "amount < 0")
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(ABS(amount)) AS total
		FROM transactions`+cond+`
		GROUP BY category
		ORDER BY total DESC, category ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating by category: %w", err)
	}
	defer rows.Close()

	totals := []api.CategoryTotal{}
	for rows.Next() {
		var (
			name  string
			cents int64
		)
		if err := rows.Scan(&name, &cents); err != nil {
			return nil, fmt.Errorf("scanning category total: %w", err)
		}
		totals = append(totals, api.CategoryTotal{Name: name, Total: fromCents(cents)})
	}
	return totals, rows.Err()
}

// AggregateByMonthAndCategory returns the dense month by category outflow grid.
func (s *Store) AggregateByMonthAndCategory(ctx context.Context, start, end string) (api.MonthlyBreakdown, error) {
	cond, args := where(api.Filter{Start: start, End: end}, "amount < 0")
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, category, SUM(ABS(amount))
		FROM transactions`+cond+`
		GROUP BY month, category`, args...)
	if err != nil {
		return api.MonthlyBreakdown{}, fmt.Errorf("aggregating by month: %w", err)
	}
	defer rows.Close()

	var cells []store.Cell
	for rows.Next() {
		var (
			c     store.Cell
			cents int64
		)
		if err := rows.Scan(&c.Month, &c.Category, &cents); err != nil {
			return api.MonthlyBreakdown{}, fmt.Errorf("scanning monthly total: %w", err)
		}
		c.Total = fromCents(cents)
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return api.MonthlyBreakdown{}, err
	}
	return store.Densify(cells), nil
}

// GetAllCategories returns the category vocabulary sorted by name.
func (s *Store) GetAllCategories(ctx context.Context) ([]api.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, color FROM categories ORDER BY name`)
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

// RegisterCategory adds a category to the vocabulary. A non-empty color
// replaces the stored one.
func (s *Store) RegisterCategory(ctx context.Context, c api.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is required")
	}
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO categories (name, color, created_at) VALUES (?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET
				color = CASE WHEN excluded.color <> '' THEN excluded.color ELSE categories.color END
		`, c.Name, c.Color, s.timestamp())
		if err != nil {
			return fmt.Errorf("registering category %q: %w", c.Name, err)
		}
		return nil
	})
}

// GetSetting returns the value stored under key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, s.timestamp())
		if err != nil {
			return fmt.Errorf("writing setting %q: %w", key, err)
		}
		return nil
	})
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	s.logger.Info("closed SQLite store")
	return nil
}
