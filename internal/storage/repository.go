package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ ports.Store = (*SQLiteRepository)(nil)

// SQLiteRepository stores the ledger in a single SQLite file. Instants are
// kept as Unix nanoseconds and read back in loc; amounts are decimal text.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Begin starts an immediate transaction, taking the write lock up front.
func (r *SQLiteRepository) Begin(ctx context.Context) (ports.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (r *SQLiteRepository) Transactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	return selectTransactions(ctx, r.db, r.loc, f)
}

func (r *SQLiteRepository) Categories(ctx context.Context, f core.CategoryFilter) ([]core.Category, error) {
	var (
		where []string
		args  []any
	)
	if f.ID != nil {
		where = append(where, "id = ?")
		args = append(args, f.ID.String())
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Name != "" {
		where = append(where, "name_key = ?")
		args = append(args, nameKey(f.Name))
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, icon, color, kind FROM categories"+whereClause(where)+" ORDER BY kind, name", args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c    core.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Subscriptions(ctx context.Context, f core.SubscriptionFilter) ([]core.RecurringSubscription, error) {
	var (
		where []string
		args  []any
	)
	if f.ID != nil {
		where = append(where, "id = ?")
		args = append(args, f.ID.String())
	}
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}
	if f.DueBy != nil {
		where = append(where, "next_due <= ?")
		args = append(args, clampUnix(*f.DueBy))
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, amount, frequency, start_date, last_materialized,
		next_due, active, kind, notes, category_id FROM subscriptions`+whereClause(where)+" ORDER BY next_due, name", args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringSubscription
	for rows.Next() {
		var (
			s           core.RecurringSubscription
			amount      string
			freq, kind  string
			start, next int64
			last        sql.NullInt64
			active      int64
			categoryID  sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &amount, &freq, &start, &last, &next, &active, &kind, &s.Notes, &categoryID); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if s.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("subscription %s amount: %w", s.ID, err)
		}
		s.Frequency = core.Frequency(freq)
		s.Kind = core.Kind(kind)
		s.StartDate = fromUnix(start, r.loc)
		s.NextDue = fromUnix(next, r.loc)
		s.Active = active == 1
		if last.Valid {
			t := fromUnix(last.Int64, r.loc)
			s.LastMaterialized = &t
		}
		if s.CategoryID, err = parseNullID(categoryID); err != nil {
			return nil, fmt.Errorf("subscription %s category: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MonthlyBudget(ctx context.Context, month core.Month) (core.MonthlyBudget, bool, error) {
	b := core.MonthlyBudget{Month: core.NewMonth(month.Start().Year(), month.Start().Month(), r.loc)}

	var total string
	err := r.db.QueryRowContext(ctx, "SELECT id, total FROM monthly_budgets WHERE month = ?", month.String()).
		Scan(&b.ID, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyBudget{}, false, nil
	}
	if err != nil {
		return core.MonthlyBudget{}, false, fmt.Errorf("query monthly budget %s: %w", month, err)
	}
	if b.Total, err = decimal.NewFromString(total); err != nil {
		return core.MonthlyBudget{}, false, fmt.Errorf("monthly budget %s total: %w", month, err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, category_id, allocated FROM category_budgets WHERE monthly_budget_id = ? ORDER BY rowid", b.ID.String())
	if err != nil {
		return core.MonthlyBudget{}, false, fmt.Errorf("query category budgets %s: %w", month, err)
	}
	defer rows.Close()

	for rows.Next() {
		a := core.CategoryBudget{MonthlyBudgetID: b.ID, Month: b.Month}
		var allocated string
		if err := rows.Scan(&a.ID, &a.CategoryID, &allocated); err != nil {
			return core.MonthlyBudget{}, false, fmt.Errorf("scan category budget: %w", err)
		}
		if a.Allocated, err = decimal.NewFromString(allocated); err != nil {
			return core.MonthlyBudget{}, false, fmt.Errorf("category budget %s allocated: %w", a.ID, err)
		}
		b.Allocations = append(b.Allocations, a)
	}
	if err := rows.Err(); err != nil {
		return core.MonthlyBudget{}, false, err
	}
	return b, true, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback is safe to defer after Commit.
func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (t *sqliteTx) InsertTransaction(ctx context.Context, tr core.Transaction) error {
	date, err := toUnix(tr.Date)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO transactions
		(id, name, date, amount, kind, notes, category_id, subscription_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID.String(), tr.Name, date, tr.Amount.String(), string(tr.Kind), tr.Notes,
		nullID(tr.CategoryID), nullID(tr.SubscriptionID))
	if isForeignKeyViolation(err) {
		return fmt.Errorf("insert transaction %s: category or subscription: %w", tr.ID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateTransactionCategory(ctx context.Context, id uuid.UUID, categoryID *uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE transactions SET category_id = ? WHERE id = ?", nullID(categoryID), id.String())
	if isForeignKeyViolation(err) {
		return fmt.Errorf("update transaction category: category %s: %w", *categoryID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update transaction category: %w", err)
	}
	return expectAffected(res, "transaction", id)
}

func (t *sqliteTx) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectAffected(res, "transaction", id)
}

func (t *sqliteTx) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO categories (id, name, name_key, icon, color, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), strings.TrimSpace(c.Name), nameKey(c.Name), c.Icon, c.Color, string(c.Kind), time.Now().UnixNano())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s (%s)", core.ErrDuplicateCategory, c.Name, c.Kind)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	steps := []struct {
		op    string
		query string
	}{
		{"delete category transactions", "DELETE FROM transactions WHERE category_id = ?"},
		{"delete category allocations", "DELETE FROM category_budgets WHERE category_id = ?"},
		{"detach category subscriptions", "UPDATE subscriptions SET category_id = NULL WHERE category_id = ?"},
	}
	for _, s := range steps {
		if _, err := t.tx.ExecContext(ctx, s.query, id.String()); err != nil {
			return fmt.Errorf("%s: %w", s.op, err)
		}
	}
	res, err := t.tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectAffected(res, "category", id)
}

func (t *sqliteTx) InsertSubscription(ctx context.Context, s core.RecurringSubscription) error {
	start, err := toUnix(s.StartDate)
	if err != nil {
		return fmt.Errorf("insert subscription start: %w", err)
	}
	next, err := toUnix(s.NextDue)
	if err != nil {
		return fmt.Errorf("insert subscription next due: %w", err)
	}
	last, err := nullTime(s.LastMaterialized)
	if err != nil {
		return fmt.Errorf("insert subscription last materialized: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO subscriptions
		(id, name, amount, frequency, start_date, last_materialized, next_due, active, kind, notes, category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Name, s.Amount.String(), string(s.Frequency), start,
		last, next, boolInt(s.Active), string(s.Kind), s.Notes, nullID(s.CategoryID))
	if isForeignKeyViolation(err) {
		return fmt.Errorf("insert subscription %s: category: %w", s.ID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (t *sqliteTx) SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool, expectedNextDue, nextDue time.Time) (bool, error) {
	next, err := toUnix(nextDue)
	if err != nil {
		return false, fmt.Errorf("set subscription active: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		"UPDATE subscriptions SET active = ?, next_due = ? WHERE id = ? AND next_due = ? AND active = ?",
		boolInt(active), next, id.String(), clampUnix(expectedNextDue), boolInt(!active))
	if err != nil {
		return false, fmt.Errorf("set subscription active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set subscription active rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	var exists int
	err = t.tx.QueryRowContext(ctx, "SELECT 1 FROM subscriptions WHERE id = ?", id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("look up subscription: %w", err)
	}
	return false, nil
}

func (t *sqliteTx) AdvanceSubscription(ctx context.Context, id uuid.UUID, expectedNextDue, lastMaterialized, nextDue time.Time) (bool, error) {
	last, err := toUnix(lastMaterialized)
	if err != nil {
		return false, fmt.Errorf("advance subscription: %w", err)
	}
	next, err := toUnix(nextDue)
	if err != nil {
		return false, fmt.Errorf("advance subscription: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		"UPDATE subscriptions SET last_materialized = ?, next_due = ? WHERE id = ? AND next_due = ? AND active = 1",
		last, next, id.String(), clampUnix(expectedNextDue))
	if err != nil {
		return false, fmt.Errorf("advance subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance subscription rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *sqliteTx) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, "UPDATE transactions SET subscription_id = NULL WHERE subscription_id = ?", id.String()); err != nil {
		return fmt.Errorf("detach subscription transactions: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return expectAffected(res, "subscription", id)
}

func (t *sqliteTx) SaveMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	month := b.Month.String()

	var existing uuid.UUID
	err := t.tx.QueryRowContext(ctx, "SELECT id FROM monthly_budgets WHERE month = ?", month).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if _, err := t.tx.ExecContext(ctx, "INSERT INTO monthly_budgets (id, month, total) VALUES (?, ?, ?)",
			b.ID.String(), month, b.Total.String()); err != nil {
			return core.MonthlyBudget{}, fmt.Errorf("insert monthly budget: %w", err)
		}
	case err != nil:
		return core.MonthlyBudget{}, fmt.Errorf("find monthly budget: %w", err)
	default:
		b.ID = existing
		if _, err := t.tx.ExecContext(ctx, "UPDATE monthly_budgets SET total = ? WHERE id = ?",
			b.Total.String(), b.ID.String()); err != nil {
			return core.MonthlyBudget{}, fmt.Errorf("update monthly budget: %w", err)
		}
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM category_budgets WHERE month = ?", month); err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("clear category budgets: %w", err)
	}

	allocations := make([]core.CategoryBudget, 0, len(b.Allocations))
	for _, a := range b.Allocations {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.MonthlyBudgetID = b.ID
		a.Month = b.Month
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO category_budgets
			(id, monthly_budget_id, category_id, month, allocated) VALUES (?, ?, ?, ?, ?)`,
			a.ID.String(), b.ID.String(), a.CategoryID.String(), month, a.Allocated.String()); err != nil {
			if isUniqueViolation(err) {
				return core.MonthlyBudget{}, fmt.Errorf("%w: %s", core.ErrDuplicateAllocation, a.CategoryID)
			}
			return core.MonthlyBudget{}, fmt.Errorf("insert category budget: %w", err)
		}
		allocations = append(allocations, a)
	}
	b.Allocations = allocations
	return b, nil
}

func (t *sqliteTx) DeleteMonthlyBudget(ctx context.Context, month core.Month) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM category_budgets WHERE month = ?", month.String()); err != nil {
		return fmt.Errorf("delete category budgets: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, "DELETE FROM monthly_budgets WHERE month = ?", month.String())
	if err != nil {
		return fmt.Errorf("delete monthly budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete monthly budget rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("monthly budget %s: %w", month, core.ErrNotFound)
	}
	return nil
}

func selectTransactions(ctx context.Context, q querier, loc *time.Location, f core.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.ID != nil {
		where = append(where, "id = ?")
		args = append(args, f.ID.String())
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, clampUnix(f.From))
	}
	if !f.Until.IsZero() {
		where = append(where, "date < ?")
		args = append(args, clampUnix(f.Until))
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID.String())
	}
	if f.SubscriptionID != nil {
		where = append(where, "subscription_id = ?")
		args = append(args, f.SubscriptionID.String())
	}

	rows, err := q.QueryContext(ctx, `SELECT id, name, date, amount, kind, notes, category_id, subscription_id
		FROM transactions`+whereClause(where)+" ORDER BY date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tr                      core.Transaction
			date                    int64
			amount, kind            string
			categoryID, subscriptID sql.NullString
		)
		if err := rows.Scan(&tr.ID, &tr.Name, &date, &amount, &kind, &tr.Notes, &categoryID, &subscriptID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tr.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", tr.ID, err)
		}
		tr.Date = fromUnix(date, loc)
		tr.Kind = core.Kind(kind)
		if tr.CategoryID, err = parseNullID(categoryID); err != nil {
			return nil, fmt.Errorf("transaction %s category: %w", tr.ID, err)
		}
		if tr.SubscriptionID, err = parseNullID(subscriptID); err != nil {
			return nil, fmt.Errorf("transaction %s subscription: %w", tr.ID, err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Instants are stored as Unix nanoseconds, which cover 1677 to 2262.
var (
	minInstant = time.Unix(0, math.MinInt64)
	maxInstant = time.Unix(0, math.MaxInt64)
)

func toUnix(t time.Time) (int64, error) {
	if t.Before(minInstant) || t.After(maxInstant) {
		return 0, fmt.Errorf("%w: %s", core.ErrDateOutOfRange, t.Format(time.RFC3339))
	}
	return t.UnixNano(), nil
}

// clampUnix is toUnix for query bounds, where saturating is harmless.
func clampUnix(t time.Time) int64 {
	switch {
	case t.Before(minInstant):
		return math.MinInt64
	case t.After(maxInstant):
		return math.MaxInt64
	}
	return t.UnixNano()
}

func fromUnix(n int64, loc *time.Location) time.Time {
	return time.Unix(0, n).In(loc)
}

func nullTime(t *time.Time) (any, error) {
	if t == nil {
		return nil, nil
	}
	return toUnix(*t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func expectAffected(res sql.Result, entity string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s rows affected: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
