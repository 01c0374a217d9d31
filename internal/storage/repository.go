package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)
var _ RecurringPoster = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanDate and scanAmount never fail: malformed stored values become zero
// and are skipped by the aggregator.
func scanDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func scanAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

// Accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, name, currency) VALUES (?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, string(a.Currency))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite", "id", a.ID, "owner_id", a.OwnerID, "currency", a.Currency)
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, currency FROM accounts WHERE owner_id = ? ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var cur string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &cur); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Currency = core.CurrencyCode(cur)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, owner_id, name, kind) VALUES (?, ?, ?, ?)`,
		c.ID, nullable(c.OwnerID), c.Name, string(c.Kind))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(owner_id, ''), name, kind FROM categories
		 WHERE owner_id IS NULL OR owner_id = ? ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Transactions

const insertTransaction = `INSERT INTO transactions
	(id, owner_id, account_id, category_id, amount, currency, kind, tx_date, note)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execInsertTransaction(ctx context.Context, db execer, tx core.Transaction) error {
	_, err := db.ExecContext(ctx, insertTransaction,
		tx.ID, tx.OwnerID, tx.AccountID, tx.Category.Ptr(), tx.Amount.String(),
		string(tx.Currency), string(tx.Kind), tx.Date.String(), tx.Note)
	return err
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := execInsertTransaction(ctx, r.db, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"owner_id", tx.OwnerID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
		"kind", tx.Kind,
		"date", tx.Date.String())
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return checkAffected(res, "delete transaction")
}

// ListTransactions resolves category references against the categories
// table; ids without a matching row come back dangling.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.owner_id, t.account_id, t.category_id, c.id IS NOT NULL,
		       t.amount, t.currency, t.kind, t.tx_date, t.note
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id AND (c.owner_id IS NULL OR c.owner_id = t.owner_id)
		WHERE t.owner_id = ?
		ORDER BY t.tx_date DESC, t.id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                         core.Transaction
			cat                        sql.NullString
			known                      bool
			amount, cur, kind, txDate string
		)
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.AccountID, &cat, &known,
			&amount, &cur, &kind, &txDate, &tx.Note); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Category = resolveCategory(cat, known)
		tx.Amount = scanAmount(amount)
		tx.Currency = core.CurrencyCode(cur)
		tx.Kind = core.Kind(kind)
		tx.Date = scanDate(txDate)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func resolveCategory(raw sql.NullString, known bool) core.CategoryRef {
	if !raw.Valid {
		return core.NoCategory()
	}
	return core.ResolveCategoryRef(&raw.String, func(string) bool { return known })
}

// Budgets

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, owner_id, category_id, month, limit_amount, currency) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.CategoryID, b.Month.String(), b.Limit.String(), string(b.Currency))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create budget %s: %w", b.Month.MonthKey(), core.ErrDuplicateBudget)
		}
		return fmt.Errorf("create budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget saved to SQLite",
		"id", b.ID, "owner_id", b.OwnerID, "category_id", b.CategoryID, "month", b.Month.MonthKey())
	return nil
}

// UpdateBudget replaces the limit and currency of an existing budget.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET limit_amount = ?, currency = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE owner_id = ? AND id = ?`,
		b.Limit.String(), string(b.Currency), b.OwnerID, b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return checkAffected(res, "update budget")
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return checkAffected(res, "delete budget")
}

const selectBudget = `SELECT id, owner_id, category_id, month, limit_amount, currency FROM budgets`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(s rowScanner) (core.Budget, error) {
	var b core.Budget
	var month, limit, cur string
	if err := s.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &month, &limit, &cur); err != nil {
		return core.Budget{}, err
	}
	b.Month = scanDate(month)
	b.Limit = scanAmount(limit)
	b.Currency = core.CurrencyCode(cur)
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, selectBudget+` WHERE owner_id = ? AND id = ?`, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, selectBudget+` WHERE owner_id = ? ORDER BY month DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Recurring rules

const selectRule = `SELECT r.id, r.owner_id, r.account_id, r.category_id, c.id IS NOT NULL,
	r.kind, r.amount, r.currency, r.repeat_interval, r.anchor_date, r.next_run_date, r.note
	FROM recurring_rules r
	LEFT JOIN categories c ON c.id = r.category_id AND (c.owner_id IS NULL OR c.owner_id = r.owner_id)`

func scanRule(s rowScanner) (core.RecurringRule, error) {
	var (
		rule                                      core.RecurringRule
		cat                                       sql.NullString
		known                                     bool
		kind, amount, cur, interval, anchor, next string
	)
	if err := s.Scan(&rule.ID, &rule.OwnerID, &rule.AccountID, &cat, &known,
		&kind, &amount, &cur, &interval, &anchor, &next, &rule.Note); err != nil {
		return core.RecurringRule{}, err
	}
	rule.Category = resolveCategory(cat, known)
	rule.Kind = core.Kind(kind)
	rule.Amount = scanAmount(amount)
	rule.Currency = core.CurrencyCode(cur)
	rule.Interval = core.Interval(interval)
	rule.AnchorDate = scanDate(anchor)
	rule.NextRunDate = scanDate(next)
	return rule, nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) error {
	anchor := rule.AnchorDate
	if anchor.IsZero() {
		anchor = rule.NextRunDate
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recurring_rules
		(id, owner_id, account_id, category_id, kind, amount, currency, repeat_interval, anchor_date, next_run_date, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.OwnerID, rule.AccountID, rule.Category.Ptr(), string(rule.Kind), rule.Amount.String(),
		string(rule.Currency), string(rule.Interval), anchor.String(), rule.NextRunDate.String(), rule.Note)
	if err != nil {
		return fmt.Errorf("create recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, ownerID, id string) (core.RecurringRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, selectRule+` WHERE r.owner_id = ? AND r.id = ?`, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, fmt.Errorf("recurring rule %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) queryRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rules, err := r.queryRules(ctx, selectRule+` WHERE r.owner_id = ? ORDER BY r.next_run_date, r.id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return rules, nil
}

func (r *SQLiteRepository) ListDueRules(ctx context.Context, ref core.Date) ([]core.RecurringRule, error) {
	rules, err := r.queryRules(ctx, selectRule+` WHERE r.next_run_date <= ? ORDER BY r.owner_id, r.next_run_date, r.id`, ref.String())
	if err != nil {
		return nil, fmt.Errorf("list due recurring rules: %w", err)
	}
	return rules, nil
}

const advanceRule = `UPDATE recurring_rules
	SET next_run_date = ?, anchor_date = ?, updated_at = CURRENT_TIMESTAMP
	WHERE owner_id = ? AND id = ? AND next_run_date = ?`

func execAdvanceRule(ctx context.Context, db execer, advanced core.RecurringRule, expected core.Date) error {
	res, err := db.ExecContext(ctx, advanceRule,
		advanced.NextRunDate.String(), advanced.AnchorDate.String(), advanced.OwnerID, advanced.ID, expected.String())
	if err != nil {
		return fmt.Errorf("advance recurring rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance recurring rule rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %s expected at %s: %w", advanced.ID, expected, core.ErrStaleRule)
	}
	return nil
}

func (r *SQLiteRepository) AdvanceRule(ctx context.Context, advanced core.RecurringRule, expected core.Date) error {
	return execAdvanceRule(ctx, r.db, advanced, expected)
}

// PostRecurring inserts the generated transaction and advances the rule in
// one database transaction.
func (r *SQLiteRepository) PostRecurring(ctx context.Context, tx core.Transaction, advanced core.RecurringRule, expected core.Date) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if err := execAdvanceRule(ctx, dbtx, advanced, expected); err != nil {
		return err
	}
	if err := execInsertTransaction(ctx, dbtx, tx); err != nil {
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Recurring transaction posted",
		"rule_id", advanced.ID,
		"transaction_id", tx.ID,
		"next_run_date", advanced.NextRunDate.String())
	return nil
}

// FX rates

func (r *SQLiteRepository) UpsertRate(ctx context.Context, rate core.FxRate) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO fx_rates (owner_id, base, target, rate) VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, base, target) DO UPDATE SET rate = excluded.rate, updated_at = CURRENT_TIMESTAMP`,
		rate.OwnerID, string(rate.Base), string(rate.Target), rate.Rate.String())
	if err != nil {
		return fmt.Errorf("upsert fx rate: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRate(ctx context.Context, ownerID string, base, target core.CurrencyCode) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fx_rates WHERE owner_id = ? AND base = ? AND target = ?`,
		ownerID, string(base), string(target))
	if err != nil {
		return fmt.Errorf("delete fx rate: %w", err)
	}
	return checkAffected(res, "delete fx rate")
}

// ListRates skips rows whose stored rate is not a valid positive decimal.
func (r *SQLiteRepository) ListRates(ctx context.Context, ownerID string) ([]core.FxRate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT owner_id, base, target, rate FROM fx_rates WHERE owner_id = ? ORDER BY base, target`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list fx rates: %w", err)
	}
	defer rows.Close()

	var out []core.FxRate
	for rows.Next() {
		var f core.FxRate
		var base, target, rate string
		if err := rows.Scan(&f.OwnerID, &base, &target, &rate); err != nil {
			return nil, fmt.Errorf("scan fx rate: %w", err)
		}
		f.Base = core.CurrencyCode(strings.ToUpper(base))
		f.Target = core.CurrencyCode(strings.ToUpper(target))
		f.Rate = scanAmount(rate)
		if err := f.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid stored fx rate",
				"owner_id", ownerID, "base", base, "target", target, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
