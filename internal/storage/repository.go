package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"ledgersync/internal/core"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
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

const transactionColumns = `id, date, amount, category, description, account,
	imported, imported_at, splitwise, splitwise_id, delete_flag, uuid,
	created_at, updated_at`

// UpsertTransaction inserts or fully replaces the ledger row with the same id.
func (r *SQLiteRepository) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			amount = excluded.amount,
			category = excluded.category,
			description = excluded.description,
			account = excluded.account,
			imported = excluded.imported,
			imported_at = excluded.imported_at,
			splitwise = excluded.splitwise,
			splitwise_id = excluded.splitwise_id,
			delete_flag = excluded.delete_flag,
			uuid = excluded.uuid,
			updated_at = excluded.updated_at`,
		t.ID,
		t.Date.Format(timeLayout),
		t.Amount.String(),
		t.Category,
		t.Description,
		t.Account,
		t.Imported,
		nullableTime(t.ImportedAt),
		t.Splitwise,
		nullableString(t.SplitwiseID),
		t.Delete,
		t.UUID,
		t.CreatedAt.Format(timeLayout),
		t.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns every ledger row, oldest date first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) TransactionsBySplitwiseID(ctx context.Context, splitwiseID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE splitwise_id = ?
		ORDER BY created_at`, splitwiseID)
	if err != nil {
		return nil, fmt.Errorf("transactions by splitwise id %s: %w", splitwiseID, err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

const billRecordColumns = `id, cost, transaction_balance, category, currency,
	date, payment, deleted, description, created_at, updated_at`

func (r *SQLiteRepository) UpsertBillRecord(ctx context.Context, b core.BillRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bill_records (`+billRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cost = excluded.cost,
			transaction_balance = excluded.transaction_balance,
			category = excluded.category,
			currency = excluded.currency,
			date = excluded.date,
			payment = excluded.payment,
			deleted = excluded.deleted,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		b.ID,
		b.Cost.String(),
		b.TransactionBalance.String(),
		b.Category,
		b.Currency,
		b.Date.Format(timeLayout),
		b.Payment,
		b.Deleted,
		b.Description,
		b.CreatedAt.Format(timeLayout),
		b.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert bill record %s: %w", b.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetBillRecord(ctx context.Context, id string) (core.BillRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billRecordColumns+` FROM bill_records WHERE id = ?`, id)
	b, err := scanBillRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillRecord{}, fmt.Errorf("bill record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.BillRecord{}, fmt.Errorf("get bill record %s: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) DeleteBillRecord(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bill_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete bill record %s: %w", id, err)
	}
	return nil
}

// MaxBillRecordUpdatedAt returns the newest upstream change we have already
// seen, or the zero time when no bill record exists yet.
func (r *SQLiteRepository) MaxBillRecordUpdatedAt(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM bill_records`).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("max bill record updated_at: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(timeLayout, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse max updated_at %q: %w", raw.String, err)
	}
	return ts, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, balance, starting_balance, is_default
		FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var balance, startRaw string
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &balance, &startRaw, &a.Default); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse account balance %q: %w", balance, err)
		}
		if a.StartingBalance, err = decimal.NewFromString(startRaw); err != nil {
			return nil, fmt.Errorf("parse account starting balance %q: %w", startRaw, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, balance.String(), id)
	if err != nil {
		return fmt.Errorf("update account balance %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetBudget returns the configured budget for a month name such as "August".
func (r *SQLiteRepository) GetBudget(ctx context.Context, month string) (decimal.Decimal, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT amount FROM budgets WHERE month = ?`, month).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("budget for %s: %w", month, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get budget for %s: %w", month, err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse budget %q: %w", raw, err)
	}
	return amount, nil
}

func (r *SQLiteRepository) GetSetting(ctx context.Context, measure string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE measure = ?`, measure).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", measure, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", measure, err)
	}
	return value, nil
}

// DashboardValues returns the stored dashboard as measure -> rendered value.
func (r *SQLiteRepository) DashboardValues(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT measure, value FROM dashboard`)
	if err != nil {
		return nil, fmt.Errorf("dashboard values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var measure, value string
		if err := rows.Scan(&measure, &value); err != nil {
			return nil, fmt.Errorf("scan dashboard row: %w", err)
		}
		values[measure] = value
	}
	return values, rows.Err()
}

func (r *SQLiteRepository) UpsertDashboardValue(ctx context.Context, measure, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dashboard (measure, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(measure) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		measure, value, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert dashboard value %s: %w", measure, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                     core.Transaction
		date, amount          string
		importedAt, splitwise sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(&t.ID, &date, &amount, &t.Category, &t.Description,
		&t.Account, &t.Imported, &importedAt, &t.Splitwise, &splitwise,
		&t.Delete, &t.UUID, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	if t.Date, err = time.Parse(timeLayout, date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if t.ImportedAt, err = parseNullableTime(importedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse imported_at: %w", err)
	}
	t.SplitwiseID = splitwise.String
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return t, nil
}

func scanBillRecord(row rowScanner) (core.BillRecord, error) {
	var b core.BillRecord
	var cost, balance, date, createdAt, updatedAt string
	err := row.Scan(&b.ID, &cost, &balance, &b.Category, &b.Currency, &date,
		&b.Payment, &b.Deleted, &b.Description, &createdAt, &updatedAt)
	if err != nil {
		return core.BillRecord{}, err
	}

	if b.Cost, err = decimal.NewFromString(cost); err != nil {
		return core.BillRecord{}, fmt.Errorf("parse cost %q: %w", cost, err)
	}
	if b.TransactionBalance, err = decimal.NewFromString(balance); err != nil {
		return core.BillRecord{}, fmt.Errorf("parse transaction balance %q: %w", balance, err)
	}
	if b.Date, err = time.Parse(timeLayout, date); err != nil {
		return core.BillRecord{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if b.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.BillRecord{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if b.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return core.BillRecord{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return b, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(timeLayout)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseNullableTime(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, raw.String)
}
