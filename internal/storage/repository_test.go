package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTransaction(id string) core.Transaction {
	stamp := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	return core.Transaction{
		ID:          id,
		Date:        time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("40.50"),
		Category:    "Groceries",
		Description: "Groceries - Market",
		Account:     "checking",
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	original := sampleTransaction("row-1")
	if err := repo.UpsertTransaction(ctx, original); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "row-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != original.ID || got.Category != original.Category ||
		got.Description != original.Description || got.Account != original.Account {
		t.Errorf("text fields changed: %+v", got)
	}
	if !got.Amount.Equal(original.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, original.Amount)
	}
	if !got.Date.Equal(original.Date) {
		t.Errorf("date = %v, want %v", got.Date, original.Date)
	}
	if got.Imported || !got.ImportedAt.IsZero() || got.SplitwiseID != "" {
		t.Errorf("zero-value fields changed: %+v", got)
	}

	// Upsert with the same id replaces, never duplicates.
	original.Amount = decimal.RequireFromString("41.00")
	original.Imported = true
	original.ImportedAt = time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC)
	if err := repo.UpsertTransaction(ctx, original); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	all, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row, got %d", len(all))
	}
	if !all[0].Amount.Equal(original.Amount) || !all[0].Imported {
		t.Errorf("update not applied: %+v", all[0])
	}
	if !all[0].ImportedAt.Equal(original.ImportedAt) {
		t.Errorf("imported_at = %v", all[0].ImportedAt)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.GetTransaction(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionsBySplitwiseID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	linked := sampleTransaction("linked")
	linked.SplitwiseID = "bill-1"
	unlinked := sampleTransaction("unlinked")
	for _, row := range []core.Transaction{linked, unlinked} {
		if err := repo.UpsertTransaction(ctx, row); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	rows, err := repo.TransactionsBySplitwiseID(ctx, "bill-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "linked" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.UpsertTransaction(ctx, sampleTransaction("row-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "row-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "row-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBillRecordWatermark(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	watermark, err := repo.MaxBillRecordUpdatedAt(ctx)
	if err != nil {
		t.Fatalf("empty watermark: %v", err)
	}
	if !watermark.IsZero() {
		t.Fatalf("expected zero watermark, got %v", watermark)
	}

	older := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 4, 10, 9, 30, 0, 123456000, time.UTC)
	for i, stamp := range []time.Time{older, newer} {
		record := core.BillRecord{
			ID:          []string{"bill-1", "bill-2"}[i],
			Cost:        decimal.NewFromInt(40),
			Description: "Dinner",
			Date:        older,
			CreatedAt:   stamp,
			UpdatedAt:   stamp,
		}
		if err := repo.UpsertBillRecord(ctx, record); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	watermark, err = repo.MaxBillRecordUpdatedAt(ctx)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if !watermark.Equal(newer) {
		t.Fatalf("watermark = %v, want %v", watermark, newer)
	}
}

func TestBillRecordRoundTripAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stamp := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	record := core.BillRecord{
		ID:                 "bill-1",
		Cost:               decimal.RequireFromString("40.00"),
		TransactionBalance: decimal.RequireFromString("20.00"),
		Currency:           "USD",
		Date:               stamp,
		Description:        "Dinner",
		CreatedAt:          stamp,
		UpdatedAt:          stamp,
	}
	if err := repo.UpsertBillRecord(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetBillRecord(ctx, "bill-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TransactionBalance.Equal(record.TransactionBalance) || got.Currency != "USD" {
		t.Errorf("record changed: %+v", got)
	}

	if err := repo.DeleteBillRecord(ctx, "bill-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetBillRecord(ctx, "bill-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAccounts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seed := `INSERT INTO accounts (id, name, type, balance, starting_balance, is_default)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := repo.db.ExecContext(ctx, seed,
		"checking", "Joint Checking", "Checking", "0", "1000", 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, seed,
		"savings", "Emergency Savings", "Savings", "0", "500", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	if err := repo.UpdateAccountBalance(ctx, "checking", decimal.RequireFromString("850.25")); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	accounts, _ = repo.ListAccounts(ctx)
	for _, a := range accounts {
		if a.ID == "checking" && !a.Balance.Equal(decimal.RequireFromString("850.25")) {
			t.Errorf("balance = %s", a.Balance)
		}
	}

	err = repo.UpdateAccountBalance(ctx, "missing", decimal.Zero)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBudgetsAndSettings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO budgets (month, amount) VALUES ('April', '3000')`); err != nil {
		t.Fatalf("seed budget: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO settings (measure, value) VALUES ('Employer', 'Acme')`); err != nil {
		t.Fatalf("seed setting: %v", err)
	}

	budget, err := repo.GetBudget(ctx, "April")
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if !budget.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("budget = %s", budget)
	}
	if _, err := repo.GetBudget(ctx, "May"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	employer, err := repo.GetSetting(ctx, "Employer")
	if err != nil {
		t.Fatalf("get setting: %v", err)
	}
	if employer != "Acme" {
		t.Errorf("employer = %q", employer)
	}
	if _, err := repo.GetSetting(ctx, "Missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDashboardValues(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.UpsertDashboardValue(ctx, "Net Worth", "$ 200.00"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpsertDashboardValue(ctx, "Net Worth", "$ 250.00"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	values, err := repo.DashboardValues(ctx)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if values["Net Worth"] != "$ 250.00" {
		t.Fatalf("values = %v", values)
	}
}
