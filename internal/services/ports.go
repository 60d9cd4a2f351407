package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

// Store is the internal persistence port consumed by the engines. The SQLite
// repository satisfies it; tests use a map-backed stand-in.
type Store interface {
	UpsertTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	TransactionsBySplitwiseID(ctx context.Context, splitwiseID string) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	UpsertBillRecord(ctx context.Context, b core.BillRecord) error
	GetBillRecord(ctx context.Context, id string) (core.BillRecord, error)
	DeleteBillRecord(ctx context.Context, id string) error
	MaxBillRecordUpdatedAt(ctx context.Context) (time.Time, error)

	ListAccounts(ctx context.Context) ([]core.Account, error)
	UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error

	GetBudget(ctx context.Context, month string) (decimal.Decimal, error)
	GetSetting(ctx context.Context, measure string) (string, error)

	DashboardValues(ctx context.Context) (map[string]string, error)
	UpsertDashboardValue(ctx context.Context, measure, value string) error
}
