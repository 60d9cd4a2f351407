package billsplit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

// Service is the outbound port to the bill-splitting provider. Records whose
// repayment shape does not involve the configured partner are filtered out by
// the adapter, never surfaced as errors.
type Service interface {
	// ListExpensesSince returns records updated at or after since.
	ListExpensesSince(ctx context.Context, since time.Time) ([]core.BillRecord, error)

	// CreateExpense splits cost between the owner and the partner and
	// returns the created record.
	CreateExpense(ctx context.Context, description string, cost decimal.Decimal, date time.Time) (core.BillRecord, error)

	DeleteExpense(ctx context.Context, id string) error

	// GetBalance returns the net amount the partner owes the owner.
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}
