package sheets

import (
	"context"

	"ledgersync/internal/core"
)

// Ports for the spreadsheet adapters.
type (
	// LedgerStore is the outbound port to the ledger tab. Row identity is
	// the transaction ID; AppendRow assigns one when the row has none.
	LedgerStore interface {
		ListRows(ctx context.Context) ([]core.Transaction, error)
		AppendRow(ctx context.Context, t core.Transaction) (id string, err error)
		UpdateRow(ctx context.Context, t core.Transaction) error
		DeleteRow(ctx context.Context, id string) error
	}

	// DashboardStore writes rendered metric rows to the dashboard tab.
	DashboardStore interface {
		WriteMetric(ctx context.Context, measure, value string) error
	}
)
