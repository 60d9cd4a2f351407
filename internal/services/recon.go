package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgersync/internal/billsplit"
	"ledgersync/internal/core"
	"ledgersync/internal/log"
	"ledgersync/internal/sheets"
	"ledgersync/internal/storage"
)

// ReconciliationConfig holds tunables for the reconciliation engine
type ReconciliationConfig struct {
	// DefaultBillLabel prefixes bill-service descriptions that carry no
	// "<Label> - <Detail>" shape of their own.
	DefaultBillLabel string

	// Location is the wall-clock timezone used for date flooring.
	Location *time.Location

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// DefaultReconciliationConfig returns sensible defaults
func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		DefaultBillLabel: "Splitwise",
		Location:         time.Local,
	}
}

// ReconciliationEngine makes the internal ledger, the bill-splitting service
// and the spreadsheet agree. Passes are idempotent: re-running with no new
// external changes is a no-op, and a row that fails mid-pass is retried by
// the next pass because the spreadsheet still flags it dirty.
type ReconciliationEngine struct {
	store  Store
	ledger sheets.LedgerStore
	bills  billsplit.Service
	logger *log.Logger
	config ReconciliationConfig
}

func NewReconciliationEngine(
	store Store,
	ledger sheets.LedgerStore,
	bills billsplit.Service,
	logger *log.Logger,
	config ReconciliationConfig,
) *ReconciliationEngine {
	return &ReconciliationEngine{
		store:  store,
		ledger: ledger,
		bills:  bills,
		logger: logger,
		config: config,
	}
}

// VerifyAccounts enforces the account invariant before a pass runs: exactly
// one Checking account and exactly one default Savings account.
func (e *ReconciliationEngine) VerifyAccounts(ctx context.Context) error {
	_, _, err := e.accountDefaults(ctx)
	return err
}

// SyncBillRecords pulls changed records from the bill-splitting service and
// mirrors them into the ledger. The pull is watermark-based: only records
// updated after the newest change already stored, nudged by a microsecond so
// the boundary record is not refetched.
func (e *ReconciliationEngine) SyncBillRecords(ctx context.Context) error {
	watermark, err := e.store.MaxBillRecordUpdatedAt(ctx)
	if err != nil {
		return err
	}
	since := watermark
	if !watermark.IsZero() {
		since = watermark.Add(time.Microsecond)
	}

	records, err := e.bills.ListExpensesSince(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch bill records: %w", err)
	}

	e.logger.InfoContext(ctx, "Bill record sync started",
		"records", len(records), "watermark", watermark)

	for _, record := range records {
		if err := e.applyBillRecord(ctx, record); err != nil {
			if errors.Is(err, core.ErrConsistency) {
				return err
			}
			e.logger.ErrorContext(ctx, "Bill record sync failed",
				"bill_id", record.ID, "error", err)
		}
	}
	return nil
}

func (e *ReconciliationEngine) applyBillRecord(ctx context.Context, record core.BillRecord) error {
	if record.Deleted {
		// Retract before the upsert so the deleted state is recorded
		// even when no ledger row matched.
		if err := e.retractBillRecord(ctx, record); err != nil {
			return err
		}
		return e.store.UpsertBillRecord(ctx, record)
	}

	if err := e.store.UpsertBillRecord(ctx, record); err != nil {
		return err
	}
	if record.Active() {
		return e.publishBillRecord(ctx, record)
	}
	// Settlement payments stay internal only.
	return nil
}

// retractBillRecord removes the ledger row mirroring a deleted bill record:
// internal row first, then the spreadsheet mirror. More than one matching row
// means the data needs manual repair.
func (e *ReconciliationEngine) retractBillRecord(ctx context.Context, record core.BillRecord) error {
	rows, err := e.store.TransactionsBySplitwiseID(ctx, record.ID)
	if err != nil {
		return err
	}
	if len(rows) > 1 {
		return fmt.Errorf("%w: %d ledger rows reference bill record %s",
			core.ErrConsistency, len(rows), record.ID)
	}
	if len(rows) == 0 {
		return nil
	}

	row := rows[0]
	if err := e.store.DeleteTransaction(ctx, row.ID); err != nil {
		return err
	}
	if err := e.ledger.DeleteRow(ctx, row.ID); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "Retracted ledger row for deleted bill record",
		"bill_id", record.ID, "row_id", row.ID)
	return nil
}

// publishBillRecord mirrors an active bill record into the spreadsheet as a
// fresh unimported row, or refreshes the row that already references it so
// redelivered records never duplicate.
func (e *ReconciliationEngine) publishBillRecord(ctx context.Context, record core.BillRecord) error {
	existing, err := e.store.TransactionsBySplitwiseID(ctx, record.ID)
	if err != nil {
		return err
	}
	if len(existing) > 1 {
		return fmt.Errorf("%w: %d ledger rows reference bill record %s",
			core.ErrConsistency, len(existing), record.ID)
	}

	now := e.now()
	t := core.Transaction{
		Date:        core.DayStart(record.Date.In(e.location())),
		Amount:      record.TransactionBalance,
		Category:    core.CategorySplitwise,
		Description: core.NormalizeDescription(record.Description, e.config.DefaultBillLabel),
		SplitwiseID: record.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.UUID = core.Fingerprint(t.Description, t.Amount, t.Date, t.Category)

	if len(existing) == 1 {
		t.ID = existing[0].ID
		t.CreatedAt = existing[0].CreatedAt
		if err := e.ledger.UpdateRow(ctx, t); err != nil {
			return fmt.Errorf("update spreadsheet row: %w", err)
		}
	} else {
		id, err := e.ledger.AppendRow(ctx, t)
		if err != nil {
			return fmt.Errorf("append spreadsheet row: %w", err)
		}
		t.ID = id
	}
	return e.store.UpsertTransaction(ctx, t)
}

// SyncLedgerDeltas pulls the spreadsheet and processes its dirty set: rows
// not yet imported or flagged for deletion. Clean rows are skipped so a pass
// with no external changes writes nothing.
func (e *ReconciliationEngine) SyncLedgerDeltas(ctx context.Context) error {
	checking, savingsDefault, err := e.accountDefaults(ctx)
	if err != nil {
		return err
	}

	rows, err := e.ledger.ListRows(ctx)
	if err != nil {
		return fmt.Errorf("fetch ledger rows: %w", err)
	}

	for _, row := range rows {
		if row.Imported && !row.Delete {
			continue
		}
		if err := e.applyDirtyRow(ctx, row, checking, savingsDefault); err != nil {
			if errors.Is(err, core.ErrConsistency) {
				return err
			}
			e.logger.ErrorContext(ctx, "Ledger row sync failed",
				"row_id", row.ID, "error", err)
		}
	}
	return nil
}

func (e *ReconciliationEngine) applyDirtyRow(ctx context.Context, row core.Transaction, checking, savingsDefault core.Account) error {
	switch {
	case row.Delete:
		return e.deleteLedgerRow(ctx, row)
	case row.Splitwise:
		return e.createBillForRow(ctx, row, checking, savingsDefault)
	default:
		return e.upsertLedgerRow(ctx, row, checking, savingsDefault)
	}
}

// deleteLedgerRow hard-deletes a row the spreadsheet flagged. Child before
// parent: the linked bill record and its internal mirror go first so no
// dangling reference survives the pass.
func (e *ReconciliationEngine) deleteLedgerRow(ctx context.Context, row core.Transaction) error {
	if row.Linked() {
		if err := e.bills.DeleteExpense(ctx, row.SplitwiseID); err != nil {
			return fmt.Errorf("delete bill record %s: %w", row.SplitwiseID, err)
		}
		if err := e.store.DeleteBillRecord(ctx, row.SplitwiseID); err != nil &&
			!errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if err := e.store.DeleteTransaction(ctx, row.ID); err != nil {
		return err
	}
	if err := e.ledger.DeleteRow(ctx, row.ID); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "Deleted ledger row", "row_id", row.ID,
		"bill_id", row.SplitwiseID)
	return nil
}

// createBillForRow splits a spreadsheet-entered expense through the bill
// service. The row's amount is replaced by the service-derived share, since
// the owner's actual responsibility may differ from the bill total.
func (e *ReconciliationEngine) createBillForRow(ctx context.Context, row core.Transaction, checking, savingsDefault core.Account) error {
	if !row.Linked() {
		record, err := e.bills.CreateExpense(ctx, row.Description, row.Amount, row.Date)
		if err != nil {
			return fmt.Errorf("create bill record: %w", err)
		}
		if err := e.store.UpsertBillRecord(ctx, record); err != nil {
			return err
		}
		row.SplitwiseID = record.ID
		row.Amount = record.TransactionBalance
		e.logger.InfoContext(ctx, "Created bill record for ledger row",
			"row_id", row.ID, "bill_id", record.ID,
			"amount", row.Amount.StringFixed(2))
	} else if _, err := e.store.GetBillRecord(ctx, row.SplitwiseID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		// Dangling reference is recoverable: null it and continue.
		e.logger.WarnContext(ctx, "Nulling dangling bill record reference",
			"row_id", row.ID, "bill_id", row.SplitwiseID)
		row.SplitwiseID = ""
	}

	row.Splitwise = false
	return e.upsertLedgerRow(ctx, row, checking, savingsDefault)
}

// upsertLedgerRow is the shared import step: stamp the row as imported,
// recompute its content hash, correct the account routing and write the
// result to both stores.
func (e *ReconciliationEngine) upsertLedgerRow(ctx context.Context, row core.Transaction, checking, savingsDefault core.Account) error {
	if err := row.Validate(); err != nil {
		return err
	}

	now := e.now()
	row.Imported = true
	row.ImportedAt = now
	row.Splitwise = false
	row.UUID = core.Fingerprint(row.Description, row.Amount, row.Date, row.Category)

	expenseType := core.Classify(row.Category, row.Description)
	if row.Account == "" {
		row.Account = checking.ID
	}
	switch {
	case expenseType == core.TypeSavings && row.Account == checking.ID:
		e.logger.WarnContext(ctx, "Corrected savings row routed to checking",
			"row_id", row.ID, "account", savingsDefault.ID)
		row.Account = savingsDefault.ID
	case expenseType != core.TypeSavings && row.Account == savingsDefault.ID:
		e.logger.WarnContext(ctx, "Corrected non-savings row routed to savings",
			"row_id", row.ID, "account", checking.ID)
		row.Account = checking.ID
	case expenseType != core.TypeSavings && row.Category != core.CategoryInterest &&
		row.Account != checking.ID:
		e.logger.WarnContext(ctx, "Corrected row routed to unexpected account",
			"row_id", row.ID, "from", row.Account, "to", checking.ID)
		row.Account = checking.ID
	}

	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}

	if err := e.store.UpsertTransaction(ctx, row); err != nil {
		return err
	}
	if err := e.ledger.UpdateRow(ctx, row); err != nil {
		return fmt.Errorf("update spreadsheet row: %w", err)
	}
	return nil
}

func (e *ReconciliationEngine) accountDefaults(ctx context.Context) (core.Account, core.Account, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return core.Account{}, core.Account{}, fmt.Errorf("list accounts: %w", err)
	}
	return defaultAccounts(accounts)
}

func (e *ReconciliationEngine) now() time.Time {
	if e.config.Now != nil {
		return e.config.Now()
	}
	return time.Now()
}

func (e *ReconciliationEngine) location() *time.Location {
	if e.config.Location != nil {
		return e.config.Location
	}
	return time.Local
}
