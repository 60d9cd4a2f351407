package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Checking AccountType = "Checking"
	Savings  AccountType = "Savings"
)

// Category vocabulary shared with the spreadsheet. Anything outside this list
// is treated as a free-form expense category.
const (
	CategoryRent         = "Rent"
	CategoryMortgage     = "Mortgage"
	CategoryHousing      = "Housing"
	CategorySavings      = "Savings"
	CategorySavingsSpend = "Savings Spend"
	CategoryIncome       = "Income"
	CategoryInterest     = "Interest"
	CategoryAdjustment   = "Adjustment"
	CategorySplitwise    = "Splitwise"
)

type (
	AccountType string

	// Transaction is a single ledger entry, mirrored between the internal
	// store and the spreadsheet. ID is the spreadsheet row identity and the
	// primary key everywhere; UUID is an auditable content hash only, never
	// used for lookups.
	Transaction struct {
		ID          string
		Date        time.Time
		Amount      decimal.Decimal
		Category    string
		Description string
		Account     string // owning account id, "" when unset
		Imported    bool
		ImportedAt  time.Time // zero until imported
		Splitwise   bool      // pending bill-record creation
		SplitwiseID string    // "" when not linked
		Delete      bool      // soft-delete flag set by the spreadsheet
		UUID        string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// BillRecord mirrors one expense from the bill-splitting service.
	// TransactionBalance is the signed amount the ledger owner is
	// responsible for, derived from the service's repayment list.
	BillRecord struct {
		ID                 string
		Cost               decimal.Decimal
		TransactionBalance decimal.Decimal
		Category           string
		Currency           string
		Date               time.Time
		Payment            bool
		Deleted            bool
		Description        string
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	Account struct {
		ID              string
		Name            string
		Type            AccountType
		Balance         decimal.Decimal
		StartingBalance decimal.Decimal
		Default         bool
	}
)

var (
	// ErrConfiguration marks fatal configuration problems (missing default
	// accounts, zero budget). Surfaced loudly, not retried automatically.
	ErrConfiguration = errors.New("configuration error")

	// ErrConsistency marks data states that need manual repair, such as two
	// ledger rows claiming the same bill record. Aborts the current pass.
	ErrConsistency = errors.New("consistency violation")

	ErrEmptyDescription = errors.New("empty transaction description")
)

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	return nil
}

// Linked reports whether the transaction references a bill record.
func (t Transaction) Linked() bool {
	return t.SplitwiseID != ""
}

// Active reports whether a bill record should be mirrored into the ledger:
// not a settlement payment and not deleted upstream.
func (b BillRecord) Active() bool {
	return !b.Payment && !b.Deleted
}

// MonthStart returns local midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DayStart floors t to local midnight, dropping intraday precision.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of calendar days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
