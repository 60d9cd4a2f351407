package core

import "strings"

type (
	// ExpenseType is the coarse classification every engine keys off.
	ExpenseType string

	// SavingsBucket names the savings account a routed amount lands in.
	SavingsBucket string
)

const (
	TypeReimbursement ExpenseType = "Reimbursement"
	TypeHousing       ExpenseType = "Housing"
	TypeSavings       ExpenseType = "Savings"
	TypeIncome        ExpenseType = "Income"
	TypeAdjustment    ExpenseType = "Adjustment"
	TypeExpense       ExpenseType = "Expense"
)

const (
	BucketHome          SavingsBucket = "Home"
	BucketMiscellaneous SavingsBucket = "Miscellaneous"
	BucketShared        SavingsBucket = "Shared"
	BucketUnknown       SavingsBucket = "Unknown"
)

// Classify maps a transaction's category and description to its ExpenseType.
// The description check wins over everything: a row whose first dash segment
// reads "Reimbursement" is a reimbursement regardless of category. Total over
// all inputs, the fallback is a plain expense.
func Classify(category, description string) ExpenseType {
	head, _, _ := strings.Cut(description, "-")
	if strings.ToUpper(strings.TrimSpace(head)) == "REIMBURSEMENT" {
		return TypeReimbursement
	}
	switch category {
	case CategoryRent, CategoryMortgage, CategoryHousing:
		return TypeHousing
	case CategorySavings, CategorySavingsSpend:
		return TypeSavings
	case CategoryIncome, CategoryInterest:
		return TypeIncome
	case CategoryAdjustment:
		return TypeAdjustment
	default:
		return TypeExpense
	}
}

// SavingsDestination reads the third dash segment of a description and routes
// it to a savings bucket by keyword. Missing or unrecognized segments map to
// BucketUnknown, which callers resolve to the default savings account.
func SavingsDestination(description string) SavingsBucket {
	parts := strings.Split(description, "-")
	if len(parts) < 3 {
		return BucketUnknown
	}
	segment := strings.ToLower(strings.TrimSpace(parts[2]))
	switch {
	case strings.Contains(segment, "home"), strings.Contains(segment, "house"):
		return BucketHome
	case strings.Contains(segment, "misc"):
		return BucketMiscellaneous
	case strings.Contains(segment, "share"):
		return BucketShared
	default:
		return BucketUnknown
	}
}

// NormalizeDescription guarantees the "<Label> - <Detail>" shape the
// spreadsheet expects, prefixing defaultLabel when no label is present.
func NormalizeDescription(description, defaultLabel string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return defaultLabel
	}
	if strings.Contains(description, " - ") {
		return description
	}
	return defaultLabel + " - " + description
}

// Merchant returns the detail segment of a normalized description, or the
// whole description when it carries no label.
func Merchant(description string) string {
	_, detail, found := strings.Cut(description, " - ")
	if !found {
		return strings.TrimSpace(description)
	}
	return strings.TrimSpace(detail)
}
