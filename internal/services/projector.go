package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

const secondsPerDay = 24 * 60 * 60

type (
	// BudgetInputs bundles everything the projection math needs, resolved
	// by the caller so ComputeProjection stays pure.
	BudgetInputs struct {
		Now                    time.Time
		Budget                 decimal.Decimal
		Employers              []string
		BimonthlySalary        decimal.Decimal
		MonthlyRent            decimal.Decimal
		MonthlyStartingBalance decimal.Decimal
		CheckingBalance        decimal.Decimal
		TotalSavings           decimal.Decimal
		Transactions           []core.Transaction
	}

	// Projection is the computed metric set for the current month.
	Projection struct {
		PercentThroughMonth decimal.Decimal
		PercentBudgetSpent  decimal.Decimal
		PercentBudgetLeft   decimal.Decimal

		MonthlyTotals map[core.ExpenseType]decimal.Decimal

		AmountUnderBudget  decimal.Decimal
		AmountBudgetLeft   decimal.Decimal
		AmountToSave       decimal.Decimal
		ExpectedIncome     decimal.Decimal
		PlannedBudget      decimal.Decimal
		AdjustedBudget     decimal.Decimal
		ResultingSavings   decimal.Decimal
		PotentialSavings   decimal.Decimal
		TotalReimbursement decimal.Decimal
	}
)

// ComputeProjection derives the month's budget metrics from the reconciled
// stream. Month boundaries are local midnight of day 1 through day 1 of the
// next month, exclusive. A zero budget is a configuration error, never a
// silent divide-by-zero.
func ComputeProjection(in BudgetInputs) (Projection, error) {
	if in.Budget.IsZero() {
		return Projection{}, fmt.Errorf("%w: budget for %s is zero or missing",
			core.ErrConfiguration, in.Now.Month())
	}

	var p Projection
	daysInMonth := core.DaysInMonth(in.Now)

	elapsed := decimal.NewFromInt(int64((in.Now.Day()-1)*secondsPerDay) +
		int64(in.Now.Sub(core.DayStart(in.Now))/time.Second))
	monthSeconds := decimal.NewFromInt(int64(daysInMonth * secondsPerDay))
	p.PercentThroughMonth = elapsed.Div(monthSeconds)

	monthStart := core.MonthStart(in.Now)
	nextMonth := monthStart.AddDate(0, 1, 0)

	p.MonthlyTotals = make(map[core.ExpenseType]decimal.Decimal)
	var paychecks int
	var nextMonthHousing decimal.Decimal
	for _, t := range in.Transactions {
		expenseType := core.Classify(t.Category, t.Description)
		if expenseType == core.TypeReimbursement {
			p.TotalReimbursement = p.TotalReimbursement.Sub(t.Amount)
		}
		// Rent already paid ahead offsets next month's rent reserve.
		if expenseType == core.TypeHousing && !t.Date.Before(nextMonth) {
			nextMonthHousing = nextMonthHousing.Add(t.Amount)
		}
		if t.Date.Before(monthStart) || !t.Date.Before(nextMonth) {
			continue
		}

		amount := t.Amount
		// Savings Spend reduces the savings rollup even though it is
		// stored positive.
		if t.Category == core.CategorySavingsSpend {
			amount = amount.Neg()
		}
		p.MonthlyTotals[expenseType] = p.MonthlyTotals[expenseType].Add(amount)

		if expenseType == core.TypeIncome && isPaycheck(t.Description, in.Employers) {
			paychecks++
		}
	}

	monthlyExpenses := p.MonthlyTotals[core.TypeExpense]
	p.AmountUnderBudget = p.PercentThroughMonth.Mul(in.Budget).Sub(monthlyExpenses)
	p.AmountBudgetLeft = in.Budget.Sub(monthlyExpenses)
	p.PercentBudgetSpent = monthlyExpenses.Div(in.Budget)
	p.PercentBudgetLeft = decimal.NewFromInt(1).Sub(p.PercentBudgetSpent)

	switch paychecks {
	case 0:
		p.ExpectedIncome = in.BimonthlySalary.Mul(decimal.NewFromInt(2))
	case 1:
		p.ExpectedIncome = in.BimonthlySalary
	default:
		p.ExpectedIncome = decimal.Zero
	}

	// The reserve for next month's rent shrinks by whatever rent is already
	// paid ahead. The reimbursement term is the raw signed sum: it cancels
	// the checking credit those rows already produced.
	p.AmountToSave = in.CheckingBalance.Sub(p.AmountBudgetLeft).
		Sub(in.MonthlyRent.Sub(nextMonthHousing)).
		Add(p.ExpectedIncome).
		Add(p.AmountUnderBudget).
		Sub(in.MonthlyStartingBalance).
		Sub(p.TotalReimbursement)

	p.PlannedBudget = in.Budget.Div(decimal.NewFromInt(int64(daysInMonth)))
	daysRemaining := int64(daysInMonth - in.Now.Day() + 1)
	p.AdjustedBudget = p.AmountBudgetLeft.Div(decimal.NewFromInt(daysRemaining))

	p.ResultingSavings = p.AmountToSave.Add(in.TotalSavings)
	p.PotentialSavings = p.ResultingSavings.Add(p.AmountBudgetLeft.Sub(p.AmountUnderBudget))

	return p, nil
}

// isPaycheck recognizes salary deposits: "<Employer> - SALARY" with the
// employer in the configured list.
func isPaycheck(description string, employers []string) bool {
	parts := strings.Split(description, " - ")
	if len(parts) != 2 {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(parts[1]), "SALARY") {
		return false
	}
	for _, employer := range employers {
		if strings.EqualFold(strings.TrimSpace(parts[0]), strings.TrimSpace(employer)) {
			return true
		}
	}
	return false
}
