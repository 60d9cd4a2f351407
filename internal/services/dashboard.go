package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/billsplit"
	"ledgersync/internal/core"
	"ledgersync/internal/log"
	"ledgersync/internal/sheets"
	"ledgersync/internal/storage"
)

// Settings table measures consumed by the projector.
const (
	SettingEmployer               = "Employer"
	SettingMonthlyRent            = "Monthly Rent"
	SettingBimonthlySalary        = "Bi-Monthly Salary"
	SettingMonthlyStartingBalance = "Monthly Starting Balance"
)

// Metric is one rendered dashboard row.
type Metric struct {
	Measure string
	Value   string
}

// DashboardConfig holds tunables for the dashboard service
type DashboardConfig struct {
	Location *time.Location
	Now      func() time.Time
}

// DashboardService recomputes the metric manifest from the reconciled ledger
// and writes back only the measures whose rendered value changed, so a failed
// pass never corrupts previously published figures.
type DashboardService struct {
	store  Store
	dash   sheets.DashboardStore
	bills  billsplit.Service
	logger *log.Logger
	config DashboardConfig
}

func NewDashboardService(
	store Store,
	dash sheets.DashboardStore,
	bills billsplit.Service,
	logger *log.Logger,
	config DashboardConfig,
) *DashboardService {
	return &DashboardService{
		store:  store,
		dash:   dash,
		bills:  bills,
		logger: logger,
		config: config,
	}
}

// Refresh runs the cascade and projector over the full ledger and publishes
// the resulting metrics. Returns the manifest that was computed.
func (s *DashboardService) Refresh(ctx context.Context) ([]Metric, error) {
	now := s.now().In(s.location())

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	checking, savingsDefault, err := defaultAccounts(accounts)
	if err != nil {
		return nil, err
	}

	transactions, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	cascade, err := BalanceCascade(accounts, transactions)
	if err != nil {
		return nil, err
	}

	budget, err := s.store.GetBudget(ctx, now.Month().String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no budget configured for %s",
			core.ErrConfiguration, now.Month())
	}
	if err != nil {
		return nil, err
	}

	projection, err := ComputeProjection(BudgetInputs{
		Now:                    now,
		Budget:                 budget,
		Employers:              splitList(s.stringSetting(ctx, SettingEmployer)),
		BimonthlySalary:        s.decimalSetting(ctx, SettingBimonthlySalary),
		MonthlyRent:            s.decimalSetting(ctx, SettingMonthlyRent),
		MonthlyStartingBalance: s.decimalSetting(ctx, SettingMonthlyStartingBalance),
		CheckingBalance:        cascade.Endings[checking.ID],
		TotalSavings:           cascade.TotalSavings,
		Transactions:           transactions,
	})
	if err != nil {
		return nil, err
	}

	splitwiseBalance, err := s.bills.GetBalance(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Bill service balance unavailable", "error", err)
		splitwiseBalance = decimal.Zero
	}

	// Persist the derived balances so the accounts table mirrors the
	// cascade's view.
	for id, ending := range cascade.Endings {
		if err := s.store.UpdateAccountBalance(ctx, id, ending); err != nil {
			s.logger.WarnContext(ctx, "Account balance update failed",
				"account", id, "error", err)
		}
	}

	metrics := s.buildMetrics(now, projection, cascade, accounts, checking,
		savingsDefault, budget, splitwiseBalance, transactions)

	if err := s.publish(ctx, metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// publish diffs the manifest against the stored dashboard and writes only
// changed measures, to the internal store first and then the spreadsheet.
func (s *DashboardService) publish(ctx context.Context, metrics []Metric) error {
	stored, err := s.store.DashboardValues(ctx)
	if err != nil {
		return err
	}

	var written int
	for _, m := range metrics {
		if stored[m.Measure] == m.Value {
			continue
		}
		if err := s.store.UpsertDashboardValue(ctx, m.Measure, m.Value); err != nil {
			return err
		}
		if err := s.dash.WriteMetric(ctx, m.Measure, m.Value); err != nil {
			return fmt.Errorf("write metric %s: %w", m.Measure, err)
		}
		written++
	}
	s.logger.InfoContext(ctx, "Dashboard refreshed",
		"metrics", len(metrics), "written", written)
	return nil
}

func (s *DashboardService) buildMetrics(
	now time.Time,
	p Projection,
	cascade CascadeResult,
	accounts []core.Account,
	checking, savingsDefault core.Account,
	budget, splitwiseBalance decimal.Decimal,
	transactions []core.Transaction,
) []Metric {
	metrics := []Metric{
		{"Checking Balance", formatMoney(cascade.Endings[checking.ID])},
		{"Savings Balance", formatMoney(cascade.TotalSavings)},
		{"Net Worth", formatMoney(cascade.NetWorth)},
		{"Splitwise Balance", formatMoney(splitwiseBalance)},
		{"Current Budget", formatMoney(budget)},
		{"Budget Left", formatMoney(p.AmountBudgetLeft)},
		{"Under Budget", formatMoney(p.AmountUnderBudget)},
		{"Amount to Save", formatMoney(p.AmountToSave)},
		{"Resulting Savings", formatMoney(p.ResultingSavings)},
		{"Potential Savings", formatMoney(p.PotentialSavings)},
		{"Monthly Spending", formatMoney(p.MonthlyTotals[core.TypeExpense])},
		{"Monthly Savings", formatMoney(p.MonthlyTotals[core.TypeSavings])},
		{"Monthly Income", formatMoney(p.MonthlyTotals[core.TypeIncome])},
		{"Reimbursement", formatMoney(p.TotalReimbursement)},
		{"Planned Daily Budget", formatMoney(p.PlannedBudget)},
		{"Adjusted Daily Budget", formatMoney(p.AdjustedBudget)},
		{"% Through Month", formatPercent(p.PercentThroughMonth)},
		{"% Budget Spent", formatPercent(p.PercentBudgetSpent)},
		{"% Budget Left", formatPercent(p.PercentBudgetLeft)},
	}

	for _, bucket := range []struct {
		measure string
		name    core.SavingsBucket
	}{
		{"House Savings", core.BucketHome},
		{"Misc Savings", core.BucketMiscellaneous},
		{"Shared Savings", core.BucketShared},
	} {
		account, ok := bucketMatch(bucket.name, accounts)
		if !ok {
			continue
		}
		metrics = append(metrics, Metric{bucket.measure, formatMoney(cascade.Endings[account.ID])})
	}

	if stamp := lastExpenseStamp(transactions); stamp != "" {
		metrics = append(metrics, Metric{"Last Expense", stamp})
	}
	metrics = append(metrics, Metric{"Date Updated", now.Format("01/02/2006 03:04 PM")})
	return metrics
}

// lastExpenseStamp renders the most recent plain expense as
// "MM/DD/YYYY - <merchant> - $X.XX".
func lastExpenseStamp(transactions []core.Transaction) string {
	var last core.Transaction
	found := false
	for _, t := range transactions {
		if core.Classify(t.Category, t.Description) != core.TypeExpense {
			continue
		}
		if !found || t.Date.After(last.Date) ||
			(t.Date.Equal(last.Date) && t.ImportedAt.After(last.ImportedAt)) {
			last = t
			found = true
		}
	}
	if !found {
		return ""
	}
	return fmt.Sprintf("%s - %s - %s", last.Date.Format("01/02/2006"),
		core.Merchant(last.Description), formatMoney(last.Amount))
}

func (s *DashboardService) stringSetting(ctx context.Context, measure string) string {
	value, err := s.store.GetSetting(ctx, measure)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "Setting lookup failed",
				"measure", measure, "error", err)
		}
		return ""
	}
	return value
}

func (s *DashboardService) decimalSetting(ctx context.Context, measure string) decimal.Decimal {
	raw := s.stringSetting(ctx, measure)
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Setting is not a number",
			"measure", measure, "value", raw)
		return decimal.Zero
	}
	return value
}

func (s *DashboardService) now() time.Time {
	if s.config.Now != nil {
		return s.config.Now()
	}
	return time.Now()
}

func (s *DashboardService) location() *time.Location {
	if s.config.Location != nil {
		return s.config.Location
	}
	return time.Local
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formatMoney renders a currency value with thousands grouping, negatives in
// parentheses: "$ 1,234.56" and "$ (1,234.56)".
func formatMoney(d decimal.Decimal) string {
	s := groupThousands(d.Abs().StringFixed(2))
	if d.IsNegative() {
		return fmt.Sprintf("$ (%s)", s)
	}
	return "$ " + s
}

func formatPercent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + " %"
}

func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return intPart + "." + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + "." + frac
}
