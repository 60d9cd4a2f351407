package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

type (
	// CascadeRow is one transaction annotated with the running balance of
	// every account after the transaction is applied.
	CascadeRow struct {
		Transaction core.Transaction
		Balances    map[string]decimal.Decimal
	}

	CascadeResult struct {
		Rows         []CascadeRow
		Endings      map[string]decimal.Decimal
		NetWorth     decimal.Decimal
		TotalSavings decimal.Decimal
	}
)

// BalanceCascade replays the transaction stream in chronological order and
// folds per-category impacts into running account balances. Pure: it never
// touches storage and never mutates its inputs.
//
// Ordering is a stable sort on (date, imported_at, created_at) so replays are
// deterministic even when dates tie. Balances are seeded from each account's
// starting balance before the first row.
func BalanceCascade(accounts []core.Account, transactions []core.Transaction) (CascadeResult, error) {
	checking, savingsDefault, err := defaultAccounts(accounts)
	if err != nil {
		return CascadeResult{}, err
	}

	ordered := make([]core.Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.ImportedAt.Equal(b.ImportedAt) {
			return a.ImportedAt.Before(b.ImportedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = a.StartingBalance
	}

	result := CascadeResult{
		Rows:    make([]CascadeRow, 0, len(ordered)),
		Endings: make(map[string]decimal.Decimal, len(accounts)),
	}

	for _, t := range ordered {
		// Rows with no account, or an account that no longer exists, land
		// on checking, matching the importer's correction.
		own := t.Account
		if _, ok := balances[own]; !ok {
			own = checking.ID
		}
		for account, impact := range rowImpacts(t, own, accounts, savingsDefault) {
			balances[account] = balances[account].Add(impact)
		}

		snapshot := make(map[string]decimal.Decimal, len(balances))
		for id, b := range balances {
			snapshot[id] = b
		}
		result.Rows = append(result.Rows, CascadeRow{Transaction: t, Balances: snapshot})
	}

	for _, a := range accounts {
		ending := balances[a.ID]
		result.Endings[a.ID] = ending
		result.NetWorth = result.NetWorth.Add(ending)
		if a.Type != core.Checking {
			result.TotalSavings = result.TotalSavings.Add(ending)
		}
	}
	return result, nil
}

// rowImpacts computes the signed balance impact of one transaction on each
// affected account.
//
// The two special categories are keyed off the raw category because both map
// to broader expense types: "Savings Spend" draws its savings bucket down
// without touching the owning account, and "Interest" routes to a bucket when
// the description names one. Plain Savings rows are a transfer out of the
// owning account into the destination bucket. Income credits the owning
// account; everything else debits it.
func rowImpacts(t core.Transaction, own string, accounts []core.Account, savingsDefault core.Account) map[string]decimal.Decimal {
	dest := func() string {
		return bucketAccount(core.SavingsDestination(t.Description), accounts, savingsDefault)
	}

	switch {
	case t.Category == core.CategorySavingsSpend:
		return map[string]decimal.Decimal{dest(): t.Amount.Neg()}
	case t.Category == core.CategoryInterest:
		if core.SavingsDestination(t.Description) != core.BucketUnknown {
			return map[string]decimal.Decimal{dest(): t.Amount.Neg()}
		}
		return map[string]decimal.Decimal{own: t.Amount.Neg()}
	}

	switch core.Classify(t.Category, t.Description) {
	case core.TypeIncome:
		return map[string]decimal.Decimal{own: t.Amount}
	case core.TypeSavings:
		destination := dest()
		if destination == own {
			return map[string]decimal.Decimal{own: decimal.Zero}
		}
		return map[string]decimal.Decimal{
			own:         t.Amount.Neg(),
			destination: t.Amount,
		}
	default:
		return map[string]decimal.Decimal{own: t.Amount.Neg()}
	}
}

// bucketAccount resolves a savings bucket to a concrete account by keyword
// match on the account name. Unknown buckets fall back to the miscellaneous
// bucket, and from there to the default savings account.
func bucketAccount(bucket core.SavingsBucket, accounts []core.Account, savingsDefault core.Account) string {
	if bucket == core.BucketUnknown {
		bucket = core.BucketMiscellaneous
	}
	if a, ok := bucketMatch(bucket, accounts); ok {
		return a.ID
	}
	return savingsDefault.ID
}

// bucketMatch finds the savings account whose name carries the bucket's
// keyword.
func bucketMatch(bucket core.SavingsBucket, accounts []core.Account) (core.Account, bool) {
	var keywords []string
	switch bucket {
	case core.BucketHome:
		keywords = []string{"home", "house"}
	case core.BucketMiscellaneous:
		keywords = []string{"misc"}
	case core.BucketShared:
		keywords = []string{"share"}
	}
	for _, a := range accounts {
		if a.Type == core.Checking {
			continue
		}
		name := strings.ToLower(a.Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return a, true
			}
		}
	}
	return core.Account{}, false
}

// defaultAccounts enforces the account invariant: exactly one Checking
// account and exactly one default Savings account.
func defaultAccounts(accounts []core.Account) (checking, savingsDefault core.Account, err error) {
	var checkings, savings []core.Account
	for _, a := range accounts {
		switch {
		case a.Type == core.Checking:
			checkings = append(checkings, a)
		case a.Type == core.Savings && a.Default:
			savings = append(savings, a)
		}
	}
	if len(checkings) != 1 {
		return core.Account{}, core.Account{},
			fmt.Errorf("%w: expected exactly one checking account, found %d", core.ErrConfiguration, len(checkings))
	}
	if len(savings) != 1 {
		return core.Account{}, core.Account{},
			fmt.Errorf("%w: expected exactly one default savings account, found %d", core.ErrConfiguration, len(savings))
	}
	return checkings[0], savings[0], nil
}
