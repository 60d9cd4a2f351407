package billsplit

import "github.com/shopspring/decimal"

// Repayment is one leg of a bill's repayment list: From owes To.
type Repayment struct {
	From   int64
	To     int64
	Amount decimal.Decimal
}

// TransactionBalance derives the signed amount the ledger owner is
// responsible for from a bill's repayment shape. The second return reports
// whether the record concerns the owner/partner pair at all; records with an
// unrelated repayment, or more than one, are dropped by the caller.
//
// Settlement payments always net to zero. A bill with no repayments was
// covered entirely by the other side, so it credits the owner.
func TransactionBalance(cost decimal.Decimal, payment bool, ownerID, partnerID int64, repayments []Repayment) (decimal.Decimal, bool) {
	if payment {
		return decimal.Zero, true
	}
	switch len(repayments) {
	case 0:
		return cost.Neg().Round(2), true
	case 1:
		r := repayments[0]
		switch {
		case r.To == ownerID && r.From == partnerID:
			// Owner paid, partner repays their half.
			return cost.Sub(r.Amount).Round(2), true
		case r.From == ownerID && r.To == partnerID:
			// Partner paid, owner owes their half.
			return r.Amount.Round(2), true
		default:
			return decimal.Zero, false
		}
	default:
		return decimal.Zero, false
	}
}

// SplitCost halves a bill down the middle. The odd cent lands on the owed
// share so the two halves always sum back to cost.
func SplitCost(cost decimal.Decimal) (paidShare, owedShare decimal.Decimal) {
	owedShare = cost.DivRound(decimal.NewFromInt(2), 2)
	paidShare = cost.Sub(owedShare)
	return paidShare, owedShare
}
