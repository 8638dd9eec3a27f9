package services

import (
	"shop_ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Allocation is how one payment is split between a customer's debit and
// credit.
type Allocation struct {
	Remaining    decimal.Decimal
	Applied      decimal.Decimal
	Overflow     decimal.Decimal
	TotalPaid    decimal.Decimal
	FullySettled bool
}

// AllocatePayment applies pay against an order with billTotal, of which
// previouslyPaid was already received, for a customer currently owing
// currentDebit. Applied never exceeds what is left on the bill or what the
// customer owes; whatever is not applied goes to credit.
func AllocatePayment(pay, billTotal, previouslyPaid, currentDebit decimal.Decimal) Allocation {
	remaining := decimal.Max(decimal.Zero, billTotal.Sub(previouslyPaid))
	applied := decimal.Min(pay, remaining, currentDebit)
	if applied.IsNegative() {
		applied = decimal.Zero
	}
	totalPaid := previouslyPaid.Add(pay)
	return Allocation{
		Remaining:    remaining,
		Applied:      applied,
		Overflow:     pay.Sub(applied),
		TotalPaid:    totalPaid,
		FullySettled: totalPaid.GreaterThanOrEqual(billTotal),
	}
}

// Delta is the customer balance change for this allocation.
func (a Allocation) Delta() models.BalanceDelta {
	return models.BalanceDelta{Debit: a.Applied.Neg(), Credit: a.Overflow}
}
