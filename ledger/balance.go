/*
balance.go - Balance validation

PURPOSE:
  The single place that decides whether an effect may land on a wallet
  without violating the non-negative-balance invariant. Pure functions;
  callers bring the balance they read.

ADVISORY NOTE:
  A CanApply check against a snapshot is advisory: another writer may move
  the balance between the read and the write. The aggregate updater
  re-runs these checks inside its compare-and-swap loop, so the check that
  actually gates the write always sees the version it writes against.

SEE ALSO:
  - updater.go: where the checks become authoritative
*/
package ledger

import "github.com/shopspring/decimal"

// CanApply reports whether the effect may be applied to a wallet with the
// given balance. An expense of amount a against balance b is permitted iff
// b - a >= 0. Income is always permitted.
func CanApply(balance decimal.Decimal, e Effect) bool {
	if e.Kind == TypeExpense {
		return balance.Sub(e.Amount).GreaterThanOrEqual(decimal.Zero)
	}
	return true
}

// CanRevert reports whether undoing the effect keeps the wallet's balance
// non-negative. Reverting an expense adds money back and is always safe;
// reverting an income from a wallet that has expenses recorded against it
// can overdraw it.
func CanRevert(balance decimal.Decimal, e Effect) bool {
	if e.Kind == TypeIncome {
		return balance.Sub(e.Amount).GreaterThanOrEqual(decimal.Zero)
	}
	return true
}
