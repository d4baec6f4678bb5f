/*
Package ledger is the wallet reconciliation engine.

PURPOSE:
  This package keeps per-wallet cached balance aggregates consistent with a
  mutable log of income/expense transactions. Every transaction create,
  update, or delete adjusts exactly one or two wallet aggregates, rejects
  operations that would drive a wallet negative, and supports rewriting
  history (changing a transaction's amount, type, or owning wallet after
  the fact) without corrupting totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Wallet: the cached aggregate (amount, totalIncome, totalExpenses)
  - Transaction: a single income or expense record owned by one wallet
  - Effect: the tagged contribution a transaction makes to its wallet
  - Version: optimistic-concurrency stamp on the wallet document

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, no floating-point money
  2. Tagged effects: income vs expense is a variant, never a field-name string
  3. Sign discipline: amounts are always positive; direction lives in the
     effect kind, so revert logic cannot double-negate
  4. Optimistic concurrency: wallet writes carry an expected version and are
     retried on conflict

SEE ALSO:
  - balance.go: validation and the effect/aggregate arithmetic
  - mutator.go: create/update/delete orchestration
  - store.go: persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION TYPE - Tagged income/expense variant
// =============================================================================

type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known variants.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// =============================================================================
// WALLET - Cached balance aggregate
// =============================================================================

// Wallet carries the cached running totals for one wallet.
//
// INVARIANT: Amount == TotalIncome - TotalExpenses whenever no writer is
// mid-operation. Amount never goes negative as the result of an expense.
type Wallet struct {
	ID     string
	UserID string
	Name   string
	Icon   string

	Amount        decimal.Decimal
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal

	// Version is the optimistic-concurrency stamp. Every aggregate write
	// names the version it read; the store rejects the write if the stored
	// version moved in between.
	Version int64

	CreatedAt time.Time
}

// NewWallet returns an empty wallet for the given owner. Aggregates start
// at zero; the id is assigned by the caller.
func NewWallet(id, userID, name, icon string) *Wallet {
	return &Wallet{
		ID:            id,
		UserID:        userID,
		Name:          name,
		Icon:          icon,
		Amount:        decimal.Zero,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
}

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// freely without racing the store's own copy.
func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}

// =============================================================================
// TRANSACTION - One income or expense record
// =============================================================================

// Transaction is a single ledger record. It belongs to exactly one wallet
// at any instant but may be moved to a different wallet by an update.
type Transaction struct {
	ID       string
	UserID   string
	WalletID string

	Type   TransactionType
	Amount decimal.Decimal

	// Category is only meaningful for expense transactions.
	Category    string
	Description string

	// Date is user-assigned and may differ from CreatedAt.
	Date time.Time

	// Image is the receipt image URL, if one was attached.
	Image string

	CreatedAt time.Time
}

// Effect returns the contribution this transaction makes to its wallet.
func (t *Transaction) Effect() Effect {
	return Effect{Kind: t.Type, Amount: t.Amount}
}

// =============================================================================
// EFFECT - Signed contribution carried as a tagged variant
// =============================================================================

// Effect is the contribution a transaction makes to a wallet aggregate.
// Amount is always positive; Kind carries the direction.
type Effect struct {
	Kind   TransactionType
	Amount decimal.Decimal
}

// ApplyTo returns w's aggregate after the effect lands: income adds to
// Amount and TotalIncome, expense subtracts from Amount and adds to
// TotalExpenses. The receiver is not modified.
func (e Effect) ApplyTo(w *Wallet) *Wallet {
	next := w.Clone()
	switch e.Kind {
	case TypeIncome:
		next.Amount = next.Amount.Add(e.Amount)
		next.TotalIncome = next.TotalIncome.Add(e.Amount)
	case TypeExpense:
		next.Amount = next.Amount.Sub(e.Amount)
		next.TotalExpenses = next.TotalExpenses.Add(e.Amount)
	}
	return next
}

// RevertFrom returns w's aggregate as if the effect had never happened.
// Exact inverse of ApplyTo.
func (e Effect) RevertFrom(w *Wallet) *Wallet {
	next := w.Clone()
	switch e.Kind {
	case TypeIncome:
		next.Amount = next.Amount.Sub(e.Amount)
		next.TotalIncome = next.TotalIncome.Sub(e.Amount)
	case TypeExpense:
		next.Amount = next.Amount.Add(e.Amount)
		next.TotalExpenses = next.TotalExpenses.Sub(e.Amount)
	}
	return next
}
