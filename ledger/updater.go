/*
updater.go - Wallet aggregate updater

PURPOSE:
  The only component that writes wallet aggregates. Every write is a
  compare-and-swap: read the wallet, compute the next aggregate, write it
  back naming the version that was read. If another writer got there
  first, re-read and retry with a bounded budget.

WHY CAS:
  Two concurrent creates against the same wallet each read the balance,
  independently validate, and independently write. Without the version
  check the second write silently discards the first (lost update). With
  it, the second write fails, re-reads the fresh balance, and re-validates
  before retrying.

SEE ALSO:
  - store.go: UpdateWallet contract
  - mutator.go: builds compute closures for revert-then-reapply
*/
package ledger

import (
	"context"
	"errors"
)

// DefaultMaxAttempts bounds the CAS retry loop.
const DefaultMaxAttempts = 5

// AggregateUpdater applies effects to wallet aggregates with optimistic
// concurrency.
type AggregateUpdater struct {
	Wallets     WalletStore
	MaxAttempts int
}

func NewAggregateUpdater(wallets WalletStore) *AggregateUpdater {
	return &AggregateUpdater{Wallets: wallets, MaxAttempts: DefaultMaxAttempts}
}

func (u *AggregateUpdater) attempts() int {
	if u.MaxAttempts > 0 {
		return u.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Mutate re-reads the wallet, runs compute on the fresh copy, and writes
// the result back under the version that was read. Retries on conflict.
// compute errors abort immediately and no write happens for that attempt.
func (u *AggregateUpdater) Mutate(ctx context.Context, walletID string, compute func(*Wallet) (*Wallet, error)) (*Wallet, error) {
	var lastErr error
	for attempt := 0; attempt < u.attempts(); attempt++ {
		w, err := u.Wallets.GetWallet(ctx, walletID)
		if err != nil {
			return nil, upstream("read wallet", err)
		}

		next, err := compute(w)
		if err != nil {
			return nil, err
		}

		if err := u.Wallets.UpdateWallet(ctx, next, w.Version); err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				lastErr = err
				continue
			}
			return nil, upstream("write wallet", err)
		}
		return next, nil
	}
	return nil, lastErr
}

// Apply lands the effect on the wallet. Expense effects are validated
// against the balance read in the same attempt that writes, so the
// non-negative invariant holds even under contention.
func (u *AggregateUpdater) Apply(ctx context.Context, walletID string, e Effect) (*Wallet, error) {
	return u.Mutate(ctx, walletID, func(w *Wallet) (*Wallet, error) {
		if !CanApply(w.Amount, e) {
			return nil, &InsufficientBalanceError{
				WalletID:  w.ID,
				Available: w.Amount,
				Requested: e.Amount,
			}
		}
		return e.ApplyTo(w), nil
	})
}

// Revert undoes a previously-applied effect. Reverting an income that
// would overdraw the wallet fails with ErrInvalidOperation.
func (u *AggregateUpdater) Revert(ctx context.Context, walletID string, e Effect) (*Wallet, error) {
	return u.Mutate(ctx, walletID, func(w *Wallet) (*Wallet, error) {
		if !CanRevert(w.Amount, e) {
			return nil, ErrInvalidOperation
		}
		return e.RevertFrom(w), nil
	})
}
