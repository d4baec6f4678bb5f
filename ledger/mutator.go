/*
mutator.go - Transaction create / update / delete orchestration

PURPOSE:
  The hardest part of the engine. Every mutation must leave the owning
  wallet(s) with aggregates that agree with the transaction log, including
  edits that rewrite history: changing a transaction's amount, its type,
  or the wallet it belongs to after the fact.

THE REVERT-THEN-REAPPLY ALGORITHM (Update):
  1. Revert the old effect on the old wallet, as if the transaction had
     never happened.
  2. Validate the new effect against the target wallet. When the target is
     the old wallet, validate against the REVERTED balance: the revert
     already freed up capacity.
  3. Reverting an old income must not overdraw a wallet that has expenses
     recorded against it. Checked before anything is written.
  4. Apply the new effect to the target wallet.
  5. Persist the transaction's new field set under the same id.

ATOMICITY:
  Same-wallet edits collapse steps 1-4 into one compare-and-swap wallet
  write, so there is no window where the revert is visible without the
  reapply. Cross-wallet edits write the source then the target; if the
  target write fails the source revert is compensated (best effort,
  logged). All validations run before the first wallet write, and again
  inside the CAS loop that performs it.

CREATE ORDERING:
  The receipt image is uploaded BEFORE the wallet aggregate moves, so an
  upload failure leaves the wallet untouched. If the record write fails
  after the aggregate landed, the aggregate is compensated.

DELETE ORDERING:
  Wallet update first, record delete second. A crash in between leaves
  "transaction still exists" with a reverted aggregate, which the next
  read of the invariant flags loudly, rather than silently losing money.

SEE ALSO:
  - updater.go: the CAS mutate/apply/revert primitives
  - balance.go: CanApply / CanRevert
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ImageUpload is a receipt or icon image attached to a mutation.
type ImageUpload struct {
	File io.Reader
	Name string
}

// TransactionMutator orchestrates single-transaction mutations.
type TransactionMutator struct {
	Store    Store
	Updater  *AggregateUpdater
	Uploader Uploader

	now func() time.Time
}

func NewTransactionMutator(store Store, uploader Uploader) *TransactionMutator {
	return &TransactionMutator{
		Store:    store,
		Updater:  NewAggregateUpdater(store),
		Uploader: uploader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates the transaction, applies its effect to the owning
// wallet, and persists the record under a newly minted id.
func (m *TransactionMutator) Create(ctx context.Context, tx *Transaction, image *ImageUpload) (*Transaction, error) {
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	rec := *tx
	rec.ID = uuid.NewString()
	rec.CreatedAt = m.now()
	if rec.Date.IsZero() {
		rec.Date = rec.CreatedAt
	}

	// Stage the image before the wallet moves: an upload failure must
	// leave the aggregate untouched.
	if image != nil {
		url, err := m.upload(ctx, image, "transactions")
		if err != nil {
			return nil, err
		}
		rec.Image = url
	}

	effect := rec.Effect()
	if _, err := m.Updater.Apply(ctx, rec.WalletID, effect); err != nil {
		return nil, err
	}

	if err := m.Store.PutTransaction(ctx, &rec); err != nil {
		// The aggregate already moved without a record to back it.
		// Compensate so the wallet stays consistent.
		if _, rerr := m.Updater.Revert(ctx, rec.WalletID, effect); rerr != nil {
			slog.ErrorContext(ctx, "failed to compensate wallet after record write failure",
				"wallet_id", rec.WalletID, "error", rerr)
		}
		return nil, upstream("write transaction", err)
	}

	return &rec, nil
}

// =============================================================================
// UPDATE - revert-then-reapply
// =============================================================================

// Update rewrites the transaction identified by id. Financially neutral
// edits (description, date, category, image) skip reconciliation; a change
// to amount, type, or wallet triggers revert-then-reapply.
func (m *TransactionMutator) Update(ctx context.Context, id string, next *Transaction, image *ImageUpload) (*Transaction, error) {
	old, err := m.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, upstream("read transaction", err)
	}
	if err := validateTransaction(next); err != nil {
		return nil, err
	}

	if image != nil {
		url, err := m.upload(ctx, image, "transactions")
		if err != nil {
			return nil, err
		}
		next.Image = url
	} else if next.Image == "" {
		next.Image = old.Image
	}

	rec := mergeTransaction(old, next)

	changed := old.Type != next.Type ||
		!old.Amount.Equal(next.Amount) ||
		old.WalletID != next.WalletID

	if !changed {
		if err := m.Store.PutTransaction(ctx, rec); err != nil {
			return nil, upstream("write transaction", err)
		}
		return rec, nil
	}

	oldEffect := old.Effect()
	newEffect := rec.Effect()

	if old.WalletID == rec.WalletID {
		err = m.reconcileSameWallet(ctx, old, rec, oldEffect, newEffect)
	} else {
		err = m.reconcileCrossWallet(ctx, old, rec, oldEffect, newEffect)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Store.PutTransaction(ctx, rec); err != nil {
		m.compensateReconcile(ctx, old, rec, oldEffect, newEffect)
		return nil, upstream("write transaction", err)
	}
	return rec, nil
}

// reconcileSameWallet performs revert and reapply as one CAS write: the
// new effect is validated against the reverted balance, and no
// intermediate reverted-only state is ever visible.
func (m *TransactionMutator) reconcileSameWallet(ctx context.Context, old, next *Transaction, oldEffect, newEffect Effect) error {
	_, err := m.Updater.Mutate(ctx, old.WalletID, func(w *Wallet) (*Wallet, error) {
		reverted := oldEffect.RevertFrom(w)
		if next.Type == TypeExpense && !CanApply(reverted.Amount, newEffect) {
			return nil, &InsufficientBalanceError{
				WalletID:  w.ID,
				Available: reverted.Amount,
				Requested: newEffect.Amount,
			}
		}
		if old.Type == TypeIncome && next.Type != TypeIncome && reverted.Amount.IsNegative() {
			return nil, fmt.Errorf("wallet %s has expenses that depend on this income: %w", w.ID, ErrInvalidOperation)
		}
		return newEffect.ApplyTo(reverted), nil
	})
	return err
}

// reconcileCrossWallet validates both wallets before the first write, then
// commits the revert on the source and the apply on the target. Both
// writes re-check inside their own CAS loops.
func (m *TransactionMutator) reconcileCrossWallet(ctx context.Context, old, next *Transaction, oldEffect, newEffect Effect) error {
	src, err := m.Store.GetWallet(ctx, old.WalletID)
	if err != nil {
		return upstream("read source wallet", err)
	}
	tgt, err := m.Store.GetWallet(ctx, next.WalletID)
	if err != nil {
		return upstream("read target wallet", err)
	}

	if next.Type == TypeExpense && !CanApply(tgt.Amount, newEffect) {
		return &InsufficientBalanceError{
			WalletID:  tgt.ID,
			Available: tgt.Amount,
			Requested: newEffect.Amount,
		}
	}
	if old.Type == TypeIncome && !CanRevert(src.Amount, oldEffect) {
		return fmt.Errorf("wallet %s has expenses that depend on this income: %w", src.ID, ErrInvalidOperation)
	}

	if _, err := m.Updater.Revert(ctx, old.WalletID, oldEffect); err != nil {
		if errors.Is(err, ErrInvalidOperation) {
			return fmt.Errorf("wallet %s has expenses that depend on this income: %w", src.ID, ErrInvalidOperation)
		}
		return err
	}

	if _, err := m.Updater.Apply(ctx, next.WalletID, newEffect); err != nil {
		// Undo the source revert so the caller observes no change.
		if _, rerr := m.Updater.Mutate(ctx, old.WalletID, func(w *Wallet) (*Wallet, error) {
			return oldEffect.ApplyTo(w), nil
		}); rerr != nil {
			slog.ErrorContext(ctx, "failed to compensate source wallet after target apply failure",
				"wallet_id", old.WalletID, "error", rerr)
		}
		return err
	}
	return nil
}

// compensateReconcile rolls the wallets back after both aggregate writes
// succeeded but the record write failed. Best effort; failures are logged
// and the inconsistency is surfaced by the returned upstream error.
func (m *TransactionMutator) compensateReconcile(ctx context.Context, old, next *Transaction, oldEffect, newEffect Effect) {
	if old.WalletID == next.WalletID {
		_, err := m.Updater.Mutate(ctx, old.WalletID, func(w *Wallet) (*Wallet, error) {
			return oldEffect.ApplyTo(newEffect.RevertFrom(w)), nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to compensate wallet after record write failure",
				"wallet_id", old.WalletID, "error", err)
		}
		return
	}
	if _, err := m.Updater.Mutate(ctx, next.WalletID, func(w *Wallet) (*Wallet, error) {
		return newEffect.RevertFrom(w), nil
	}); err != nil {
		slog.ErrorContext(ctx, "failed to compensate target wallet after record write failure",
			"wallet_id", next.WalletID, "error", err)
	}
	if _, err := m.Updater.Mutate(ctx, old.WalletID, func(w *Wallet) (*Wallet, error) {
		return oldEffect.ApplyTo(w), nil
	}); err != nil {
		slog.ErrorContext(ctx, "failed to compensate source wallet after record write failure",
			"wallet_id", old.WalletID, "error", err)
	}
}

// =============================================================================
// DELETE
// =============================================================================

// Delete reverses the transaction's effect on its wallet, then removes the
// record. The wallet write goes first so a crash between the two leaves a
// record that still explains the aggregate.
func (m *TransactionMutator) Delete(ctx context.Context, id, walletID string) error {
	tx, err := m.Store.GetTransaction(ctx, id)
	if err != nil {
		return upstream("read transaction", err)
	}
	if walletID != "" && walletID != tx.WalletID {
		return &ValidationError{Field: "walletId", Message: "does not match the transaction's wallet"}
	}

	if _, err := m.Updater.Revert(ctx, tx.WalletID, tx.Effect()); err != nil {
		if errors.Is(err, ErrInvalidOperation) {
			return fmt.Errorf("cannot delete: reversing this income would overdraw wallet %s: %w", tx.WalletID, ErrInvalidOperation)
		}
		return err
	}

	if err := m.Store.DeleteTransaction(ctx, id); err != nil {
		return upstream("delete transaction", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

var errNoUploader = errors.New("no uploader configured")

func (m *TransactionMutator) upload(ctx context.Context, image *ImageUpload, folder string) (string, error) {
	if m.Uploader == nil {
		return "", &UpstreamError{Op: "upload image", Err: errNoUploader}
	}
	url, err := m.Uploader.Upload(ctx, image.File, image.Name, folder)
	if err != nil {
		return "", &UpstreamError{Op: "upload image", Err: err}
	}
	return url, nil
}

func validateTransaction(tx *Transaction) error {
	if !tx.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if tx.WalletID == "" {
		return &ValidationError{Field: "walletId", Message: "is required"}
	}
	if !tx.Type.Valid() {
		return &ValidationError{Field: "type", Message: `must be "income" or "expense"`}
	}
	if tx.Type == TypeExpense && tx.Category == "" {
		return &ValidationError{Field: "category", Message: "is required for expense transactions"}
	}
	return nil
}

// mergeTransaction carries the full new field set under the old identity.
func mergeTransaction(old, next *Transaction) *Transaction {
	rec := *old
	rec.WalletID = next.WalletID
	rec.Type = next.Type
	rec.Amount = next.Amount
	rec.Category = next.Category
	rec.Description = next.Description
	rec.Image = next.Image
	if !next.Date.IsZero() {
		rec.Date = next.Date
	}
	if next.UserID != "" {
		rec.UserID = next.UserID
	}
	if rec.Type != TypeExpense {
		rec.Category = ""
	}
	return &rec
}
