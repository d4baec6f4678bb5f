/*
cascade.go - Wallet deletion cascade

PURPOSE:
  When a wallet is deleted, every transaction referencing it must go too,
  even when the count exceeds one batch's capacity. The cascade is a loop:
  query a page of transactions for the wallet, batch-delete it, repeat
  until a query comes back empty.

CRASH SAFETY:
  A persistent marker is written before the wallet record disappears. If
  the process dies mid-loop, Resume finds the marker and replays the
  cascade; re-running simply finds and deletes whatever pages remain, so
  the loop is naturally idempotent. The marker is only cleared once a
  query observes zero remaining transactions.

EXECUTION:
  With a publisher configured, the cascade runs as a queued background job
  picked up by the sweeper worker. Without one, it runs inline.

SEE ALSO:
  - worker/worker.go: the queued consumer
  - store.go: CascadeStore markers, DeleteTransactions batches
*/
package ledger

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultCascadeBatchSize is the page size for cascade deletion.
const DefaultCascadeBatchSize = 50

// CascadePublisher hands a cascade job to a background worker.
type CascadePublisher interface {
	PublishCascade(ctx context.Context, walletID string) error
}

// CascadeDeleter removes a wallet and all transactions referencing it.
type CascadeDeleter struct {
	Store     Store
	BatchSize int

	// Publisher is optional. When set, DeleteWallet enqueues the cascade
	// instead of running it inline.
	Publisher CascadePublisher
}

func NewCascadeDeleter(store Store) *CascadeDeleter {
	return &CascadeDeleter{Store: store, BatchSize: DefaultCascadeBatchSize}
}

func (d *CascadeDeleter) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultCascadeBatchSize
}

// DeleteWallet persists a cascade marker, deletes the wallet record, and
// then removes the dependent transactions, either via the background
// queue or inline. The wallet disappears before its transactions are
// necessarily gone; the marker guarantees the cascade is never abandoned.
func (d *CascadeDeleter) DeleteWallet(ctx context.Context, walletID string) error {
	if _, err := d.Store.GetWallet(ctx, walletID); err != nil {
		return upstream("read wallet", err)
	}

	if err := d.Store.PutCascadeMarker(ctx, walletID); err != nil {
		return upstream("write cascade marker", err)
	}
	if err := d.Store.DeleteWallet(ctx, walletID); err != nil {
		return upstream("delete wallet", err)
	}

	if d.Publisher != nil {
		if err := d.Publisher.PublishCascade(ctx, walletID); err != nil {
			// The marker survives; Resume will pick the cascade up.
			slog.ErrorContext(ctx, "failed to enqueue cascade, leaving marker for resume",
				"wallet_id", walletID, "error", err)
		}
		return nil
	}
	return d.Cascade(ctx, walletID)
}

// Cascade deletes the wallet's transactions in pages until a query finds
// none, then clears the marker. Safe to call any number of times.
func (d *CascadeDeleter) Cascade(ctx context.Context, walletID string) error {
	for {
		page, err := d.Store.TransactionsByWallet(ctx, walletID, d.batchSize())
		if err != nil {
			return upstream("query transactions", err)
		}
		if len(page) == 0 {
			if err := d.Store.DeleteCascadeMarker(ctx, walletID); err != nil {
				return upstream("clear cascade marker", err)
			}
			return nil
		}

		ids := make([]string, len(page))
		for i, tx := range page {
			ids[i] = tx.ID
		}
		if err := d.Store.DeleteTransactions(ctx, ids); err != nil {
			return upstream("batch delete transactions", err)
		}
	}
}

// Resume replays every unfinished cascade. Called by the sweeper on
// startup and periodically after that.
func (d *CascadeDeleter) Resume(ctx context.Context) error {
	markers, err := d.Store.ListCascadeMarkers(ctx)
	if err != nil {
		return upstream("list cascade markers", err)
	}

	var errs []error
	for _, walletID := range markers {
		if err := d.Cascade(ctx, walletID); err != nil {
			slog.ErrorContext(ctx, "cascade resume failed", "wallet_id", walletID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
