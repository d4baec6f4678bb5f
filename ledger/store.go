/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the contract between the engine and the document store. The
  engine never touches a concrete database; everything goes through these
  interfaces so SQLite, Postgres, or an in-memory map can sit underneath.

KEY INTERFACES:
  WalletStore:      Wallet documents, with compare-and-swap aggregate writes
  TransactionStore: Transaction documents, filtered queries, batch deletes
  CascadeStore:     Persistent "cascade in progress" markers
  Store:            All of the above (what implementations provide)
  Uploader:         Receipt/icon image upload (media host)

OPTIMISTIC CONCURRENCY:
  UpdateWallet names the version the caller read. If the stored version
  differs, the write is rejected with ErrConcurrentModification and the
  caller re-reads and retries. This is what closes the lost-update race
  between two writers that both read the same balance.

ATOMIC BATCHES:
  DeleteTransactions is all-or-nothing per call, up to the store's batch
  capacity. The cascade deleter leans on this so each page either fully
  disappears or fully survives a crash.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - ledger/store/memory.go: in-memory for tests and dev

SEE ALSO:
  - updater.go: the CAS retry loop over UpdateWallet
  - cascade.go: marker lifecycle
*/
package ledger

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// WALLET STORE
// =============================================================================

type WalletStore interface {
	// GetWallet returns the wallet or ErrWalletNotFound.
	GetWallet(ctx context.Context, id string) (*Wallet, error)

	// PutWallet creates or fully overwrites a wallet document and assigns
	// it a fresh version.
	PutWallet(ctx context.Context, w *Wallet) error

	// UpdateWallet overwrites the wallet's aggregate fields iff the stored
	// version still equals expectedVersion, bumping the version on success.
	// Fails with ErrConcurrentModification on a version mismatch and
	// ErrWalletNotFound if the wallet is gone.
	UpdateWallet(ctx context.Context, w *Wallet, expectedVersion int64) error

	// DeleteWallet removes the wallet document. Missing wallets are not an
	// error; the cascade path must be idempotent.
	DeleteWallet(ctx context.Context, id string) error

	// WalletsByUser returns the user's wallets, newest first.
	WalletsByUser(ctx context.Context, userID string) ([]*Wallet, error)
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type TransactionStore interface {
	// GetTransaction returns the transaction or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// PutTransaction creates or overwrites a transaction document.
	PutTransaction(ctx context.Context, tx *Transaction) error

	// DeleteTransaction removes a single transaction document.
	DeleteTransaction(ctx context.Context, id string) error

	// DeleteTransactions removes a batch of transactions as a single
	// atomic unit, up to the store's batch capacity.
	DeleteTransactions(ctx context.Context, ids []string) error

	// TransactionsByWallet returns up to limit transactions referencing
	// the wallet, in no particular order. limit <= 0 means no limit.
	TransactionsByWallet(ctx context.Context, walletID string, limit int) ([]*Transaction, error)

	// TransactionsByUser returns the user's transactions with
	// from <= Date <= to, newest first. Zero times mean unbounded.
	TransactionsByUser(ctx context.Context, userID string, from, to time.Time) ([]*Transaction, error)
}

// =============================================================================
// CASCADE STORE - Crash-resumable wallet deletion markers
// =============================================================================

type CascadeStore interface {
	// PutCascadeMarker records that walletID's transactions are being
	// cascade-deleted. Idempotent.
	PutCascadeMarker(ctx context.Context, walletID string) error

	// DeleteCascadeMarker clears the marker once the cascade observed zero
	// remaining transactions.
	DeleteCascadeMarker(ctx context.Context, walletID string) error

	// ListCascadeMarkers returns wallet ids with unfinished cascades.
	ListCascadeMarkers(ctx context.Context) ([]string, error)
}

// Store is what concrete backends implement.
type Store interface {
	WalletStore
	TransactionStore
	CascadeStore
}

// =============================================================================
// UPLOADER - Media host
// =============================================================================

// Uploader pushes an image to the media host and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, name, folder string) (string, error)
}
