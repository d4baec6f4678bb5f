/*
wallet.go - Wallet lifecycle

PURPOSE:
  Creating and renaming wallets, uploading wallet icons, and handing
  deletion off to the cascade. A wallet is born empty: amount and both
  totals start at zero, and only the transaction mutator moves them
  afterwards. Name and icon edits deliberately leave the aggregates and
  their version discipline to the updater.
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WalletService manages wallet documents around the engine.
type WalletService struct {
	Store    Store
	Updater  *AggregateUpdater
	Uploader Uploader
	Deleter  *CascadeDeleter

	now func() time.Time
}

func NewWalletService(store Store, uploader Uploader, deleter *CascadeDeleter) *WalletService {
	return &WalletService{
		Store:    store,
		Updater:  NewAggregateUpdater(store),
		Uploader: uploader,
		Deleter:  deleter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create mints a new empty wallet for the user.
func (s *WalletService) Create(ctx context.Context, userID, name string, icon *ImageUpload) (*Wallet, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Message: "is required"}
	}
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}

	iconURL := ""
	if icon != nil {
		url, err := s.upload(ctx, icon)
		if err != nil {
			return nil, err
		}
		iconURL = url
	}

	w := NewWallet(uuid.NewString(), userID, name, iconURL)
	w.CreatedAt = s.now()
	if err := s.Store.PutWallet(ctx, w); err != nil {
		return nil, upstream("write wallet", err)
	}
	return w, nil
}

// Rename updates the wallet's display fields. The aggregates are carried
// through a CAS write so a concurrent transaction mutation is never lost.
func (s *WalletService) Rename(ctx context.Context, id, name string, icon *ImageUpload) (*Wallet, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}

	iconURL := ""
	if icon != nil {
		url, err := s.upload(ctx, icon)
		if err != nil {
			return nil, err
		}
		iconURL = url
	}

	return s.Updater.Mutate(ctx, id, func(w *Wallet) (*Wallet, error) {
		next := w.Clone()
		next.Name = name
		if iconURL != "" {
			next.Icon = iconURL
		}
		return next, nil
	})
}

// Get returns a single wallet.
func (s *WalletService) Get(ctx context.Context, id string) (*Wallet, error) {
	w, err := s.Store.GetWallet(ctx, id)
	if err != nil {
		return nil, upstream("read wallet", err)
	}
	return w, nil
}

// List returns the user's wallets, newest first.
func (s *WalletService) List(ctx context.Context, userID string) ([]*Wallet, error) {
	ws, err := s.Store.WalletsByUser(ctx, userID)
	if err != nil {
		return nil, upstream("query wallets", err)
	}
	return ws, nil
}

// Delete removes the wallet and cascades to its transactions.
func (s *WalletService) Delete(ctx context.Context, id string) error {
	return s.Deleter.DeleteWallet(ctx, id)
}

func (s *WalletService) upload(ctx context.Context, icon *ImageUpload) (string, error) {
	if s.Uploader == nil {
		return "", &UpstreamError{Op: "upload wallet icon", Err: errNoUploader}
	}
	url, err := s.Uploader.Upload(ctx, icon.File, icon.Name, "wallets")
	if err != nil {
		return "", &UpstreamError{Op: "upload wallet icon", Err: err}
	}
	return url, nil
}
