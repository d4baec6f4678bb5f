// Package store provides an in-memory ledger.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pocketbook/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	wallets      map[string]*ledger.Wallet
	transactions map[string]*ledger.Transaction
	markers      map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		wallets:      make(map[string]*ledger.Wallet),
		transactions: make(map[string]*ledger.Transaction),
		markers:      make(map[string]time.Time),
	}
}

// =============================================================================
// WALLETS
// =============================================================================

func (m *Memory) GetWallet(_ context.Context, id string) (*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	return w.Clone(), nil
}

func (m *Memory) PutWallet(_ context.Context, w *ledger.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := w.Clone()
	if prev, ok := m.wallets[w.ID]; ok {
		stored.Version = prev.Version + 1
	} else {
		stored.Version = 1
	}
	m.wallets[w.ID] = stored
	w.Version = stored.Version
	return nil
}

func (m *Memory) UpdateWallet(_ context.Context, w *ledger.Wallet, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.wallets[w.ID]
	if !ok {
		return ledger.ErrWalletNotFound
	}
	if prev.Version != expectedVersion {
		return ledger.ErrConcurrentModification
	}
	stored := w.Clone()
	stored.Version = expectedVersion + 1
	m.wallets[w.ID] = stored
	w.Version = stored.Version
	return nil
}

func (m *Memory) DeleteWallet(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wallets, id)
	return nil
}

func (m *Memory) WalletsByUser(_ context.Context, userID string) ([]*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ledger.Wallet
	for _, w := range m.wallets {
		if w.UserID == userID {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	c := *tx
	return &c, nil
}

func (m *Memory) PutTransaction(_ context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *tx
	m.transactions[tx.ID] = &c
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, id)
	return nil
}

// DeleteTransactions removes the whole batch under one lock acquisition,
// so the batch is all-or-nothing relative to readers.
func (m *Memory) DeleteTransactions(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.transactions, id)
	}
	return nil
}

func (m *Memory) TransactionsByWallet(_ context.Context, walletID string, limit int) ([]*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ledger.Transaction
	for _, tx := range m.transactions {
		if tx.WalletID != walletID {
			continue
		}
		c := *tx
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) TransactionsByUser(_ context.Context, userID string, from, to time.Time) ([]*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ledger.Transaction
	for _, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		if !from.IsZero() && tx.Date.Before(from) {
			continue
		}
		if !to.IsZero() && tx.Date.After(to) {
			continue
		}
		c := *tx
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// =============================================================================
// CASCADE MARKERS
// =============================================================================

func (m *Memory) PutCascadeMarker(_ context.Context, walletID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[walletID]; !ok {
		m.markers[walletID] = time.Now().UTC()
	}
	return nil
}

func (m *Memory) DeleteCascadeMarker(_ context.Context, walletID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, walletID)
	return nil
}

func (m *Memory) ListCascadeMarkers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.markers))
	for id := range m.markers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
