package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/ledger/store"
	"github.com/pocketbook/ledger-engine/queue"
)

func seedCascadeState(t *testing.T, st *store.Memory, walletID string, txCount int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < txCount; i++ {
		require.NoError(t, st.PutTransaction(ctx, &ledger.Transaction{
			ID:       fmt.Sprintf("%s-tx-%d", walletID, i),
			UserID:   "user-1",
			WalletID: walletID,
			Type:     ledger.TypeIncome,
			Amount:   decimal.NewFromInt(10),
			Date:     time.Now().UTC(),
		}))
	}
	require.NoError(t, st.PutCascadeMarker(ctx, walletID))
}

func TestHandleCascadeMessage_DrainsWallet(t *testing.T) {
	st := store.NewMemory()
	w := NewCascadeWorker(ledger.NewCascadeDeleter(st))
	ctx := context.Background()
	seedCascadeState(t, st, "w1", 7)

	err := w.HandleCascadeMessage(ctx, queue.NewCascadeMessage("w1"))
	require.NoError(t, err)

	txs, err := st.TransactionsByWallet(ctx, "w1", 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	markers, err := st.ListCascadeMarkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestHandleCascadeMessage_Redelivery(t *testing.T) {
	st := store.NewMemory()
	w := NewCascadeWorker(ledger.NewCascadeDeleter(st))
	ctx := context.Background()
	seedCascadeState(t, st, "w1", 3)

	msg := queue.NewCascadeMessage("w1")
	require.NoError(t, w.HandleCascadeMessage(ctx, msg))
	require.NoError(t, w.HandleCascadeMessage(ctx, msg))
}

func TestRunResumeLoop_ReplaysMarkersOnStartup(t *testing.T) {
	st := store.NewMemory()
	w := NewCascadeWorker(ledger.NewCascadeDeleter(st))
	w.ResumeInterval = time.Hour
	seedCascadeState(t, st, "w1", 5)
	seedCascadeState(t, st, "w2", 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.RunResumeLoop(ctx) }()

	require.Eventually(t, func() bool {
		markers, err := st.ListCascadeMarkers(context.Background())
		return err == nil && len(markers) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
