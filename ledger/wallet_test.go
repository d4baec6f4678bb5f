package ledger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/ledger/store"
)

func newWalletService(st *store.Memory, up ledger.Uploader) *ledger.WalletService {
	return ledger.NewWalletService(st, up, ledger.NewCascadeDeleter(st))
}

// =============================================================================
// CREATE
// =============================================================================

func TestWalletCreate_StartsEmpty(t *testing.T) {
	st := store.NewMemory()
	svc := newWalletService(st, nil)

	w, err := svc.Create(context.Background(), "user-1", "Groceries", nil)
	require.NoError(t, err)
	require.NotEmpty(t, w.ID)
	assert.Equal(t, "user-1", w.UserID)
	assert.Equal(t, "Groceries", w.Name)
	assert.True(t, w.Amount.IsZero())
	assert.True(t, w.TotalIncome.IsZero())
	assert.True(t, w.TotalExpenses.IsZero())
	assert.False(t, w.CreatedAt.IsZero())

	stored := getWallet(t, st, w.ID)
	assert.Equal(t, w.Name, stored.Name)
}

func TestWalletCreate_Validation(t *testing.T) {
	svc := newWalletService(store.NewMemory(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "Groceries", nil)
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.Create(ctx, "user-1", "", nil)
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestWalletCreate_WithIcon_UploadsToWalletsFolder(t *testing.T) {
	up := &fakeUploader{url: "https://cdn.example.com/piggy.png"}
	svc := newWalletService(store.NewMemory(), up)

	w, err := svc.Create(context.Background(), "user-1", "Savings", &ledger.ImageUpload{
		File: strings.NewReader("png"), Name: "piggy.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/piggy.png", w.Icon)
	assert.Equal(t, []string{"wallets/piggy.png"}, up.uploads)
}

func TestWalletCreate_IconWithoutUploader_Fails(t *testing.T) {
	svc := newWalletService(store.NewMemory(), nil)

	_, err := svc.Create(context.Background(), "user-1", "Savings", &ledger.ImageUpload{
		File: strings.NewReader("png"), Name: "piggy.png",
	})
	require.ErrorIs(t, err, ledger.ErrUpstream)
}

// =============================================================================
// RENAME
// =============================================================================

func TestWalletRename_PreservesAggregates(t *testing.T) {
	st := store.NewMemory()
	svc := newWalletService(st, nil)
	seedWallet(t, st, "w1", "user-1", "150", "200", "50")

	renamed, err := svc.Rename(context.Background(), "w1", "Household", nil)
	require.NoError(t, err)
	assert.Equal(t, "Household", renamed.Name)
	assert.True(t, renamed.Amount.Equal(dec("150")))
	assert.True(t, renamed.TotalIncome.Equal(dec("200")))
	assert.True(t, renamed.TotalExpenses.Equal(dec("50")))
}

func TestWalletRename_KeepsOldIconWhenNoneUploaded(t *testing.T) {
	st := store.NewMemory()
	svc := newWalletService(st, nil)
	w := ledger.NewWallet("w1", "user-1", "Savings", "https://cdn.example.com/old.png")
	require.NoError(t, st.PutWallet(context.Background(), w))

	renamed, err := svc.Rename(context.Background(), "w1", "Savings v2", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/old.png", renamed.Icon)
}

func TestWalletRename_MissingWallet(t *testing.T) {
	svc := newWalletService(store.NewMemory(), nil)

	_, err := svc.Rename(context.Background(), "ghost", "Anything", nil)
	require.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

// =============================================================================
// LIST AND DELETE
// =============================================================================

func TestWalletList_OnlyOwnWallets(t *testing.T) {
	st := store.NewMemory()
	svc := newWalletService(st, nil)
	seedWallet(t, st, "w1", "user-1", "0", "0", "0")
	seedWallet(t, st, "w2", "user-1", "0", "0", "0")
	seedWallet(t, st, "w3", "user-2", "0", "0", "0")

	ws, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, ws, 2)
	for _, w := range ws {
		assert.Equal(t, "user-1", w.UserID)
	}
}

func TestWalletDelete_CascadesTransactions(t *testing.T) {
	st := store.NewMemory()
	svc := newWalletService(st, nil)
	ctx := context.Background()
	seedWallet(t, st, "w1", "user-1", "100", "100", "0")
	tx := income("w1", "100")
	tx.ID = "tx-1"
	require.NoError(t, st.PutTransaction(ctx, tx))

	require.NoError(t, svc.Delete(ctx, "w1"))

	_, err := st.GetWallet(ctx, "w1")
	require.ErrorIs(t, err, ledger.ErrWalletNotFound)
	_, err = st.GetTransaction(ctx, "tx-1")
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	markers, err := st.ListCascadeMarkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, markers)
}
