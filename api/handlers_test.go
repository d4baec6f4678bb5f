package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) (*store.Memory, http.Handler) {
	t.Helper()
	st := store.NewMemory()
	h := NewHandler(
		ledger.NewWalletService(st, nil, ledger.NewCascadeDeleter(st)),
		ledger.NewTransactionMutator(st, nil),
		ledger.NewStatsAggregator(st),
	)
	return st, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func seedWallet(t *testing.T, st *store.Memory, id, amount string) {
	t.Helper()
	w := ledger.NewWallet(id, "user-1", "wallet-"+id, "")
	w.Amount = decimal.RequireFromString(amount)
	w.TotalIncome = decimal.RequireFromString(amount)
	require.NoError(t, st.PutWallet(context.Background(), w))
}

// =============================================================================
// WALLET ENDPOINTS
// =============================================================================

func TestCreateWallet_JSON(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/wallets/",
		WalletRequest{UserID: "user-1", Name: "Groceries"})
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decodeBody[WalletDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "Groceries", dto.Name)
	assert.Equal(t, "0", dto.Amount)
	assert.Equal(t, "0", dto.TotalIncome)
	assert.Equal(t, "0", dto.TotalExpenses)
}

func TestCreateWallet_MissingName(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/wallets/",
		WalletRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWallet_Multipart(t *testing.T) {
	_, router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("userId", "user-1"))
	require.NoError(t, mw.WriteField("name", "Savings"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/wallets/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Savings", decodeBody[WalletDTO](t, rec).Name)
}

func TestGetWallet_NotFound(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/wallets/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListWallets(t *testing.T) {
	st, router := newTestRouter(t)
	seedWallet(t, st, "w1", "0")
	seedWallet(t, st, "w2", "0")

	rec := doJSON(t, router, http.MethodGet, "/api/wallets/?user=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]WalletDTO](t, rec), 2)

	rec = doJSON(t, router, http.MethodGet, "/api/wallets/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteWallet_Cascades(t *testing.T) {
	st, router := newTestRouter(t)
	ctx := context.Background()
	seedWallet(t, st, "w1", "100")
	require.NoError(t, st.PutTransaction(ctx, &ledger.Transaction{
		ID: "tx1", UserID: "user-1", WalletID: "w1",
		Type: ledger.TypeIncome, Amount: decimal.RequireFromString("100"),
		Date: time.Now().UTC(),
	}))

	rec := doJSON(t, router, http.MethodDelete, "/api/wallets/w1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := st.GetWallet(ctx, "w1")
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
	_, err = st.GetTransaction(ctx, "tx1")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

func txRequest(walletID, typ, amount string) TransactionRequest {
	return TransactionRequest{
		UserID:   "user-1",
		WalletID: walletID,
		Type:     typ,
		Amount:   amount,
		Category: "groceries",
		Date:     time.Now().UTC().Format(time.RFC3339),
	}
}

func TestCreateTransaction_Income(t *testing.T) {
	st, router := newTestRouter(t)
	seedWallet(t, st, "w1", "0")

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/",
		txRequest("w1", "income", "100"))
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decodeBody[TransactionDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "100", dto.Amount)

	w, err := st.GetWallet(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, w.Amount.Equal(decimal.RequireFromString("100")))
}

func TestCreateTransaction_InsufficientBalance(t *testing.T) {
	st, router := newTestRouter(t)
	seedWallet(t, st, "w1", "50")

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/",
		txRequest("w1", "expense", "80"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to create transaction", resp.Error)
}

func TestCreateTransaction_BadPayloads(t *testing.T) {
	st, router := newTestRouter(t)
	seedWallet(t, st, "w1", "0")

	// Malformed amount fails at parse time.
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/",
		txRequest("w1", "income", "not-a-number"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing expense category fails engine validation.
	req := txRequest("w1", "expense", "10")
	req.Category = ""
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown wallet.
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/",
		txRequest("ghost", "income", "10"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTransaction_AmountChange(t *testing.T) {
	st, router := newTestRouter(t)
	seedWallet(t, st, "w1", "0")

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/",
		txRequest("w1", "income", "100"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[TransactionDTO](t, rec)

	rec = doJSON(t, router, http.MethodPut, "/api/transactions/"+created.ID,
		txRequest("w1", "income", "40"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "40", decodeBody[TransactionDTO](t, rec).Amount)

	w, err := st.GetWallet(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, w.Amount.Equal(decimal.RequireFromString("40")))
}

func TestDeleteTransaction(t *testing.T) {
	st, router := newTestRouter(t)
	seedWallet(t, st, "w1", "0")

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/",
		txRequest("w1", "income", "100"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[TransactionDTO](t, rec)

	rec = doJSON(t, router, http.MethodDelete,
		"/api/transactions/"+created.ID+"?walletId=w1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	w, err := st.GetWallet(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, w.Amount.IsZero())
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodDelete, "/api/transactions/ghost?walletId=w1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	st, router := newTestRouter(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, st.PutTransaction(ctx, &ledger.Transaction{
			ID: fmt.Sprintf("tx%d", i), UserID: "user-1", WalletID: "w1",
			Type: ledger.TypeIncome, Amount: decimal.RequireFromString("10"),
			Date: time.Now().UTC().AddDate(0, 0, -i),
		}))
	}

	rec := doJSON(t, router, http.MethodGet, "/api/transactions/?user=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody[[]TransactionDTO](t, rec)
	require.Len(t, txs, 3)
	// Newest first.
	assert.Equal(t, "tx0", txs[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/transactions/?user=user-1&from=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATS ENDPOINTS
// =============================================================================

func TestStatsEndpoints(t *testing.T) {
	st, router := newTestRouter(t)
	require.NoError(t, st.PutTransaction(context.Background(), &ledger.Transaction{
		ID: "tx1", UserID: "user-1", WalletID: "w1",
		Type: ledger.TypeIncome, Amount: decimal.RequireFromString("100"),
		Date: time.Now().UTC(),
	}))

	for _, horizon := range []string{"weekly", "monthly", "yearly"} {
		rec := doJSON(t, router, http.MethodGet, "/api/stats/"+horizon+"?user=user-1", nil)
		require.Equal(t, http.StatusOK, rec.Code, horizon)

		dto := decodeBody[StatsDTO](t, rec)
		assert.NotEmpty(t, dto.Points, horizon)
		assert.Len(t, dto.Transactions, 1, horizon)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/stats/weekly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}
