/*
handlers.go - HTTP handlers

PURPOSE:
  Translates HTTP requests into engine calls and engine errors back into
  status codes. Handlers follow one shape:
  1. Parse and validate input
  2. Call the engine
  3. Serialize response or map the error kind

ERROR HANDLING:
  - 400: validation failures
  - 404: missing wallet or transaction
  - 409: insufficient balance, disallowed operation, CAS budget exhausted
  - 500: store or media-host failures

SECURITY NOTE:
  No authentication; the surrounding application owns identity and passes
  the user id through. Out of scope here.

SEE ALSO:
  - dto.go: request/response types
  - server.go: routing
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pocketbook/ledger-engine/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Wallets *ledger.WalletService
	Mutator *ledger.TransactionMutator
	Stats   *ledger.StatsAggregator
}

func NewHandler(wallets *ledger.WalletService, mutator *ledger.TransactionMutator, stats *ledger.StatsAggregator) *Handler {
	return &Handler{Wallets: wallets, Mutator: mutator, Stats: stats}
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	req, image, err := parseWalletRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid wallet payload", err)
		return
	}

	wallet, err := h.Wallets.Create(r.Context(), req.UserID, req.Name, image)
	if err != nil {
		writeEngineError(w, "Failed to create wallet", err)
		return
	}
	writeJSON(w, http.StatusCreated, walletDTO(wallet))
}

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}

	wallets, err := h.Wallets.List(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to list wallets", err)
		return
	}

	dtos := make([]WalletDTO, len(wallets))
	for i, wl := range wallets {
		dtos[i] = walletDTO(wl)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.Wallets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, walletDTO(wallet))
}

func (h *Handler) RenameWallet(w http.ResponseWriter, r *http.Request) {
	req, image, err := parseWalletRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid wallet payload", err)
		return
	}

	wallet, err := h.Wallets.Rename(r.Context(), chi.URLParam(r, "id"), req.Name, image)
	if err != nil {
		writeEngineError(w, "Failed to update wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, walletDTO(wallet))
}

func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	if err := h.Wallets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, "Failed to delete wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, image, err := parseTransactionRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction payload", err)
		return
	}

	created, err := h.Mutator.Create(r.Context(), tx, image)
	if err != nil {
		writeEngineError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionDTO(created))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, image, err := parseTransactionRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction payload", err)
		return
	}

	updated, err := h.Mutator.Update(r.Context(), chi.URLParam(r, "id"), tx, image)
	if err != nil {
		writeEngineError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionDTO(updated))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	walletID := r.URL.Query().Get("walletId")

	if err := h.Mutator.Delete(r.Context(), id, walletID); err != nil {
		writeEngineError(w, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from parameter", err)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to parameter", err)
			return
		}
		to = t
	}

	txs, err := h.Mutator.Store.TransactionsByUser(r.Context(), userID, from, to)
	if err != nil {
		writeEngineError(w, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = transactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

func (h *Handler) WeeklyStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, h.Stats.Weekly)
}

func (h *Handler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, h.Stats.Monthly)
}

func (h *Handler) YearlyStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, h.Stats.Yearly)
}

func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) (*ledger.Stats, error)) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}

	stats, err := fetch(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statsDTO(stats))
}

// =============================================================================
// PARSING
// =============================================================================

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "multipart/form-data"
}

func imageFromForm(r *http.Request) (*ledger.ImageUpload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger.ImageUpload{File: file, Name: header.Filename}, nil
}

func parseWalletRequest(r *http.Request) (*WalletRequest, *ledger.ImageUpload, error) {
	if isMultipart(r) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, nil, err
		}
		image, err := imageFromForm(r)
		if err != nil {
			return nil, nil, err
		}
		return &WalletRequest{
			UserID: r.FormValue("userId"),
			Name:   r.FormValue("name"),
		}, image, nil
	}

	var req WalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, err
	}
	return &req, nil, nil
}

func parseTransactionRequest(r *http.Request) (*ledger.Transaction, *ledger.ImageUpload, error) {
	var (
		req   TransactionRequest
		image *ledger.ImageUpload
	)

	if isMultipart(r) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, nil, err
		}
		var err error
		if image, err = imageFromForm(r); err != nil {
			return nil, nil, err
		}
		req = TransactionRequest{
			UserID:      r.FormValue("userId"),
			WalletID:    r.FormValue("walletId"),
			Type:        r.FormValue("type"),
			Amount:      r.FormValue("amount"),
			Category:    r.FormValue("category"),
			Description: r.FormValue("description"),
			Date:        r.FormValue("date"),
			Image:       r.FormValue("image"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, err
	}

	tx := &ledger.Transaction{
		UserID:      req.UserID,
		WalletID:    req.WalletID,
		Type:        ledger.TransactionType(req.Type),
		Category:    req.Category,
		Description: req.Description,
		Image:       req.Image,
	}

	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, nil, err
		}
		tx.Amount = amount
	}
	if req.Date != "" {
		date, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			return nil, nil, err
		}
		tx.Date = date
	}
	return tx, image, nil
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err), errors.Is(err, ledger.ErrConcurrentModification):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
