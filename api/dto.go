/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the ledger types.
  Amounts travel as decimal strings so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/pocketbook/ledger-engine/ledger"
)

// =============================================================================
// WALLETS
// =============================================================================

type WalletDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	Icon          string `json:"icon,omitempty"`
	Amount        string `json:"amount"`
	TotalIncome   string `json:"totalIncome"`
	TotalExpenses string `json:"totalExpenses"`
	CreatedAt     string `json:"createdAt"`
}

func walletDTO(w *ledger.Wallet) WalletDTO {
	return WalletDTO{
		ID:            w.ID,
		UserID:        w.UserID,
		Name:          w.Name,
		Icon:          w.Icon,
		Amount:        w.Amount.String(),
		TotalIncome:   w.TotalIncome.String(),
		TotalExpenses: w.TotalExpenses.String(),
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
	}
}

type WalletRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	WalletID    string `json:"walletId"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Image       string `json:"image,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func transactionDTO(tx *ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		UserID:      tx.UserID,
		WalletID:    tx.WalletID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Category:    tx.Category,
		Description: tx.Description,
		Date:        tx.Date.Format(time.RFC3339),
		Image:       tx.Image,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}

type TransactionRequest struct {
	UserID      string `json:"userId"`
	WalletID    string `json:"walletId"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Image       string `json:"image"`
}

// =============================================================================
// STATS
// =============================================================================

type ChartPointDTO struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

type StatsDTO struct {
	Points       []ChartPointDTO  `json:"points"`
	Transactions []TransactionDTO `json:"transactions"`
}

func statsDTO(s *ledger.Stats) StatsDTO {
	points := make([]ChartPointDTO, len(s.Points))
	for i, p := range s.Points {
		points[i] = ChartPointDTO{Value: p.Value.String(), Label: p.Label}
	}
	txs := make([]TransactionDTO, len(s.Transactions))
	for i, tx := range s.Transactions {
		txs[i] = transactionDTO(tx)
	}
	return StatsDTO{Points: points, Transactions: txs}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
