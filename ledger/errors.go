/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. Every public operation fails with exactly
  one of these kinds; callers match on kind, never on message text.

ERROR CATEGORIES:
  1. Validation errors - missing/invalid fields on the caller's input
  2. Balance errors - operations that would overdraw a wallet
  3. Store errors - missing documents and upstream persistence failures

USAGE:
  if errors.Is(err, ledger.ErrInsufficientBalance) {
      // surface "not enough balance" to the UI
  }

SEE ALSO:
  - mutator.go: produces most of these
  - updater.go: produces ErrConcurrentModification
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when required fields are missing or invalid
	// (non-positive amount, absent wallet id, missing expense category).
	ErrValidation = errors.New("invalid input")

	// ErrInsufficientBalance is returned when an expense effect would drive
	// a wallet's balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidOperation is returned when an otherwise well-formed mutation
	// is not allowed, e.g. deleting an income transaction would overdraw
	// its wallet.
	ErrInvalidOperation = errors.New("operation not allowed")

	// ErrWalletNotFound is returned when a referenced wallet doesn't exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound is returned when a referenced transaction
	// doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrConcurrentModification is returned when an optimistic write loses
	// the race and the bounded retry budget is exhausted.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrUpstream is returned when the document store or media host fails.
	ErrUpstream = errors.New("upstream failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage.
type InsufficientBalanceError struct {
	WalletID  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("wallet %s has insufficient balance: available %s, requested %s",
		e.WalletID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// UpstreamError wraps a store or media failure with the operation that hit it.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// upstream wraps err unless it is already one of the engine's kinds.
func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrConcurrentModification) {
		return err
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing wallet or transaction.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsClientError reports whether err is the caller's fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidOperation)
}

// IsRetryable reports whether the operation might succeed if replayed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
