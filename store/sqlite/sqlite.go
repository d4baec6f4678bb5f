/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements wallet documents, the transaction log, and cascade markers on
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

OPTIMISTIC CONCURRENCY:
  UpdateWallet is a single conditional UPDATE guarded by the version
  column. A lost race affects zero rows and surfaces as
  ledger.ErrConcurrentModification; the aggregate updater re-reads and
  retries.

ATOMIC BATCHES:
  DeleteTransactions runs inside one database transaction, so a cascade
  page either fully disappears or fully survives.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MIGRATIONS:
  Schema is versioned with golang-migrate and embedded in the binary.
  New() migrates on open; use ":memory:" for tests.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/pocketbook/ledger-engine/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements ledger.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases intact and serializes
	// writers ahead of SQLite's own locking.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// WALLETS
// =============================================================================

const walletColumns = "id, user_id, name, icon, amount, total_income, total_expenses, version, created_at"

func (s *Store) GetWallet(ctx context.Context, id string) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE id = ?", id)
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrWalletNotFound
	}
	return w, err
}

func (s *Store) PutWallet(ctx context.Context, w *ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64 = 1
	err := s.db.QueryRowContext(ctx,
		"SELECT version + 1 FROM wallets WHERE id = ?", w.ID).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, name, icon, amount, total_income, total_expenses, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			icon = excluded.icon,
			amount = excluded.amount,
			total_income = excluded.total_income,
			total_expenses = excluded.total_expenses,
			version = excluded.version,
			created_at = excluded.created_at`,
		w.ID, w.UserID, w.Name, w.Icon,
		w.Amount.String(), w.TotalIncome.String(), w.TotalExpenses.String(),
		version, w.CreatedAt.UnixNano())
	if err != nil {
		return err
	}
	w.Version = version
	return nil
}

func (s *Store) UpdateWallet(ctx context.Context, w *ledger.Wallet, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET name = ?, icon = ?, amount = ?, total_income = ?, total_expenses = ?, version = ?
		WHERE id = ? AND version = ?`,
		w.Name, w.Icon,
		w.Amount.String(), w.TotalIncome.String(), w.TotalExpenses.String(),
		expectedVersion+1, w.ID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM wallets WHERE id = ?", w.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrWalletNotFound
		}
		if err != nil {
			return err
		}
		return ledger.ErrConcurrentModification
	}
	w.Version = expectedVersion + 1
	return nil
}

func (s *Store) DeleteWallet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM wallets WHERE id = ?", id)
	return err
}

func (s *Store) WalletsByUser(ctx context.Context, userID string) ([]*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const txColumns = "id, user_id, wallet_id, tx_type, amount, category, description, tx_date, image, created_at"

func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	return tx, err
}

func (s *Store) PutTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, wallet_id, tx_type, amount, category, description, tx_date, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			wallet_id = excluded.wallet_id,
			tx_type = excluded.tx_type,
			amount = excluded.amount,
			category = excluded.category,
			description = excluded.description,
			tx_date = excluded.tx_date,
			image = excluded.image`,
		tx.ID, tx.UserID, tx.WalletID, string(tx.Type), tx.Amount.String(),
		tx.Category, tx.Description, tx.Date.UnixNano(), tx.Image, tx.CreatedAt.UnixNano())
	return err
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	return err
}

func (s *Store) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbtx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := dbtx.ExecContext(ctx,
		"DELETE FROM transactions WHERE id IN ("+placeholders+")", args...); err != nil {
		return err
	}
	return dbtx.Commit()
}

func (s *Store) TransactionsByWallet(ctx context.Context, walletID string, limit int) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := "SELECT " + txColumns + " FROM transactions WHERE wallet_id = ?"
	args := []any{walletID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) TransactionsByUser(ctx context.Context, userID string, from, to time.Time) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := "SELECT " + txColumns + " FROM transactions WHERE user_id = ?"
	args := []any{userID}
	if !from.IsZero() {
		q += " AND tx_date >= ?"
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		q += " AND tx_date <= ?"
		args = append(args, to.UnixNano())
	}
	q += " ORDER BY tx_date DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// =============================================================================
// CASCADE MARKERS
// =============================================================================

func (s *Store) PutCascadeMarker(ctx context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cascade_markers (wallet_id, started_at) VALUES (?, ?)
		ON CONFLICT(wallet_id) DO NOTHING`,
		walletID, time.Now().UnixNano())
	return err
}

func (s *Store) DeleteCascadeMarker(ctx context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cascade_markers WHERE wallet_id = ?", walletID)
	return err
}

func (s *Store) ListCascadeMarkers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT wallet_id FROM cascade_markers ORDER BY started_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*ledger.Wallet, error) {
	var (
		w                         ledger.Wallet
		amount, totalIn, totalOut string
		createdAt                 int64
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Icon,
		&amount, &totalIn, &totalOut, &w.Version, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt wallet amount %q: %w", amount, err)
	}
	if w.TotalIncome, err = decimal.NewFromString(totalIn); err != nil {
		return nil, fmt.Errorf("corrupt wallet totalIncome %q: %w", totalIn, err)
	}
	if w.TotalExpenses, err = decimal.NewFromString(totalOut); err != nil {
		return nil, fmt.Errorf("corrupt wallet totalExpenses %q: %w", totalOut, err)
	}
	w.CreatedAt = time.Unix(0, createdAt).UTC()
	return &w, nil
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var (
		tx              ledger.Transaction
		txType, amount  string
		date, createdAt int64
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.WalletID, &txType, &amount,
		&tx.Category, &tx.Description, &date, &tx.Image, &createdAt); err != nil {
		return nil, err
	}
	tx.Type = ledger.TransactionType(txType)
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt transaction amount %q: %w", amount, err)
	}
	tx.Date = time.Unix(0, date).UTC()
	tx.CreatedAt = time.Unix(0, createdAt).UTC()
	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
