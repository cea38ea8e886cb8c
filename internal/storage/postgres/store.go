package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/storage"
	"github.com/shopspring/decimal"
)

// LedgerStore is the PostgreSQL implementation of storage.LedgerStore.
// Funds checks rely on SELECT ... FOR UPDATE row locks inside the same
// transaction that performs the write, so two concurrent withdrawals can
// never both observe a stale sufficient balance.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&txScope{dbTx: dbTx}); err != nil {
		dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *LedgerStore) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	const query = `SELECT amount FROM balances WHERE user_id = $1`

	var amount decimal.Decimal
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// txScope wraps a *sql.Tx as a storage.Tx. It is only valid for the duration
// of the WithTx callback that created it.
type txScope struct {
	dbTx *sql.Tx
}

func (t *txScope) EnsureBalance(ctx context.Context, userID int64) error {
	const query = `
		INSERT INTO balances (user_id, amount, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := t.dbTx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure balance: %w", err)
	}
	return nil
}

func (t *txScope) BalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, bool, error) {
	const query = `SELECT amount FROM balances WHERE user_id = $1 FOR UPDATE`

	var amount decimal.Decimal
	err := t.dbTx.QueryRowContext(ctx, query, userID).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to lock balance: %w", err)
	}
	return amount, true, nil
}

func (t *txScope) AddToBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE balances
		SET amount = amount + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING amount
	`
	var amount decimal.Decimal
	err := t.dbTx.QueryRowContext(ctx, query, userID, delta).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("balance not found for user %d", userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	return amount, nil
}

func (t *txScope) AppendTransaction(ctx context.Context, tran *models.Transaction) error {
	const query = `
		INSERT INTO transactions (id, user_id, type, amount, comment, related_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.dbTx.ExecContext(ctx, query,
		tran.ID, tran.UserID, string(tran.Type), tran.Amount,
		nullString(tran.Comment), tran.RelatedUserID, tran.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
