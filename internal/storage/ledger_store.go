package storage

import (
	"context"

	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/shopspring/decimal"
)

// Tx is the scope of a single atomic unit. Every read and write made through
// the same Tx commits or rolls back together; nothing is visible outside the
// unit until commit.
type Tx interface {
	// EnsureBalance creates a zero balance row for userID if none exists.
	EnsureBalance(ctx context.Context, userID int64) error

	// BalanceForUpdate reads the balance with a lock that holds until the
	// unit ends. The second return is false when no row exists.
	BalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, bool, error)

	// AddToBalance applies delta (which may be negative) to an existing
	// balance row and returns the post-update amount.
	AddToBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error)

	// AppendTransaction writes an immutable audit record.
	AppendTransaction(ctx context.Context, tran *models.Transaction) error
}

// LedgerStore is the durable store for balances and the transaction log.
// The balance engine is the only writer; it always mutates through WithTx.
type LedgerStore interface {
	// WithTx runs fn inside one atomic unit. A nil return from fn commits;
	// any error rolls back every write made through the scope.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetBalance returns the stored amount for userID, or zero when no
	// balance row exists yet.
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}
