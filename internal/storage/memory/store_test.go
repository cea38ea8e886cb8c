package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/storage"
	"github.com/shopspring/decimal"
)

func TestWithTxCommit(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	err := store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.EnsureBalance(ctx, 1); err != nil {
			return err
		}
		if _, err := tx.AddToBalance(ctx, 1, decimal.NewFromInt(25)); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, &models.Transaction{
			ID: "txn-test", UserID: 1, Type: models.TypeDeposit,
			Amount: decimal.NewFromInt(25), CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	balance, err := store.GetBalance(ctx, 1)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected balance 25 got %s", balance)
	}
	if len(store.Transactions()) != 1 {
		t.Errorf("expected 1 transaction got %d", len(store.Transactions()))
	}
}

// A failed unit must leave no partial state behind: staged balance writes and
// pending transaction appends are both discarded.
func TestWithTxRollback(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.EnsureBalance(ctx, 1); err != nil {
			return err
		}
		if _, err := tx.AddToBalance(ctx, 1, decimal.NewFromInt(100)); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &models.Transaction{ID: "txn-doomed", UserID: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected unit error to propagate, got %v", err)
	}

	balance, err := store.GetBalance(ctx, 1)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("rolled-back unit leaked balance %s", balance)
	}
	if len(store.Transactions()) != 0 {
		t.Errorf("rolled-back unit leaked transactions")
	}
}

// Reads inside a unit observe that unit's staged writes.
func TestTxReadsSeeStagedWrites(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	err := store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.EnsureBalance(ctx, 1); err != nil {
			return err
		}
		if _, err := tx.AddToBalance(ctx, 1, decimal.NewFromInt(10)); err != nil {
			return err
		}
		amount, exists, err := tx.BalanceForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		if !exists {
			t.Errorf("staged row should be visible inside the unit")
		}
		if !amount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("expected staged amount 10 got %s", amount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit failed: %v", err)
	}
}
