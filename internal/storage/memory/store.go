package memory

import (
	"context"
	"sync"

	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/storage"
	"github.com/shopspring/decimal"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore, used in
// tests and local runs without PostgreSQL. A store-wide mutex serializes
// atomic units; writes are staged inside the unit and only applied on commit,
// so a failed unit leaves no partial state behind.
type LedgerStore struct {
	mu           sync.Mutex
	balances     map[int64]decimal.Decimal
	transactions []models.Transaction
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		balances: make(map[int64]decimal.Decimal),
	}
}

func (s *LedgerStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := &txScope{
		store:  s,
		staged: make(map[int64]decimal.Decimal),
	}
	if err := fn(scope); err != nil {
		return err
	}
	for userID, amount := range scope.staged {
		s.balances[userID] = amount
	}
	s.transactions = append(s.transactions, scope.pending...)
	return nil
}

func (s *LedgerStore) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, ok := s.balances[userID]
	if !ok {
		return decimal.Zero, nil
	}
	return amount, nil
}

// Transactions returns a copy of the transaction log.
func (s *LedgerStore) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.Transaction, len(s.transactions))
	copy(copied, s.transactions)
	return copied
}

// txScope stages writes until the unit commits. Reads see staged writes
// first, then the committed state.
type txScope struct {
	store   *LedgerStore
	staged  map[int64]decimal.Decimal
	pending []models.Transaction
}

func (t *txScope) lookup(userID int64) (decimal.Decimal, bool) {
	if amount, ok := t.staged[userID]; ok {
		return amount, true
	}
	amount, ok := t.store.balances[userID]
	return amount, ok
}

func (t *txScope) EnsureBalance(ctx context.Context, userID int64) error {
	if _, ok := t.lookup(userID); !ok {
		t.staged[userID] = decimal.Zero
	}
	return nil
}

func (t *txScope) BalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, bool, error) {
	amount, ok := t.lookup(userID)
	return amount, ok, nil
}

func (t *txScope) AddToBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	current, _ := t.lookup(userID)
	updated := current.Add(delta)
	t.staged[userID] = updated
	return updated, nil
}

func (t *txScope) AppendTransaction(ctx context.Context, tran *models.Transaction) error {
	t.pending = append(t.pending, *tran)
	return nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
