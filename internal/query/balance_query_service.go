package query

import (
	"context"
	"fmt"

	"github.com/Immellstorn/balance-app/internal/cqrs"
	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/shopspring/decimal"
)

// UserDirectory resolves user ids. Users are external to the ledger.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// BalanceReader serves current balances, zero for absent records.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// BalanceQueryService serves balance reads. Read-only: no mutation, no
// transaction-log entry.
type BalanceQueryService struct {
	users    UserDirectory
	balances BalanceReader
}

func NewBalanceQueryService(users UserDirectory, balances BalanceReader) *BalanceQueryService {
	return &BalanceQueryService{users: users, balances: balances}
}

// GetBalance returns the current balance for the queried user. A user with
// no balance record yet reads as zero.
func (s *BalanceQueryService) GetBalance(q cqrs.GetBalanceQuery) (*models.BalanceView, error) {
	ctx := context.Background()
	exists, err := s.users.Exists(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %d: %w", q.UserID, err)
	}
	if !exists {
		return nil, models.ErrUserNotFound
	}

	balance, err := s.balances.GetBalance(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceView{UserID: q.UserID, Balance: balance}, nil
}
