package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceView is the read-optimised projection of a balance, cached in Redis
// and rebuilt from balance.updated events.
type BalanceView struct {
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OperationResult is the response shape for deposit and withdraw.
type OperationResult struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Message string          `json:"message"`
}

// TransferResult is the response shape for transfer. It carries both
// post-operation balances so callers can verify conservation.
type TransferResult struct {
	FromUserID      int64           `json:"from_user_id"`
	ToUserID        int64           `json:"to_user_id"`
	Amount          decimal.Decimal `json:"amount"`
	FromUserBalance decimal.Decimal `json:"from_user_balance"`
	ToUserBalance   decimal.Decimal `json:"to_user_balance"`
	Message         string          `json:"message"`
}
