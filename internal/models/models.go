package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User lives in the user directory. The ledger only ever checks that a
// referenced id resolves to a user; it never creates or modifies one.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type TransactionType string

const (
	TypeDeposit     TransactionType = "deposit"
	TypeWithdraw    TransactionType = "withdraw"
	TypeTransferOut TransactionType = "transfer_out"
	TypeTransferIn  TransactionType = "transfer_in"
)

// Transaction is an immutable audit record of a single balance-affecting
// event. RelatedUserID identifies the counterparty and is only set for
// transfer_out/transfer_in pairs.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Comment       string          `json:"comment,omitempty"`
	RelatedUserID *int64          `json:"related_user_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
