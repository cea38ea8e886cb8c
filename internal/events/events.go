package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	TransactionCreated = "transaction.created"
	BalanceUpdated     = "balance.updated"
)

// Stream names
const (
	TransactionEventsStream = "transaction.events"
	BalanceEventsStream     = "balance.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// TransactionCreatedEvent is emitted once per appended transaction row, after
// the atomic unit that wrote it has committed.
type TransactionCreatedEvent struct {
	TransactionID string          `json:"transactionId"`
	UserID        int64           `json:"userId"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	RelatedUserID *int64          `json:"relatedUserId,omitempty"`
}

// BalanceUpdatedEvent is emitted once per affected balance after commit.
// Change is signed: negative for withdrawals and transfer debits.
type BalanceUpdatedEvent struct {
	UserID     int64           `json:"userId"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Change     decimal.Decimal `json:"change"`
}
