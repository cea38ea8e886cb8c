package cqrs

import "github.com/shopspring/decimal"

type DepositCommand struct {
	UserID  int64
	Amount  decimal.Decimal
	Comment string
}

type WithdrawCommand struct {
	UserID  int64
	Amount  decimal.Decimal
	Comment string
}

type TransferCommand struct {
	FromUserID int64
	ToUserID   int64
	Amount     decimal.Decimal
	Comment    string
}
