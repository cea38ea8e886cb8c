package cqrs

// GetBalanceQuery fetches the current balance for a user.
type GetBalanceQuery struct {
	UserID int64
}
