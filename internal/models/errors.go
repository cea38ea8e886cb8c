package models

import "errors"

// Error kinds returned by the balance engine. All are terminal: they are
// reported to the caller as-is and never retried.
var (
	// ErrUserNotFound indicates the referenced id has no user record.
	ErrUserNotFound = errors.New("user not found")

	// ErrFromUserNotFound indicates the transfer source has no user record.
	ErrFromUserNotFound = errors.New("from user not found")

	// ErrToUserNotFound indicates the transfer destination has no user record.
	ErrToUserNotFound = errors.New("to user not found")

	// ErrInvalidAmount indicates an amount below the 0.01 minor unit or not a
	// whole number of minor units.
	ErrInvalidAmount = errors.New("amount must be greater than 0")

	// ErrSameUser indicates a transfer where source equals destination.
	ErrSameUser = errors.New("cannot transfer to same user")

	// ErrInsufficientFunds indicates the balance is below the requested
	// amount. A missing balance record counts as zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
