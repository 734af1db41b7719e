package ledger

import "errors"

var (
	// ErrRepresentativeNotFound means the referenced payer does not exist.
	ErrRepresentativeNotFound = errors.New("representative not found")
	// ErrInsufficientBalance means a withdrawal exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount means a requested amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)
