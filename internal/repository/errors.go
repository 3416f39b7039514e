package repository

import "errors"

// Sentinel errors surfaced by repositories for conditions the service layer
// maps onto the domain error taxonomy.
var (
	// ErrInsufficientBalance is returned when a ledger change would take a
	// student's balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
