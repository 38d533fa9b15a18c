package repository

import "errors"

// Common errors for repository operations.
var (
	// ErrNotRegistered is returned when no identity is bound to a
	// Discord ID.
	ErrNotRegistered = errors.New("user not registered")

	// ErrGrowIDTaken is returned when a registration tries to bind a
	// GrowID already bound to a different Discord user.
	ErrGrowIDTaken = errors.New("grow id already registered to another user")

	// ErrBalanceNotFound is returned when no balance record exists for
	// an identity.
	ErrBalanceNotFound = errors.New("balance not found")

	// ErrInsufficientBalance is returned when a debit would take the
	// canonical balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrProductNotFound is returned when a product code is unknown.
	ErrProductNotFound = errors.New("product not found")

	// ErrProductExists is returned when creating a product with a code
	// already in the catalog.
	ErrProductExists = errors.New("product already exists")

	// ErrInsufficientStock is returned when fewer available units exist
	// than requested.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStockConflict is returned when a bulk status transition could
	// not be applied to every requested item. Nothing was changed.
	ErrStockConflict = errors.New("stock status conflict")

	// ErrInvalidTransition is returned for a stock status transition
	// outside the allowed state machine.
	ErrInvalidTransition = errors.New("invalid stock status transition")
)
