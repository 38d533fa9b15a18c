// Package service provides business logic implementations.
package service

import "errors"

// Common errors for service operations.
var (
	// ErrInvalidAmount is returned for non-positive quantities or
	// negative denomination inputs, before any lock or mutation.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")

	// ErrInvalidGrowID is returned when a registration supplies a
	// malformed GrowID.
	ErrInvalidGrowID = errors.New("invalid grow id")

	// ErrMaintenanceActive is returned when a user-facing operation is
	// attempted while the store is in maintenance mode.
	ErrMaintenanceActive = errors.New("store is under maintenance")

	// ErrRollbackFailed is returned when the compensating stock release
	// itself fails after a balance debit failure. Stock is left marked
	// sold with no corresponding debit; manual reconciliation is
	// required.
	ErrRollbackFailed = errors.New("stock rollback failed")

	// ErrTransactionFailed is the generic surface for unexpected
	// internal errors; details are logged, never leaked.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrNoValidHistory is returned when every record in a non-empty
	// history page failed to parse.
	ErrNoValidHistory = errors.New("no valid transaction history")

	// ErrPermissionDenied is returned for admin operations attempted by
	// a non-admin user.
	ErrPermissionDenied = errors.New("permission denied")
)
