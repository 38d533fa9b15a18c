package lock

import "errors"

// Lock-related errors.
var (
	// ErrLockTimeout is returned when a lock cannot be acquired within
	// the timeout period. It is transient; callers may retry.
	ErrLockTimeout = errors.New("lock acquisition timeout")
)
