package state

import "errors"

// Common registry errors
var (
	// ErrNotFound means no record or chain matches the given identifier.
	ErrNotFound = errors.New("not found")
	// ErrLocked means another process currently holds the exclusive lock.
	ErrLocked = errors.New("state file is locked by another process")
	// ErrPoolExhausted means the subnet pool has no free slices left.
	ErrPoolExhausted = errors.New("subnet pool exhausted")
)
