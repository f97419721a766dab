package queue

import "github.com/pkg/errors"

// Sentinel errors for §7's ENQUEUE_FAIL kind and related neighbour-table
// failures.
var (
	ErrQueueFull        = errors.New("neighbour packet queue full")
	ErrLockHeld         = errors.New("global lock held, enqueue unavailable")
	ErrNeighbourTableFull = errors.New("neighbour table full")
	ErrUnavailable      = errors.New("operation unavailable while lock is held")
	ErrNotFound         = errors.New("neighbour not found")
)
