package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations the judge worker needs from its
// broker and result backend.
type Cache interface {
	BasicOps
	ListOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key.
	// A missing key returns "" and a nil error.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// List ends for the move operations.
const (
	ListLeft  = "LEFT"
	ListRight = "RIGHT"
)

// ListOps defines list operations used as a reliable work queue.
type ListOps interface {
	// BLMove atomically moves one element from source to destination,
	// blocking up to timeout. ok is false when the timeout elapsed with
	// nothing to move.
	BLMove(ctx context.Context, source, destination, srcPos, destPos string, timeout time.Duration) (string, bool, error)

	// LMove is the non-blocking BLMove. ok is false when source is empty.
	LMove(ctx context.Context, source, destination, srcPos, destPos string) (string, bool, error)

	// LRem removes up to count occurrences of value and returns how many
	// were removed.
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)
}
