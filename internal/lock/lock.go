// Package lock provides best-effort, TTL-bound mutual exclusion keyed by
// idempotency key. The lock is advisory: it reduces contention and wasted
// work, but correctness of the money movement comes from the ledger store's
// isolation, never from the lock.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrBusy signals the key is held by another request. It is a retryable
// condition, never a permanent failure.
var ErrBusy = errors.New("lock busy")

// Manager grants and releases advisory locks. Acquisition is a single atomic
// create-if-absent-with-expiry operation; a crashed holder's lock self-expires
// after the TTL.
type Manager interface {
	// Acquire attempts to take the lock. It returns false (not an error) when
	// the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the lock if this manager still holds it. Releasing a lock
	// that expired or is held by someone else is a no-op.
	Release(ctx context.Context, key string) error

	// Close disconnects from the backing cache.
	Close() error
}
