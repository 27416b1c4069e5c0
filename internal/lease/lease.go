// Package lease guards the sync pass so only one runs at a time, even across processes
// sharing a Redis instance.
package lease

import (
	"context"
	"time"
)

// Lease is a named, owner-tagged lock with a TTL.
type Lease interface {
	// Acquire returns true if owner now holds key for ttl.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Extend pushes the expiry of key to ttl from now. It returns false if owner no
	// longer holds key.
	Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release drops key only if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}
