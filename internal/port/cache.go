package port

import "context"

// CacheRepository is the optional fast path in front of the database: an
// atomic stock gate that sheds doomed settlements before they take row
// locks, plus idempotency keys for duplicate request suppression. The
// database remains the source of truth; the cache can reject but never
// oversell.
type CacheRepository interface {
	// DecrementStock atomically decreases cached stock, returning false if
	// the cached count is insufficient or unknown.
	DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error)

	// IncrementStock restores cached stock after a failed settlement.
	IncrementStock(ctx context.Context, productID int64, quantity int) error

	// SetStock overwrites the cached count, used to sync after commits and
	// at startup.
	SetStock(ctx context.Context, productID int64, quantity int) error

	// SetIdempotency claims a request key, returning false if it was
	// already claimed.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
