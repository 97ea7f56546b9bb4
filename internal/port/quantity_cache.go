package port

import (
	"context"
	"time"
)

type QuantityCache interface {
	// SetQuantity overwrites the cached quantity for an item.
	SetQuantity(ctx context.Context, itemID int64, quantity int) error

	// AdjustQuantity atomically applies a delta, clamping at zero, and
	// returns the new cached quantity.
	AdjustQuantity(ctx context.Context, itemID int64, delta int) (int, error)

	// GetQuantity reads the cached quantity. Returns found=false when the
	// item has no cached entry.
	GetQuantity(ctx context.Context, itemID int64) (quantity int, found bool, err error)

	// SetDedup sets a key for duplicate-command suppression, returns false
	// if the key already exists within its TTL.
	SetDedup(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ClearDedup releases a claimed dedup key so the command can be retried.
	ClearDedup(ctx context.Context, key string) error
}
