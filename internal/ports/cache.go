package ports

import (
	"context"
	"time"
)

// Cache is a key-value store for derived views such as upload comparisons.
// Entries are advisory: callers must be able to recompute a missing value.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
