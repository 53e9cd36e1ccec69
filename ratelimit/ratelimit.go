// Package ratelimit provides a fixed-window request counter for abuse
// mitigation. Not linearizable and not meant to be: a burst that slips
// through a window boundary is acceptable, a blocked legitimate client
// is not.
package ratelimit

import (
	"context"
	"time"
)

// Counter counts requests per key within fixed windows. The in-memory
// implementation serves a single process; the redis implementation
// shares the budget across replicas. Call sites only see this
// interface.
type Counter interface {
	// Increment bumps the key's count for the window containing the
	// current time and returns the new count plus when the window
	// resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, reset time.Time, err error)
}
