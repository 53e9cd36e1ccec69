package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"canter/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCountsWithinWindow(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 30, 0, time.UTC)
	counter := ratelimit.NewMemory().WithClock(func() time.Time { return now })

	window := time.Minute
	for i := int64(1); i <= 5; i++ {
		count, reset, err := counter.Increment(context.Background(), "10.0.0.1", window)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Equal(t, now.Truncate(window).Add(window), reset)
	}

	// Another key has its own budget
	count, _, err := counter.Increment(context.Background(), "10.0.0.2", window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryResetsAtWindowBoundary(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 59, 0, time.UTC)
	counter := ratelimit.NewMemory().WithClock(func() time.Time { return now })

	window := time.Minute
	for i := 0; i < 3; i++ {
		_, _, err := counter.Increment(context.Background(), "client", window)
		require.NoError(t, err)
	}

	// Crossing into the next window starts a fresh count
	now = now.Add(2 * time.Second)
	count, reset, err := counter.Increment(context.Background(), "client", window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, now.Truncate(window).Add(window), reset)
}

func TestMemorySweepDropsExpiredWindows(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	counter := ratelimit.NewMemory().WithClock(func() time.Time { return now })

	window := time.Minute
	_, _, err := counter.Increment(context.Background(), "stale", window)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	counter.Sweep(window)

	// The swept key starts over; an unswept current key would have
	// kept counting.
	count, _, err := counter.Increment(context.Background(), "stale", window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
