package ratelimit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type window struct {
	start int64
	count int64
}

// Memory is a process-local fixed-window counter: a mutex-guarded map
// of key -> current window, with a periodic sweep dropping expired
// entries so the map does not grow with client churn.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// WithClock replaces the counter clock. Test hook.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Increment(_ context.Context, key string, windowSize time.Duration) (int64, time.Time, error) {
	now := m.now()
	start := now.Truncate(windowSize)

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || w.start != start.Unix() {
		w = &window{start: start.Unix()}
		m.windows[key] = w
	}
	w.count++

	return w.count, start.Add(windowSize), nil
}

// Sweep drops windows that ended before the current one. Counts in
// expired windows can never be read again.
func (m *Memory) Sweep(windowSize time.Duration) {
	cutoff := m.now().Truncate(windowSize).Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, w := range m.windows {
		if w.start < cutoff {
			delete(m.windows, key)
		}
	}
}

// StartSweep runs the sweep on a ticker until the context is done.
func (m *Memory) StartSweep(ctx context.Context, windowSize time.Duration) {
	ticker := time.NewTicker(windowSize)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping rate limit sweep")
				return
			case <-ticker.C:
				m.Sweep(windowSize)
			}
		}
	}()
}
