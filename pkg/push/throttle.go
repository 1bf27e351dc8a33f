package push

import (
	"context"
	"sync"
	"time"
)

// MemoryThrottle allows one push per key per window. State is process-local
// and lost on restart.
type MemoryThrottle struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

// NewMemoryThrottle creates a MemoryThrottle. now may be nil for time.Now.
func NewMemoryThrottle(window time.Duration, now func() time.Time) *MemoryThrottle {
	if now == nil {
		now = time.Now
	}
	return &MemoryThrottle{
		window: window,
		now:    now,
		until:  make(map[string]time.Time),
	}
}

// Allow reports whether key is outside its window, and if so opens a new one.
func (t *MemoryThrottle) Allow(_ context.Context, key string) (bool, error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if exp, ok := t.until[key]; ok && now.Before(exp) {
		return false, nil
	}
	t.until[key] = now.Add(t.window)
	return true, nil
}

// Len returns the number of tracked keys, expired or not.
func (t *MemoryThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.until)
}

// Run evicts expired keys every interval until ctx is cancelled.
func (t *MemoryThrottle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.evictExpired()
		case <-ctx.Done():
			return
		}
	}
}

func (t *MemoryThrottle) evictExpired() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, exp := range t.until {
		if !now.Before(exp) {
			delete(t.until, key)
		}
	}
}
