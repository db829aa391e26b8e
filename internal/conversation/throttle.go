package conversation

import (
	"context"
	"sync"
	"time"
)

const (
	defaultThrottleInterval = 1500 * time.Millisecond
	defaultThrottleCapacity = 1000
)

// Throttle spaces completion calls per conversation so one chatty thread
// cannot hammer the backend. Spacing is measured start-to-start: a caller
// admitted at T reserves the slot, and the next caller for the same key
// is admitted no earlier than T plus the interval, regardless of how long
// either call runs.
type Throttle struct {
	mu        sync.Mutex
	interval  time.Duration
	capacity  int
	lastStart map[string]time.Time
}

// NewThrottle creates a throttle. Non-positive arguments select the
// defaults (1500ms, 1000 tracked conversations).
func NewThrottle(interval time.Duration, capacity int) *Throttle {
	if interval <= 0 {
		interval = defaultThrottleInterval
	}
	if capacity <= 0 {
		capacity = defaultThrottleCapacity
	}
	return &Throttle{
		interval:  interval,
		capacity:  capacity,
		lastStart: make(map[string]time.Time),
	}
}

// Interval reports the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait blocks until the key's slot is free or ctx is done. The slot is
// reserved before sleeping, so concurrent callers for one key queue up
// one interval apart.
func (t *Throttle) Wait(ctx context.Context, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	t.mu.Lock()
	now := time.Now()
	start := now
	if last, ok := t.lastStart[key]; ok {
		if candidate := last.Add(t.interval); candidate.After(start) {
			start = candidate
		}
	}
	t.lastStart[key] = start
	t.pruneLocked(now)
	t.mu.Unlock()

	delay := time.Until(start)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pruneLocked drops entries idle for more than ten intervals once the
// map exceeds capacity. Callers hold t.mu.
func (t *Throttle) pruneLocked(now time.Time) {
	if len(t.lastStart) <= t.capacity {
		return
	}
	cutoff := now.Add(-10 * t.interval)
	for key, last := range t.lastStart {
		if last.Before(cutoff) {
			delete(t.lastStart, key)
		}
	}
}
