package oracle

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter caps oracle calls to maxCalls per window. A call that
// would exceed the cap blocks until window room opens instead of failing;
// the provider quota is a hard budget and dropping work is worse than
// waiting. The limiter is process-wide state and must be shared by every
// pipeline instance talking to the same provider key.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	stamps   []time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func NewSlidingWindowLimiter(maxCalls int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Acquire blocks until the call fits in the window, then records it.
// Returns early only if ctx is done while waiting.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)
		if len(l.stamps) < l.maxCalls {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		if wait > 0 {
			l.sleep(wait)
		}
	}
}

// Pending returns how many calls currently occupy the window.
func (l *SlidingWindowLimiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trim(l.now())
	return len(l.stamps)
}

// trim drops stamps older than the window. Caller holds the lock.
func (l *SlidingWindowLimiter) trim(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
