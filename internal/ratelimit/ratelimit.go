// Package ratelimit bounds outbound request rate to a fixed budget per
// rolling one-second window, shared across all concurrent callers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const window = time.Second

// Limiter admits at most rate issuances within any trailing one-second
// window. All callers share one timestamp window; nobody bypasses the wait.
type Limiter struct {
	rate int
	mu   sync.Mutex
	ts   []time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a limiter admitting rate requests per rolling second.
func New(rate int) (*Limiter, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", rate)
	}
	return &Limiter{rate: rate, now: time.Now}, nil
}

// Acquire blocks until issuing a request stays within the budget, records
// the issuance instant and returns. The only error is ctx cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.evict(now)

		if len(l.ts) < l.rate {
			l.ts = append(l.ts, now)
			l.mu.Unlock()
			return nil
		}

		// Window full: the exact remaining wait is until the oldest
		// issuance falls out of the trailing window.
		wait := window - now.Sub(l.ts[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// evict drops timestamps older than the trailing window. Caller holds mu.
func (l *Limiter) evict(now time.Time) {
	i := 0
	for i < len(l.ts) && now.Sub(l.ts[i]) > window {
		i++
	}
	if i > 0 {
		l.ts = append(l.ts[:0], l.ts[i:]...)
	}
}
