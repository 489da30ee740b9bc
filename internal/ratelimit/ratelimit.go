// Package ratelimit provides stdlib-only request pacing used by the
// providers to stay inside upstream free-tier limits.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate enforces a minimum interval between successive calls.
// The equities provider uses it to space per-symbol quote lookups.
// Wait blocks until the interval has elapsed since the previous call,
// or returns early if the context is canceled.
type Gate struct {
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (g *Gate) Wait(ctx context.Context) error {
	if g.Interval <= 0 {
		return nil
	}
	g.mu.Lock()
	wait := time.Until(g.last.Add(g.Interval))
	g.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	g.mu.Lock()
	g.last = time.Now()
	g.mu.Unlock()
	return nil
}
