// Package delta tracks per-symbol previous values for providers whose
// upstream reports only a snapshot rate, not a change (metals, fiat).
package delta

import (
	"math"
	"sync"
)

// Tracker remembers the last observed raw price per symbol for the
// lifetime of the process. Each provider owns a disjoint symbol
// namespace, so trackers are never shared across providers.
type Tracker struct {
	mu   sync.Mutex
	prev map[string]float64
}

func NewTracker() *Tracker {
	return &Tracker{prev: make(map[string]float64)}
}

// Observe records price as the new baseline for symbol and returns the
// prior baseline, if any. Callers must only observe successfully parsed
// prices; a failed fetch never touches the table.
func (t *Tracker) Observe(symbol string, price float64) (prev float64, ok bool) {
	t.mu.Lock()
	prev, ok = t.prev[symbol]
	t.prev[symbol] = price
	t.mu.Unlock()
	return prev, ok
}

// Last returns the current baseline for symbol without changing it.
func (t *Tracker) Last(symbol string) (float64, bool) {
	t.mu.Lock()
	v, ok := t.prev[symbol]
	t.mu.Unlock()
	return v, ok
}

// Change derives absolute and percent change of cur against prev.
// Swings whose |percent| exceeds capPercent are treated as untrustworthy
// (unit ambiguity noise, not a real market move) and zeroed; the new
// price still becomes the baseline for the next cycle via Observe.
func Change(prev, cur, capPercent float64) (change, percent float64) {
	if prev <= 0 {
		return 0, 0
	}
	change = cur - prev
	percent = change / prev * 100
	if capPercent > 0 && math.Abs(percent) > capPercent {
		return 0, 0
	}
	return change, percent
}
