package security

import (
	"sync"
	"time"
)

// slidingWindow is a per-tool sliding-window call counter shared by all
// concurrently executing requests. A fixed budget of calls is admitted per
// window; admission timestamps older than the window are pruned on each
// check. The continuous-refill token bucket in x/time/rate cannot express
// this (it would admit a call as soon as one token refills, not when the
// window rolls over), so the window is tracked explicitly.
type slidingWindow struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

func newSlidingWindow(now func() time.Time) *slidingWindow {
	if now == nil {
		now = time.Now
	}
	return &slidingWindow{
		calls: make(map[string][]time.Time),
		now:   now,
	}
}

// allow records and admits one call for the tool if its budget permits.
func (w *slidingWindow) allow(tool string, limit RateLimit) bool {
	if !limit.Enabled() {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-limit.Window)

	recent := w.calls[tool][:0]
	for _, t := range w.calls[tool] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit.Calls {
		w.calls[tool] = recent
		return false
	}
	w.calls[tool] = append(recent, now)
	return true
}
