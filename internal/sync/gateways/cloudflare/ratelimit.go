package cloudflare

import (
	"context"
	"sync"
	"time"
)

// pacer spaces API calls so one reconcile pass stays under the
// platform's account-wide rate limit. It is a single-token bucket: a
// caller may proceed once the refill interval has elapsed since the
// previous grant, otherwise it blocks until its turn or until the
// context is cancelled.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// newPacer builds a pacer from a requests-per-second budget. A
// non-positive rps disables pacing.
func newPacer(rps float64) *pacer {
	if rps <= 0 {
		return &pacer{}
	}
	return &pacer{interval: time.Duration(float64(time.Second) / rps)}
}

// wait blocks until the caller may issue a request. Grants are handed
// out in arrival order under the mutex, so concurrent slot workers
// cannot collapse into a burst.
func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.interval)
	p.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
