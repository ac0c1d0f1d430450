package clock

import (
	"context"
	"time"
)

// Clock abstracts wall time and delays so services that wait (e.g. the
// settle period between teardown and re-apply) stay testable without
// real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled, returning ctx.Err()
	// in the cancelled case.
	Sleep(ctx context.Context, d time.Duration) error
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

func (c RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockClock is a deterministic Clock for tests. Sleep advances the
// mock time instantly and records the requested duration.
type MockClock struct {
	CurrentTime time.Time
	Slept       []time.Duration
}

func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

func (c *MockClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.CurrentTime = c.CurrentTime.Add(d)
	c.Slept = append(c.Slept, d)
	return nil
}

func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
