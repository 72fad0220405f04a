package core

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/satdecay/timectrl"
)

// DefaultThrottleDelay keeps a single client under Space-Track's published
// ceilings of 30 requests per minute and 300 per hour.
const DefaultThrottleDelay = 12 * time.Second

// Throttle serialises remote calls and holds each one for a fixed delay
// after it returns, so consecutive calls start at least delay apart.
type Throttle struct {
	mu      sync.Mutex
	delay   time.Duration
	clock   timectrl.Clock
	metrics Metrics
	calls   int
}

// NewThrottle builds a Throttle. A negative delay is treated as zero and a
// nil clock uses the wall clock.
func NewThrottle(delay time.Duration, clock timectrl.Clock) *Throttle {
	if delay < 0 {
		delay = 0
	}
	if clock == nil {
		clock = timectrl.RealClock{}
	}
	return &Throttle{delay: delay, clock: clock, metrics: noopMetrics{}}
}

// WithMetrics attaches a recorder for wait times and returns t.
func (t *Throttle) WithMetrics(m Metrics) *Throttle {
	if m != nil {
		t.metrics = m
	}
	return t
}

// Delay reports the configured floor between calls.
func (t *Throttle) Delay() time.Duration { return t.delay }

// Calls reports how many calls have passed through the throttle.
func (t *Throttle) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Guard runs fn under t and waits out the delay before returning, whatever
// fn returned. A cancelled context ends the wait early; fn's error takes
// precedence over the cancellation error.
func Guard[T any](ctx context.Context, t *Throttle, fn func(context.Context) (T, error)) (T, error) {
	if t == nil {
		return fn(ctx)
	}
	queued := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	v, err := fn(ctx)

	sleepErr := t.clock.Sleep(ctx, t.delay)
	t.metrics.ObserveThrottleWait(t.clock.Now().Sub(queued))
	if err == nil && sleepErr != nil {
		err = sleepErr
	}
	return v, err
}
