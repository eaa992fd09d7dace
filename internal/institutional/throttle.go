package institutional

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle keeps a fixed pause between the end of one request and the start
// of the next. The first Wait returns immediately.
type Throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	delay   time.Duration
}

// NewThrottle returns a throttle pausing delay after every request. A
// non-positive delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(delay), 1), delay: delay}
}

// Wait blocks until the next request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	l := t.limiter
	t.mu.Unlock()
	return l.Wait(ctx)
}

// Done marks the end of a request. The next Wait returns no earlier than
// delay from now, however long the request took.
func (t *Throttle) Done() {
	if t.delay <= 0 {
		return
	}
	l := rate.NewLimiter(rate.Every(t.delay), 1)
	l.Allow()

	t.mu.Lock()
	t.limiter = l
	t.mu.Unlock()
}

// Delay returns the configured pause.
func (t *Throttle) Delay() time.Duration {
	return t.delay
}
