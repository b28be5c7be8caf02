// Package frameclock multiplexes per-frame callbacks onto a single shared
// ticker loop. Animation consumers register named callbacks; the loop starts
// when the first callback is registered and stops when the last one leaves,
// so an idle clock costs nothing.
//
// The clock is an explicit injectable object rather than process-global
// state, so independent instances (and tests) never interfere and teardown
// is deterministic.
package frameclock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval approximates a 60fps frame boundary.
const DefaultInterval = 16 * time.Millisecond

// ErrStopped is returned by WaitFrames when the clock shuts down mid-wait.
var ErrStopped = errors.New("frameclock: clock stopped")

// Callback runs once per frame. now is the tick time of the current frame.
type Callback func(now time.Time)

// Clock is a shared per-frame callback multiplexer. The zero value is not
// usable; create one with New.
type Clock struct {
	interval time.Duration

	mu        sync.Mutex
	callbacks map[string]Callback
	cancel    context.CancelFunc // non-nil while the loop runs
	gen       uint64             // bumped on every loop start, guards stale stops
	closed    bool
	closedCh  chan struct{} // closed by Close, releases pending WaitFrames
}

// Option configures a Clock.
type Option func(*Clock)

// WithInterval overrides the frame interval. Intervals <= 0 keep the default.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates an idle Clock. The underlying loop only runs while at least
// one callback is registered.
func New(opts ...Option) *Clock {
	c := &Clock{
		interval:  DefaultInterval,
		callbacks: make(map[string]Callback),
		closedCh:  make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds a named callback. The 0→1 transition starts the loop;
// registering is otherwise free. Registering a duplicate name or a nil
// callback is an error.
func (c *Clock) Register(name string, fn Callback) error {
	if fn == nil {
		return fmt.Errorf("frameclock: register %q: nil callback", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrStopped
	}
	if _, dup := c.callbacks[name]; dup {
		return fmt.Errorf("frameclock: register %q: already registered", name)
	}

	c.callbacks[name] = fn
	if len(c.callbacks) == 1 {
		c.startLocked()
	}
	return nil
}

// Unregister removes a named callback. The 1→0 transition stops the loop.
// Unknown names are a no-op.
func (c *Clock) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.callbacks[name]; !ok {
		return
	}
	delete(c.callbacks, name)
	if len(c.callbacks) == 0 {
		c.stopLocked()
	}
}

// Close stops the loop and rejects further registrations. Used at teardown.
func (c *Clock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	c.callbacks = make(map[string]Callback)
	c.stopLocked()
}

// Running reports whether the shared loop is currently active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// startLocked starts the loop. Caller holds c.mu. The generation counter
// ensures a stop issued for an old loop can never kill a newer one.
func (c *Clock) startLocked() {
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++
	go c.loop(ctx, c.gen)
}

// stopLocked stops the loop if it is running. Caller holds c.mu.
func (c *Clock) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
}

func (c *Clock) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			if c.gen != gen {
				// A newer loop owns the callbacks.
				c.mu.Unlock()
				return
			}
			fns := make([]Callback, 0, len(c.callbacks))
			for _, fn := range c.callbacks {
				fns = append(fns, fn)
			}
			c.mu.Unlock()

			for _, fn := range fns {
				fn(now)
			}
		}
	}
}

// WaitFrames blocks until n frame boundaries have passed, ctx is cancelled,
// or the clock is closed. n <= 0 returns immediately. The wait registers a
// throwaway callback, so it participates in the same start/stop gating as
// every other consumer.
func (c *Clock) WaitFrames(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	done := make(chan struct{})
	var remaining = n
	name := fmt.Sprintf("waitframes-%p", &remaining)

	err := c.Register(name, func(time.Time) {
		remaining--
		if remaining == 0 {
			close(done)
		}
	})
	if err != nil {
		return err
	}
	defer c.Unregister(name)

	select {
	case <-done:
		return nil
	case <-c.closedCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
