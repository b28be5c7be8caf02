// Package overlay owns the native loading overlay's lifecycle. The
// coordinator arms a bounded fallback timer on every navigation and
// dismisses the overlay on whichever comes first: an APP_READY message from
// the content, or timer expiry. The timer exists only to prevent a
// permanently stuck overlay when the content-side signal never arrives; on
// the success path APP_READY always wins.
package overlay

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultFallback bounds how long the overlay can outlive a navigation with
// no readiness signal. Deliberately hundreds of milliseconds, not seconds:
// it is a stuck-overlay guard, not a load-time budget.
const DefaultFallback = 1500 * time.Millisecond

// State of the coordinator.
type State int

const (
	// Dismissed: overlay hidden. Initial state and terminal until re-armed.
	Dismissed State = iota
	// Armed: overlay visible, fallback timer running.
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "dismissed"
}

// Surface renders the overlay. Implementations must tolerate repeated calls
// in the same state. Callbacks run with the coordinator's lock held and must
// not call back into it.
type Surface interface {
	ShowOverlay()
	HideOverlay()
}

// Reason tells the Surface consumer why a dismissal happened.
type Reason string

const (
	ReasonAppReady Reason = "app_ready"
	ReasonFallback Reason = "fallback_timer"
)

// Coordinator reconciles the genuinely concurrent fallback timer and
// inbound readiness messages. The guard is a monotonically increasing
// "latest dismissed navigation id": a stale timer fire, or an APP_READY
// for a navigation that was already dismissed, is ignored.
type Coordinator struct {
	surface  Surface
	fallback time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	currentNav    uint64
	lastDismissed uint64
	timer         *time.Timer

	// onDismiss, if set, observes every dismissal. Test hook and journal tap.
	onDismiss func(nav uint64, reason Reason)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFallback overrides the fallback timer duration.
func WithFallback(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fallback = d
		}
	}
}

// WithDismissHook registers an observer for dismissals.
func WithDismissHook(fn func(nav uint64, reason Reason)) Option {
	return func(c *Coordinator) { c.onDismiss = fn }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator in the Dismissed state.
func New(surface Surface, opts ...Option) *Coordinator {
	c := &Coordinator{
		surface:  surface,
		fallback: DefaultFallback,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Arm shows the overlay for navigation nav and starts the fallback timer.
// Re-arming while already armed moves the coordinator to the new navigation:
// the old timer is cancelled and can never fire. Navigation ids must be
// issued monotonically by the caller.
func (c *Coordinator) Arm(nav uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.state = Armed
	c.currentNav = nav
	c.timer = time.AfterFunc(c.fallback, func() { c.fallbackFired(nav) })

	c.logger.Debug("overlay: armed", "nav", nav, "fallback", c.fallback)
	c.surface.ShowOverlay()
}

// AppReady handles an APP_READY message. It dismisses the overlay when the
// message is for the current or a later navigation; anything at or below
// the latest dismissed navigation is stale and ignored.
func (c *Coordinator) AppReady(nav uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Armed {
		return
	}
	if nav <= c.lastDismissed {
		c.logger.Debug("overlay: stale APP_READY ignored", "nav", nav, "last_dismissed", c.lastDismissed)
		return
	}
	c.dismissLocked(ReasonAppReady)
}

// fallbackFired runs on timer expiry for the navigation it was armed with.
func (c *Coordinator) fallbackFired(nav uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A timer for navigation N must never act after navigation N' >= N was
	// dismissed, and never after a re-arm moved the coordinator past N.
	if c.state != Armed || nav != c.currentNav || nav <= c.lastDismissed {
		return
	}
	c.logger.Warn("overlay: fallback timer fired, no readiness signal", "nav", nav)
	c.dismissLocked(ReasonFallback)
}

// dismissLocked transitions Armed → Dismissed. Caller holds c.mu.
func (c *Coordinator) dismissLocked(reason Reason) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = Dismissed
	if c.currentNav > c.lastDismissed {
		c.lastDismissed = c.currentNav
	}

	c.logger.Debug("overlay: dismissed", "nav", c.currentNav, "reason", reason)
	c.surface.HideOverlay()
	if c.onDismiss != nil {
		c.onDismiss(c.currentNav, reason)
	}
}
