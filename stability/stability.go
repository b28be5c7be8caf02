// Package stability decides when embedded content has visually settled.
//
// The monitor consumes passive paint and layout-shift observations from a
// DisruptionSource and reduces that noisy continuous signal to a discrete
// "stable" answer using a sliding quiet window: the page counts as settled
// once no disruptive shift has been observed for the window duration. A
// single boolean would not survive late shifts (image/font swap after first
// paint), which is why the window slides instead of latching.
package stability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults, tuned for perceived-latency rather than throughput. The poll
// interval must stay loose enough that the check loop itself is never a
// performance problem, and tight enough that it adds no visible latency on
// top of the quiet window.
const (
	DefaultQuietWindow  = 200 * time.Millisecond
	DefaultPaintGrace   = 100 * time.Millisecond
	DefaultMaxWait      = 500 * time.Millisecond
	DefaultPollInterval = 50 * time.Millisecond
)

// DisruptionSource feeds the monitor with platform observations. Start is
// called once, on the first Initialize; it must deliver observations via the
// sink until Stop. A source that cannot observe a capability must report it
// as already satisfied at Start (e.g. call FontsReady immediately when the
// platform has no font status reporting).
type DisruptionSource interface {
	Start(sink Sink) error
	Stop()
}

// Sink receives observations from a DisruptionSource. Safe for concurrent
// use from observation callbacks.
type Sink interface {
	// Disruption records a disruptive layout shift at the given time.
	Disruption(at time.Time)
	// FirstPaint records that an initial paint has been observed.
	FirstPaint()
	// FontsReady records that font resources report loaded.
	FontsReady()
}

// Config tunes a Monitor. Zero values take the package defaults.
type Config struct {
	QuietWindow  time.Duration
	PaintGrace   time.Duration
	MaxWait      time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.QuietWindow <= 0 {
		c.QuietWindow = DefaultQuietWindow
	}
	if c.PaintGrace <= 0 {
		c.PaintGrace = DefaultPaintGrace
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Monitor tracks the stability window for one content instance. It lives for
// the lifetime of the content process; Shutdown is only for full teardown
// (forced reload), never for in-content navigation.
type Monitor struct {
	cfg    Config
	source DisruptionSource

	mu             sync.Mutex
	initialized    bool
	lastDisruption time.Time
	firstPaint     bool
	fontsReady     bool

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

// NewMonitor creates a Monitor over the given source. Call Initialize to
// begin observation.
func NewMonitor(source DisruptionSource, cfg Config) *Monitor {
	cfg.defaults()
	return &Monitor{
		cfg:    cfg,
		source: source,
		now:    time.Now,
	}
}

// Initialize begins observation. Idempotent: only the first call takes
// effect. A source start failure is logged and degrades to "no observations",
// which IsStable treats as satisfied; capability absence is never an error.
func (m *Monitor) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return
	}
	m.initialized = true

	if m.source == nil {
		return
	}
	if err := m.source.Start(m); err != nil {
		m.cfg.Logger.Warn("stability: observation unavailable", "error", err)
		m.source = nil
	}
}

// Shutdown disconnects observation and resets all state to initial values.
// Only used when the content is about to be fully torn down and re-created.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized && m.source != nil {
		m.source.Stop()
	}
	m.initialized = false
	m.lastDisruption = time.Time{}
	m.firstPaint = false
	m.fontsReady = false
}

// Disruption implements Sink.
func (m *Monitor) Disruption(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.lastDisruption) {
		m.lastDisruption = at
	}
}

// FirstPaint implements Sink.
func (m *Monitor) FirstPaint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.firstPaint = true
}

// FontsReady implements Sink.
func (m *Monitor) FontsReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fontsReady = true
}

// IsStable blocks until the content is considered settled, then returns
// true. It always returns within the configured MaxWait: on timeout the
// content is treated as "good enough" and true is returned anyway, so
// callers never hang on a page that refuses to go quiet. It returns false
// only when ctx is cancelled first.
//
// Settled means all of:
//   - no disruptive shift within the quiet window
//   - a first paint was observed, or the paint grace period has elapsed
//     since the query began (paint is a soft requirement)
//   - fonts report loaded, or the platform never reports fonts
func (m *Monitor) IsStable(ctx context.Context) bool {
	started := m.now()
	deadline := started.Add(m.cfg.MaxWait)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if m.settledAt(m.now(), started) {
			return true
		}
		if !m.now().Before(deadline) {
			m.cfg.Logger.Debug("stability: max wait elapsed, treating as settled")
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// settledAt evaluates the stability conditions at the given instant.
func (m *Monitor) settledAt(now, queryStart time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	hasSource := m.source != nil

	if !m.lastDisruption.IsZero() && now.Sub(m.lastDisruption) < m.cfg.QuietWindow {
		return false
	}
	if hasSource && !m.firstPaint && now.Sub(queryStart) < m.cfg.PaintGrace {
		return false
	}
	if hasSource && !m.fontsReady {
		// Sources without font observability report FontsReady at Start,
		// so this only gates platforms that genuinely track font loads.
		return false
	}
	return true
}
