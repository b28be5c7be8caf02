// Package readiness orchestrates the content-side half of the overlay
// handshake. A screen calls SignalReady exactly once after its mount-time
// data load completes; the signaler waits for visual stability, lets the
// settled state actually paint, then tells the shell the overlay may go.
//
// Only the most recent navigation's readiness matters. Every call supersedes
// the previous one, and a superseded or detached request must never emit.
// The whole pipeline is guarded by a generation counter checked after every
// suspension point.
package readiness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ledgerbook/appshell/bridge"
	"github.com/ledgerbook/appshell/frameclock"
	"github.com/ledgerbook/appshell/stability"
)

// settleFrames is how many frame boundaries to wait after stability before
// signalling, so the browser has painted the settled state.
const settleFrames = 2

// RouteInfo reports the current route for the PAGE_LOADED payload.
type RouteInfo interface {
	CurrentRoute() (path, title string)
}

// RouteInfoFunc adapts a function to RouteInfo.
type RouteInfoFunc func() (path, title string)

// CurrentRoute implements RouteInfo.
func (f RouteInfoFunc) CurrentRoute() (path, title string) { return f() }

// Signaler emits readiness messages for the screen subtree it is attached
// to. One Signaler per content instance; screens share it through their
// readiness context.
type Signaler struct {
	transport bridge.Transport
	monitor   *stability.Monitor
	clock     *frameclock.Clock
	routes    RouteInfo
	logger    *slog.Logger

	// gen identifies the live request. A request is cancelled the moment
	// gen moves past it.
	gen atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc // cancels the in-flight wait, if any

	detached atomic.Bool
}

// Config assembles a Signaler.
type Config struct {
	// Transport may be nil when running outside the native shell; every
	// SignalReady is then a silent no-op.
	Transport bridge.Transport
	Monitor   *stability.Monitor
	Clock     *frameclock.Clock
	Routes    RouteInfo
	Logger    *slog.Logger
}

// NewSignaler creates a Signaler. Monitor and Clock are required; Transport
// and Routes may be nil.
func NewSignaler(cfg Config) *Signaler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Signaler{
		transport: cfg.Transport,
		monitor:   cfg.Monitor,
		clock:     cfg.Clock,
		routes:    cfg.Routes,
		logger:    logger,
	}
}

// SignalReady starts the readiness pipeline for the current navigation and
// returns immediately. Any prior in-flight request is superseded and will
// not emit. Errors inside the pipeline are logged and swallowed: readiness
// never crashes a screen, and a missed signal is safe because the shell's
// fallback timer guarantees forward progress.
func (s *Signaler) SignalReady() {
	if s.transport == nil || s.detached.Load() {
		return
	}

	myGen := s.gen.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx, myGen)
}

// Detach cancels any in-flight request and makes future SignalReady calls
// no-ops. Called when the owning screen tree is torn down.
func (s *Signaler) Detach() {
	s.detached.Store(true)
	s.gen.Add(1)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// live reports whether the request for myGen is still the current one.
func (s *Signaler) live(myGen uint64) bool {
	return !s.detached.Load() && s.gen.Load() == myGen
}

func (s *Signaler) run(ctx context.Context, myGen uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("readiness: pipeline panic", "panic", r)
		}
	}()

	if !s.monitor.IsStable(ctx) {
		return // cancelled mid-wait
	}
	if !s.live(myGen) {
		return
	}

	// Let the settled state reach the screen before the overlay drops.
	if err := s.clock.WaitFrames(ctx, settleFrames); err != nil {
		return
	}
	if !s.live(myGen) {
		return
	}

	s.emit(ctx)
}

func (s *Signaler) emit(ctx context.Context) {
	var path, title string
	if s.routes != nil {
		path, title = s.routes.CurrentRoute()
	}

	loaded, err := bridge.New(bridge.TypePageLoaded, bridge.PageLoaded{Route: path, Title: title})
	if err != nil {
		s.logger.Warn("readiness: build PAGE_LOADED", "error", err)
		return
	}
	if err := s.transport.Send(ctx, loaded); err != nil {
		s.logger.Warn("readiness: send PAGE_LOADED", "error", err)
		return
	}

	ready := bridge.Message{Type: bridge.TypeAppReady}
	if err := s.transport.Send(ctx, ready); err != nil {
		s.logger.Warn("readiness: send APP_READY", "error", err)
		return
	}

	s.logger.Debug("readiness: signalled", "route", path)
}
