package shell

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/ledgerbook/appshell/bridge"
	"github.com/ledgerbook/appshell/config"
	"github.com/ledgerbook/appshell/frameclock"
	"github.com/ledgerbook/appshell/readiness"
	"github.com/ledgerbook/appshell/stability"
	"github.com/ledgerbook/appshell/stability/cdpsource"
)

// autoReady runs the readiness pipeline on the shell side of the page
// boundary, for content that does not carry the bridge script. The page is
// observed through CDP, the same stability monitor and signaler the content
// library uses run in-process over a pipe, and the resulting messages feed
// the same dispatcher path a content-emitted APP_READY would take.
type autoReady struct {
	signaler *readiness.Signaler
	monitor  *stability.Monitor
	clock    *frameclock.Clock
	local    bridge.Transport
	logger   *slog.Logger

	onReady  func()
	onLoaded func(route, title string)

	mu    sync.Mutex
	route string
}

func newAutoReady(page *rod.Page, cfg config.StabilityConfig, logger *slog.Logger) *autoReady {
	near, far := bridge.Pipe()

	a := &autoReady{local: near, logger: logger}
	a.monitor = stability.NewMonitor(cdpsource.New(page, logger), stability.Config{
		QuietWindow:  cfg.QuietWindow,
		MaxWait:      cfg.MaxWait,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
	a.clock = frameclock.New()
	a.signaler = readiness.NewSignaler(readiness.Config{
		Transport: far,
		Monitor:   a.monitor,
		Clock:     a.clock,
		Routes:    readiness.RouteInfoFunc(a.currentRoute),
		Logger:    logger,
	})
	return a
}

// currentRoute reports the last navigated path. The title is unknown on the
// shell side and left empty.
func (a *autoReady) currentRoute() (string, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route, ""
}

// pageNavigated (re)starts the pipeline for the navigation that just
// committed. A pipeline still in flight for the previous navigation is
// superseded by the signaler.
func (a *autoReady) pageNavigated(route string) {
	a.mu.Lock()
	a.route = route
	a.mu.Unlock()

	a.monitor.Initialize()
	a.signaler.SignalReady()
}

// pump forwards pipeline output until ctx is cancelled.
func (a *autoReady) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.local.Receive():
			switch msg.Type {
			case bridge.TypeAppReady:
				if a.onReady != nil {
					a.onReady()
				}
			case bridge.TypePageLoaded:
				var p bridge.PageLoaded
				if err := msg.Decode(&p); err != nil {
					a.logger.Warn("shell: auto-ready payload", "error", err)
					continue
				}
				if a.onLoaded != nil {
					a.onLoaded(p.Route, p.Title)
				}
			}
		}
	}
}

func (a *autoReady) close() {
	a.signaler.Detach()
	a.clock.Close()
	a.monitor.Shutdown()
	a.local.Close()
}
