// Package shell is the native side of the embedded-UI handshake. It hosts
// the bookkeeping web UI in a browser page, owns the loading overlay, and
// reconciles readiness messages, fallback timers, and deep links into one
// externally observable behavior: when the overlay drops and whether a deep
// link reloads or routes in place.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerbook/appshell/bridge"
	"github.com/ledgerbook/appshell/bridge/rodbridge"
	"github.com/ledgerbook/appshell/bridge/wsbridge"
	"github.com/ledgerbook/appshell/config"
	"github.com/ledgerbook/appshell/deeplink"
	"github.com/ledgerbook/appshell/journal"
	"github.com/ledgerbook/appshell/overlay"
	"github.com/ledgerbook/appshell/uiserve"
)

// Shell wires the page host, UI server, bridge, overlay coordinator, and
// deep-link synchronizer together. Create with New, then Start and Run.
type Shell struct {
	cfg    *config.Config
	assets fs.FS
	logger *slog.Logger

	host      *pageHost
	ui        *uiserve.Server
	transport bridge.Transport
	disp      *bridge.Dispatcher
	coord     *overlay.Coordinator
	links     *deeplink.Synchronizer
	jrn       *journal.Journal
	net       *netWatch
	auto      *autoReady

	// navSeq issues monotonically increasing navigation ids.
	navSeq atomic.Uint64

	uiBase string

	// onPushToken, if set, receives PUSH_TOKEN registrations for the
	// out-of-band delivery backend.
	onPushToken func(bridge.PushToken)
}

// Option configures a Shell.
type Option func(*Shell)

// WithPushTokenSink registers the consumer for PUSH_TOKEN messages.
func WithPushTokenSink(fn func(bridge.PushToken)) Option {
	return func(s *Shell) { s.onPushToken = fn }
}

// WithJournal attaches a journal for bridge traffic and overlay decisions.
func WithJournal(j *journal.Journal) Option {
	return func(s *Shell) { s.jrn = j }
}

// New assembles a Shell over the given UI assets. Call Start to bring the
// browser and servers up.
func New(cfg *config.Config, assets fs.FS, logger *slog.Logger, opts ...Option) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Defaults()

	s := &Shell{
		cfg:    cfg,
		assets: assets,
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start brings up the UI server and the bridge, then arms the overlay for
// the cold-start navigation. With UI.DevBridge set, the content runs in an
// external browser of the developer's choosing and the bridge rides a local
// websocket; otherwise the shell embeds the page itself and the bridge
// rides CDP.
func (s *Shell) Start(ctx context.Context) error {
	s.ui = uiserve.New(s.assets, s.logger)

	var surface overlay.Surface
	if s.cfg.UI.DevBridge {
		ws := wsbridge.NewServer(s.logger)
		s.ui.Router().Get("/bridge", ws.Handler())
		s.transport = ws
		surface = logSurface{s.logger}
	}

	addr, err := s.ui.Start(s.cfg.UI.Listen)
	if err != nil {
		return fmt.Errorf("shell: ui server: %w", err)
	}
	s.uiBase = "http://" + addr

	if !s.cfg.UI.DevBridge {
		s.host = newPageHost(s.cfg.Browser.Remote, s.cfg.Browser.Headless, s.logger)
		page, err := s.host.Start(ctx)
		if err != nil {
			return err
		}

		splash, err := newSplashSurface(page, s.logger)
		if err != nil {
			return fmt.Errorf("shell: install splash: %w", err)
		}
		surface = splash

		tr, err := rodbridge.Attach(page, s.logger)
		if err != nil {
			return err
		}
		s.transport = tr
	}

	coordOpts := []overlay.Option{
		overlay.WithFallback(s.cfg.Overlay.Fallback),
		overlay.WithLogger(s.logger),
	}
	if s.jrn != nil {
		coordOpts = append(coordOpts, overlay.WithDismissHook(func(nav uint64, reason overlay.Reason) {
			s.jrn.Record(journal.Entry{Kind: journal.KindOverlay, Subject: string(reason), Nav: nav})
		}))
	}
	s.coord = overlay.New(surface, coordOpts...)

	if s.jrn != nil {
		s.transport = newJournalTap(s.transport, s.jrn, func() uint64 { return s.navSeq.Load() })
	}

	if s.host != nil && s.cfg.Stability.AutoReady {
		s.auto = newAutoReady(s.host.Page(), s.cfg.Stability, s.logger)
		s.auto.onReady = func() { s.coord.AppReady(s.navSeq.Load()) }
		s.auto.onLoaded = func(route, title string) {
			s.logger.Info("shell: page settled", "route", route, "title", title)
		}
	}

	s.disp = bridge.NewDispatcher(s.transport, s.logger)
	s.links = deeplink.New(s.transport, s,
		deeplink.WithAckWindow(s.cfg.DeepLink.AckWindow),
		deeplink.WithLogger(s.logger))
	s.registerHandlers()

	s.net = newNetWatch(s.logger, func(connected bool) {
		s.NotifyNetworkStatus(ctx, connected)
	})

	return s.Navigate(ctx, s.cfg.UI.StartRoute)
}

// Run blocks until ctx is cancelled, pumping inbound messages and watching
// connectivity.
func (s *Shell) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.disp.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.net.run(ctx)
		return nil
	})
	if s.auto != nil {
		g.Go(func() error {
			s.auto.pump(ctx)
			return nil
		})
	}
	return g.Wait()
}

// Close tears everything down.
func (s *Shell) Close() error {
	if s.auto != nil {
		s.auto.close()
	}
	if s.transport != nil {
		s.transport.Close()
	}
	var firstErr error
	if s.host != nil {
		firstErr = s.host.Close()
	}
	if s.ui != nil {
		if err := s.ui.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Navigate drives the page to an in-app path as a full navigation: a fresh
// navigation id is issued, the overlay re-arms, and the fallback timer
// starts. The readiness handshake then decides the dismissal moment.
func (s *Shell) Navigate(ctx context.Context, path string) error {
	nav := s.navSeq.Add(1)
	s.coord.Arm(nav)

	target, err := s.routeURL(path)
	if err != nil {
		return err
	}
	s.logger.Info("shell: navigating", "nav", nav, "path", path)

	if s.host == nil {
		// Dev bridge: the external browser owns its own address bar. The
		// fallback timer still bounds the overlay state.
		s.logger.Warn("shell: dev bridge cannot force a reload, open manually", "url", target)
		return nil
	}
	if err := s.host.Page().Context(ctx).Navigate(target); err != nil {
		return fmt.Errorf("shell: navigate %s: %w", path, err)
	}
	if s.auto != nil {
		s.auto.pageNavigated(path)
	}
	return nil
}

// NavigateFull implements deeplink.Navigator.
func (s *Shell) NavigateFull(ctx context.Context, path string) error {
	return s.Navigate(ctx, path)
}

// OpenDeepLink handles an externally triggered navigation target. In-content
// routing is preferred; the overlay only re-arms when the synchronizer falls
// back to a full reload (which goes through Navigate).
func (s *Shell) OpenDeepLink(ctx context.Context, path string) (deeplink.Result, error) {
	res, err := s.links.Open(ctx, path)
	if err != nil {
		return res, err
	}
	if s.jrn != nil {
		s.jrn.Record(journal.Entry{Kind: journal.KindDeepLink, Subject: string(res), Detail: jsonDetail(map[string]string{"path": path})})
	}
	return res, nil
}

// NotifyNetworkStatus forwards a connectivity change to the content.
func (s *Shell) NotifyNetworkStatus(ctx context.Context, connected bool) {
	s.notify(ctx, bridge.TypeNetworkStatus, bridge.NetworkStatus{IsConnected: connected})
}

// NotifyAppState forwards a shell lifecycle change to the content.
func (s *Shell) NotifyAppState(ctx context.Context, state string) {
	s.notify(ctx, bridge.TypeAppState, bridge.AppState{State: state})
}

// NotifyTheme forwards a shell-driven theme override to the content.
func (s *Shell) NotifyTheme(ctx context.Context, mode string) {
	s.notify(ctx, bridge.TypeThemeChange, bridge.ThemeChange{Mode: mode})
}

func (s *Shell) notify(ctx context.Context, t bridge.Type, payload any) {
	msg, err := bridge.New(t, payload)
	if err != nil {
		s.logger.Warn("shell: build notification", "type", t, "error", err)
		return
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		s.logger.Warn("shell: notification not delivered", "type", t, "error", err)
	}
}

func (s *Shell) registerHandlers() {
	s.disp.On(bridge.TypeAppReady, func(ctx context.Context, _ bridge.Message) error {
		// APP_READY carries no id; it always speaks for the navigation
		// that is current when it arrives.
		s.coord.AppReady(s.navSeq.Load())
		return nil
	})

	s.disp.On(bridge.TypePageLoaded, func(ctx context.Context, msg bridge.Message) error {
		var p bridge.PageLoaded
		if err := msg.Decode(&p); err != nil {
			return err
		}
		s.logger.Info("shell: page loaded", "route", p.Route, "title", p.Title)
		return nil
	})

	s.disp.On(bridge.TypeDeepLinkAck, s.links.HandleAck)

	s.disp.On(bridge.TypePushToken, func(ctx context.Context, msg bridge.Message) error {
		var tok bridge.PushToken
		if err := msg.Decode(&tok); err != nil {
			return err
		}
		if s.onPushToken != nil {
			s.onPushToken(tok)
		}
		return nil
	})
}

// routeURL resolves an in-app path against the UI origin.
func (s *Shell) routeURL(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(s.uiBase + path)
	if err != nil {
		return "", fmt.Errorf("shell: bad route %q: %w", path, err)
	}
	return u.String(), nil
}

func jsonDetail(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
