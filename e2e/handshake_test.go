// Package e2e tests cross-package integration chains of the readiness
// handshake: content-side signaler, bridge, dispatcher, overlay coordinator,
// and deep-link synchronizer wired together over an in-process transport
// pair, the same composition the shell uses in production.
package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ledgerbook/appshell/bridge"
	"github.com/ledgerbook/appshell/deeplink"
	"github.com/ledgerbook/appshell/frameclock"
	"github.com/ledgerbook/appshell/overlay"
	"github.com/ledgerbook/appshell/readiness"
	"github.com/ledgerbook/appshell/stability"
)

// surface records overlay visibility transitions with timestamps.
type surface struct {
	mu     sync.Mutex
	events []string
}

func (s *surface) ShowOverlay() { s.record("show") }
func (s *surface) HideOverlay() { s.record("hide") }

func (s *surface) record(ev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *surface) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// harness wires both ends of the handshake over a pipe.
type harness struct {
	signaler *readiness.Signaler
	source   *stability.FakeSource
	coord    *overlay.Coordinator
	surface  *surface
	disp     *bridge.Dispatcher
	shellEnd bridge.Transport
	dismiss  chan overlay.Reason
}

func newHarness(t *testing.T, fallback time.Duration) *harness {
	t.Helper()

	contentEnd, shellEnd := bridge.Pipe()
	t.Cleanup(func() {
		contentEnd.Close()
		shellEnd.Close()
	})

	src := &stability.FakeSource{ReportFontsAtStart: true}
	monitor := stability.NewMonitor(src, stability.Config{
		QuietWindow:  20 * time.Millisecond,
		PaintGrace:   10 * time.Millisecond,
		MaxWait:      150 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	monitor.Initialize()
	src.Paint()

	clock := frameclock.New(frameclock.WithInterval(2 * time.Millisecond))
	t.Cleanup(clock.Close)

	sig := readiness.NewSignaler(readiness.Config{
		Transport: contentEnd,
		Monitor:   monitor,
		Clock:     clock,
		Routes:    readiness.RouteInfoFunc(func() (string, string) { return "/loans", "Loans" }),
	})

	surf := &surface{}
	dismiss := make(chan overlay.Reason, 8)
	coord := overlay.New(surf,
		overlay.WithFallback(fallback),
		overlay.WithDismissHook(func(_ uint64, r overlay.Reason) { dismiss <- r }))

	var nav uint64 = 1
	disp := bridge.NewDispatcher(shellEnd, nil)
	disp.On(bridge.TypeAppReady, func(context.Context, bridge.Message) error {
		coord.AppReady(nav)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go disp.Run(ctx)

	return &harness{
		signaler: sig,
		source:   src,
		coord:    coord,
		surface:  surf,
		disp:     disp,
		shellEnd: shellEnd,
		dismiss:  dismiss,
	}
}

func TestHandshakeDismissesOverlay(t *testing.T) {
	h := newHarness(t, 2*time.Second)

	h.coord.Arm(1)
	h.signaler.SignalReady()

	select {
	case reason := <-h.dismiss:
		if reason != overlay.ReasonAppReady {
			t.Fatalf("reason: got %s, want %s", reason, overlay.ReasonAppReady)
		}
	case <-time.After(time.Second):
		t.Fatal("overlay never dismissed")
	}

	events := h.surface.snapshot()
	if len(events) != 2 || events[0] != "show" || events[1] != "hide" {
		t.Fatalf("surface events: got %v, want [show hide]", events)
	}
}

func TestHandshakeFallbackWhenContentSilent(t *testing.T) {
	h := newHarness(t, 80*time.Millisecond)

	h.coord.Arm(1)
	// Content never signals.

	select {
	case reason := <-h.dismiss:
		if reason != overlay.ReasonFallback {
			t.Fatalf("reason: got %s, want %s", reason, overlay.ReasonFallback)
		}
	case <-time.After(time.Second):
		t.Fatal("fallback never dismissed the overlay")
	}
}

func TestHandshakeSupersededNavigation(t *testing.T) {
	h := newHarness(t, 2*time.Second)

	// First navigation starts loading, then a second supersedes it while the
	// stability wait is held open by disruptions.
	h.coord.Arm(1)
	h.source.Disrupt(time.Now())
	h.signaler.SignalReady()
	time.Sleep(5 * time.Millisecond)
	h.signaler.SignalReady()

	select {
	case <-h.dismiss:
	case <-time.After(time.Second):
		t.Fatal("overlay never dismissed")
	}

	// Only one PAGE_LOADED/APP_READY pair crossed the bridge overall; a
	// second dismissal would need a second pair.
	select {
	case r := <-h.dismiss:
		t.Fatalf("extra dismissal: %s", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeepLinkAckAgainstLiveContent(t *testing.T) {
	newHarness(t, 2*time.Second)

	// Content side of the deep link: reply with an ack, as the routed UI
	// does after an in-content navigation. The readiness signaler and the
	// deep link share the same content transport in production; here the
	// content end lives inside the harness, so wire a fresh pipe pair for
	// the deep-link direction.
	shellEnd, contentEnd := bridge.Pipe()
	t.Cleanup(func() {
		shellEnd.Close()
		contentEnd.Close()
	})

	go func() {
		for msg := range contentEnd.Receive() {
			if msg.Type == bridge.TypeDeepLink {
				contentEnd.Send(context.Background(), bridge.Message{Type: bridge.TypeDeepLinkAck})
			}
		}
	}()

	var reloads int
	links := deeplink.New(shellEnd, navigatorFunc(func(context.Context, string) error {
		reloads++
		return nil
	}), deeplink.WithAckWindow(300*time.Millisecond))

	disp := bridge.NewDispatcher(shellEnd, nil)
	disp.On(bridge.TypeDeepLinkAck, links.HandleAck)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go disp.Run(ctx)

	res, err := links.Open(ctx, "/customers/3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if res != deeplink.ResultInContent {
		t.Fatalf("result: got %s, want %s", res, deeplink.ResultInContent)
	}
	if reloads != 0 {
		t.Fatalf("reloads: got %d, want 0", reloads)
	}
}

type navigatorFunc func(ctx context.Context, path string) error

func (f navigatorFunc) NavigateFull(ctx context.Context, path string) error { return f(ctx, path) }
