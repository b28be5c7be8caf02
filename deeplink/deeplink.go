// Package deeplink re-synchronizes already-loaded content with an
// externally triggered navigation target. The shell first asks the content
// to route internally and waits a short bound for an acknowledgement; only
// when the ack misses the window does it fall back to a full reload. The
// ack path is an optimization. The reload fallback must always exist, so an
// unresponsive content degrades to a slower but correct navigation.
package deeplink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerbook/appshell/bridge"
)

// DefaultAckWindow bounds the wait for DEEP_LINK_ACK.
const DefaultAckWindow = 300 * time.Millisecond

// Navigator performs the full-reload fallback. Implemented by the shell's
// page driver.
type Navigator interface {
	NavigateFull(ctx context.Context, path string) error
}

// Result reports how a deep link was resolved.
type Result string

const (
	ResultInContent Result = "in_content"
	ResultReload    Result = "reload"
)

// Synchronizer runs the deep-link handshake. One per shell; safe for
// sequential use (deep links arrive one at a time from the OS).
type Synchronizer struct {
	transport bridge.Transport
	nav       Navigator
	ackWindow time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending chan struct{} // non-nil while a request awaits its ack
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithAckWindow overrides the acknowledgement wait bound.
func WithAckWindow(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.ackWindow = d
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// New creates a Synchronizer. Register HandleAck with the shell's dispatcher
// for bridge.TypeDeepLinkAck before the first Open.
func New(transport bridge.Transport, nav Navigator, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		transport: transport,
		nav:       nav,
		ackWindow: DefaultAckWindow,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// HandleAck consumes a DEEP_LINK_ACK from the content. Acks with no pending
// request (late arrivals after the window closed) are dropped.
func (s *Synchronizer) HandleAck(ctx context.Context, msg bridge.Message) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		s.logger.Debug("deeplink: ack with no pending request, dropped")
		return nil
	}
	close(pending)
	return nil
}

// Open asks the content to navigate to path and waits for the ack. Exactly
// one of the two outcomes happens: in-content routing confirmed, or a single
// fallback full navigation.
func (s *Synchronizer) Open(ctx context.Context, path string) (Result, error) {
	ack := make(chan struct{})
	s.mu.Lock()
	s.pending = ack
	s.mu.Unlock()

	msg, err := bridge.New(bridge.TypeDeepLink, bridge.DeepLink{Path: path})
	if err != nil {
		return "", err
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		// Content unreachable: skip straight to the fallback.
		s.logger.Warn("deeplink: send failed, falling back to reload", "path", path, "error", err)
		return s.reload(ctx, path)
	}

	timer := time.NewTimer(s.ackWindow)
	defer timer.Stop()

	select {
	case <-ack:
		s.logger.Debug("deeplink: routed in-content", "path", path)
		return ResultInContent, nil
	case <-timer.C:
		s.logger.Info("deeplink: no ack within window, reloading", "path", path, "window", s.ackWindow)
		return s.reload(ctx, path)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Synchronizer) reload(ctx context.Context, path string) (Result, error) {
	// Clear the pending slot so a straggler ack for this request is dropped
	// instead of satisfying a future one.
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	if err := s.nav.NavigateFull(ctx, path); err != nil {
		return "", fmt.Errorf("deeplink: fallback navigation to %s: %w", path, err)
	}
	return ResultReload, nil
}
