// Package cdpsource implements the real stability.DisruptionSource over the
// Chrome DevTools Protocol. An injected PerformanceObserver watches
// layout-shift and paint entries and font readiness, and reports them
// through a dedicated binding.
package cdpsource

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ledgerbook/appshell/stability"
)

//go:embed observe.js
var observeJS string

const bindingName = "__appshell_stability"

// Source observes one page. Create with New, hand to stability.NewMonitor.
type Source struct {
	page   *rod.Page
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Source for the given page.
func New(page *rod.Page, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{page: page, logger: logger}
}

// Start implements stability.DisruptionSource.
func (s *Source) Start(sink stability.Sink) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(s.page); err != nil {
		cancel()
		return fmt.Errorf("cdpsource: add binding: %w", err)
	}

	go s.listen(sink)

	// Persist across reloads, then arm the current document.
	if _, err := s.page.EvalOnNewDocument(observeJS); err != nil {
		s.logger.Warn("cdpsource: persistent observer failed", "error", err)
	}
	if _, err := s.page.Eval(observeJS); err != nil {
		cancel()
		return fmt.Errorf("cdpsource: inject observer: %w", err)
	}
	return nil
}

// Stop implements stability.DisruptionSource.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Source) listen(sink stability.Sink) {
	s.page.Context(s.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		switch e.Payload {
		case "shift":
			sink.Disruption(time.Now())
		case "paint":
			sink.FirstPaint()
		case "fonts":
			sink.FontsReady()
		default:
			s.logger.Debug("cdpsource: unknown signal", "payload", e.Payload)
		}
	})()
}
