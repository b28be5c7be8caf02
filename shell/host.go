package shell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// pageHost owns the embedded page's browser lifecycle: launch a local
// Chrome or attach to a remote one, open the single app page, and tear
// everything down on Close.
type pageHost struct {
	remote   string
	headless bool
	logger   *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	closed  bool
}

func newPageHost(remote string, headless bool, logger *slog.Logger) *pageHost {
	return &pageHost{remote: remote, headless: headless, logger: logger}
}

// Start connects the browser and opens a blank page ready for the UI.
func (h *pageHost) Start(ctx context.Context) (*rod.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("shell: page host is closed")
	}

	wsURL := h.remote
	if wsURL == "" {
		l := launcher.New().Headless(h.headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("shell: launch browser: %w", err)
		}
		h.lnch = l
		wsURL = u
		h.logger.Info("shell: launched local browser", "headless", h.headless)
	} else {
		h.logger.Info("shell: attaching to remote browser", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("shell: connect browser: %w", err)
	}
	h.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("shell: create page: %w", err)
	}
	h.page = page
	return page, nil
}

// Page returns the app page.
func (h *pageHost) Page() *rod.Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page
}

// Close shuts the page and the browser down. Remote browsers are left
// running; only our page is closed.
func (h *pageHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.page != nil {
		if err := h.page.Close(); err != nil {
			h.logger.Debug("shell: page close", "error", err)
		}
	}
	if h.browser != nil && h.remote == "" {
		if err := h.browser.Close(); err != nil {
			h.logger.Debug("shell: browser close", "error", err)
		}
	}
	if h.lnch != nil {
		h.lnch.Cleanup()
	}
	return nil
}
