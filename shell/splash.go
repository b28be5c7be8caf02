package shell

import (
	_ "embed"
	"log/slog"

	"github.com/go-rod/rod"
)

//go:embed splash.js
var splashJS string

// splashSurface renders the loading overlay as a shell-controlled layer on
// top of the page. It is installed via EvalOnNewDocument so it is visible
// from the first frame of a cold start or reload, before any content script
// runs. The content itself never touches it.
type splashSurface struct {
	page   *rod.Page
	logger *slog.Logger
}

func newSplashSurface(page *rod.Page, logger *slog.Logger) (*splashSurface, error) {
	s := &splashSurface{page: page, logger: logger}
	if _, err := page.EvalOnNewDocument(splashJS); err != nil {
		return nil, err
	}
	if _, err := page.Eval(splashJS); err != nil {
		return nil, err
	}
	return s, nil
}

// ShowOverlay implements overlay.Surface.
func (s *splashSurface) ShowOverlay() {
	if _, err := s.page.Eval(`() => window.__appshell_splash.show()`); err != nil {
		s.logger.Debug("shell: splash show", "error", err)
	}
}

// HideOverlay implements overlay.Surface.
func (s *splashSurface) HideOverlay() {
	if _, err := s.page.Eval(`() => window.__appshell_splash.hide()`); err != nil {
		s.logger.Debug("shell: splash hide", "error", err)
	}
}
