package shell

import "log/slog"

// logSurface stands in for the splash layer in dev-bridge mode, where the
// shell has no page to draw on. Overlay state is still driven and journaled;
// only the rendering is reduced to log lines.
type logSurface struct {
	logger *slog.Logger
}

func (l logSurface) ShowOverlay() { l.logger.Info("shell: overlay shown") }
func (l logSurface) HideOverlay() { l.logger.Info("shell: overlay hidden") }
