// Command appshell hosts the ledgerbook web UI in an embedded browser page
// and runs the native side of the readiness handshake: overlay, fallback
// timers, and deep-link synchronization.
//
// Usage:
//
//	appshell -config appshell.yaml
//	appshell -ui ./dist              # serve a local UI build
//	appshell -deeplink /loans/42     # simulate a deep link after startup
package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ledgerbook/appshell/bridge"
	"github.com/ledgerbook/appshell/config"
	"github.com/ledgerbook/appshell/journal"
	"github.com/ledgerbook/appshell/shell"
)

//go:embed ui
var embeddedUI embed.FS

func main() {
	configPath := flag.String("config", "", "path to appshell.yaml")
	uiDir := flag.String("ui", "", "serve UI from a local directory instead of the embedded bundle")
	deepLink := flag.String("deeplink", "", "simulate a deep link shortly after startup")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *uiDir, *deepLink); err != nil {
		logger.Error("appshell: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, uiDir, deepLink string) error {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Defaults()

	assets, err := uiAssets(uiDir)
	if err != nil {
		return err
	}

	var opts []shell.Option
	if cfg.Journal.Path != "" {
		db, err := journal.OpenDB(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		jrn := journal.New(db, journal.WithLogger(logger))
		defer jrn.Close()
		if n, err := jrn.Cleanup(ctx, cfg.Journal.Retention); err == nil && n > 0 {
			logger.Info("appshell: journal pruned", "removed", n)
		}
		opts = append(opts, shell.WithJournal(jrn))
	}
	opts = append(opts, shell.WithPushTokenSink(func(tok bridge.PushToken) {
		// Registration with the delivery backend lives outside the shell;
		// surfacing the token is all the shell owes it.
		logger.Info("appshell: push token registered", "platform", tok.Platform)
	}))

	sh := shell.New(cfg, assets, logger, opts...)
	if err := sh.Start(ctx); err != nil {
		return err
	}
	defer sh.Close()

	if deepLink != "" {
		go func() {
			// Let the cold start settle before the simulated deep link.
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return
			}
			res, err := sh.OpenDeepLink(ctx, deepLink)
			if err != nil {
				logger.Warn("appshell: deep link failed", "path", deepLink, "error", err)
				return
			}
			logger.Info("appshell: deep link resolved", "path", deepLink, "result", string(res))
		}()
	}

	return sh.Run(ctx)
}

func uiAssets(uiDir string) (fs.FS, error) {
	if uiDir != "" {
		return os.DirFS(uiDir), nil
	}
	return fs.Sub(embeddedUI, "ui")
}
