// Package config loads shell configuration from YAML with sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shell configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	UI        UIConfig        `yaml:"ui"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	DeepLink  DeepLinkConfig  `yaml:"deep_link"`
	Stability StabilityConfig `yaml:"stability"`
	Journal   JournalConfig   `yaml:"journal"`
}

// BrowserConfig controls the embedded page host.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local one.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
}

// UIConfig controls the embedded UI server.
type UIConfig struct {
	// Listen is the local address the UI is served on. Default: 127.0.0.1:0.
	Listen string `yaml:"listen"`
	// StartRoute is the in-app path opened on cold start. Default: "/".
	StartRoute string `yaml:"start_route"`
	// DevBridge enables the websocket bridge endpoint for externally
	// hosted content (development).
	DevBridge bool `yaml:"dev_bridge"`
}

// OverlayConfig controls the loading overlay coordinator.
type OverlayConfig struct {
	// Fallback bounds how long the overlay survives without APP_READY.
	Fallback time.Duration `yaml:"fallback"`
}

// DeepLinkConfig controls the deep-link synchronizer.
type DeepLinkConfig struct {
	// AckWindow bounds the wait for DEEP_LINK_ACK before a full reload.
	AckWindow time.Duration `yaml:"ack_window"`
}

// StabilityConfig tunes the stability monitor.
type StabilityConfig struct {
	QuietWindow  time.Duration `yaml:"quiet_window"`
	MaxWait      time.Duration `yaml:"max_wait"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// AutoReady runs the readiness pipeline shell-side over CDP, for
	// content that does not carry the bridge script.
	AutoReady bool `yaml:"auto_ready"`
}

// JournalConfig controls the shell journal.
type JournalConfig struct {
	// Path of the SQLite file. Empty disables the journal.
	Path string `yaml:"path"`
	// Retention prunes entries older than this on startup. Default: 7 days.
	Retention time.Duration `yaml:"retention"`
}

// Defaults fills zero values in place.
func (c *Config) Defaults() {
	if c.UI.Listen == "" {
		c.UI.Listen = "127.0.0.1:0"
	}
	if c.UI.StartRoute == "" {
		c.UI.StartRoute = "/"
	}
	if c.Journal.Retention <= 0 {
		c.Journal.Retention = 7 * 24 * time.Hour
	}
	// Overlay, deep-link, and stability zero values fall through to the
	// package defaults of their components.
}

// Load reads a YAML configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Defaults()
	return &cfg, nil
}
