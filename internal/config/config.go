// Package config loads chat-resume configuration from a TOML file with
// built-in defaults.
//
// File location: ~/.chat-resume/config.toml, overridable with --config.
// A missing file is not an error; a malformed file is.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete chat-resume configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig points the client at the chat backend.
type ServerConfig struct {
	// BaseURL of the session history API.
	BaseURL string `toml:"base_url"`
	// TimeoutSeconds bounds each request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// UIConfig tunes list rendering and refresh behavior.
type UIConfig struct {
	// ItemHeight is the nominal rows per session card.
	ItemHeight int `toml:"item_height"`
	// BufferItems widens the virtualization range on each side.
	BufferItems int `toml:"buffer_items"`
	// PageLimit is the list page size requested from the backend.
	PageLimit int `toml:"page_limit"`
	// RefreshIntervalSeconds re-runs the list fetch periodically; 0 disables.
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
}

// LogConfig controls the log file. The TUI owns the terminal, so logs always
// go to a file, never to stderr.
type LogConfig struct {
	// File path for logs; empty means ~/.chat-resume/chat-resume.log.
	File string `toml:"file"`
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://127.0.0.1:8080/api/sessions",
			TimeoutSeconds: 15,
		},
		UI: UIConfig{
			ItemHeight:  3,
			BufferItems: 3,
			PageLimit:   100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".chat-resume", "config.toml"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = defaultPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize clamps nonsensical values back to defaults.
func (c *Config) normalize() {
	def := Default()
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = def.Server.BaseURL
	}
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = def.Server.TimeoutSeconds
	}
	if c.UI.ItemHeight <= 0 {
		c.UI.ItemHeight = def.UI.ItemHeight
	}
	if c.UI.BufferItems < 0 {
		c.UI.BufferItems = def.UI.BufferItems
	}
	if c.UI.PageLimit <= 0 {
		c.UI.PageLimit = def.UI.PageLimit
	}
	if c.UI.RefreshIntervalSeconds < 0 {
		c.UI.RefreshIntervalSeconds = 0
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the auto-refresh interval, zero when disabled.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.UI.RefreshIntervalSeconds) * time.Second
}

// LogFile returns the log file path, creating the parent directory.
func (c *Config) LogFile() (string, error) {
	path := c.Log.File
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".chat-resume", "chat-resume.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return path, nil
}
