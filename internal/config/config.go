// Package config handles configuration parsing for terminal-division.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acolita/terminal-division/internal/ports"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/terminal-division/config.yaml or ~/.config/terminal-division/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "terminal-division", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Shell       ShellConfig       `yaml:"shell"`
	Env         EnvConfig         `yaml:"env"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Integration IntegrationConfig `yaml:"integration"`
	Write       WriteConfig       `yaml:"write"`
	History     HistoryConfig     `yaml:"history"`
	Session     SessionConfig     `yaml:"session"`
	Theme       ThemeConfig       `yaml:"theme"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ShellConfig defines how shells are launched.
type ShellConfig struct {
	Path      string `yaml:"path"`       // shell executable (default: $SHELL, then /bin/zsh)
	Term      string `yaml:"term"`       // TERM for spawned shells
	ColorTerm string `yaml:"color_term"` // COLORTERM for spawned shells
	Lang      string `yaml:"lang"`       // LANG and LC_ALL for spawned shells
}

// EnvConfig controls sanitization of the environment handed to shells.
type EnvConfig struct {
	// StripPatterns are glob patterns; matching variable names are removed
	// from the inherited environment (e.g. npm_* injected by package managers).
	StripPatterns []string `yaml:"strip_patterns"`
}

// ResolverConfig controls the one-time login shell PATH lookup.
type ResolverConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// IntegrationConfig controls rc-file injection.
type IntegrationConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DirPrefix    string `yaml:"dir_prefix"`    // temp dir name prefix, suffixed with the pid
	StripMarkers bool   `yaml:"strip_markers"` // drop decoded markers from forwarded output
}

// WriteConfig controls paste chunking.
type WriteConfig struct {
	PasteThreshold int           `yaml:"paste_threshold"` // bytes; larger writes are chunked
	FrameSize      int           `yaml:"frame_size"`      // bytes per frame
	FrameDelay     time.Duration `yaml:"frame_delay"`     // pause between frames
}

// HistoryConfig controls the input history engine.
type HistoryConfig struct {
	MaxUndo        int           `yaml:"max_undo"`
	SuppressWindow time.Duration `yaml:"suppress_window"` // echo suppression after undo/redo
}

// SessionConfig controls per-session behavior.
type SessionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // foreground process probe
	Cols         uint16        `yaml:"cols"`
	Rows         uint16        `yaml:"rows"`
	MaxSessions  int           `yaml:"max_sessions"` // 0 = unlimited
}

// ThemeConfig holds the colors used for prompt status indicators.
type ThemeConfig struct {
	SuccessColor string `yaml:"success_color"`
	FailureColor string `yaml:"failure_color"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // redact keystrokes and secrets from logs
}

// Defaults.
const (
	DefaultPasteThreshold = 512
	DefaultFrameSize      = 1024
	DefaultFrameDelay     = 10 * time.Millisecond
	DefaultMaxUndo        = 100
	DefaultSuppressWindow = 300 * time.Millisecond
	DefaultPollInterval   = time.Second
	DefaultResolveTimeout = 10 * time.Second
	DefaultSuccessColor   = "#23d18b"
	DefaultFailureColor   = "#f14c4c"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Term:      "xterm-256color",
			ColorTerm: "truecolor",
			Lang:      "en_US.UTF-8",
		},
		Env: EnvConfig{
			StripPatterns: []string{"npm_*"},
		},
		Resolver: ResolverConfig{
			Enabled: true,
			Timeout: DefaultResolveTimeout,
		},
		Integration: IntegrationConfig{
			Enabled:   true,
			DirPrefix: "terminal-division-shell",
		},
		Write: WriteConfig{
			PasteThreshold: DefaultPasteThreshold,
			FrameSize:      DefaultFrameSize,
			FrameDelay:     DefaultFrameDelay,
		},
		History: HistoryConfig{
			MaxUndo:        DefaultMaxUndo,
			SuppressWindow: DefaultSuppressWindow,
		},
		Session: SessionConfig{
			PollInterval: DefaultPollInterval,
			Cols:         80,
			Rows:         24,
		},
		Theme: ThemeConfig{
			SuccessColor: DefaultSuccessColor,
			FailureColor: DefaultFailureColor,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
// A missing file yields the defaults.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration, resetting out-of-range values to their
// defaults and normalizing theme colors to lowercase #rrggbb.
func (c *Config) Validate() error {
	if c.Write.PasteThreshold <= 0 {
		c.Write.PasteThreshold = DefaultPasteThreshold
	}
	if c.Write.FrameSize <= 0 {
		c.Write.FrameSize = DefaultFrameSize
	}
	if c.Write.FrameDelay < 0 {
		c.Write.FrameDelay = DefaultFrameDelay
	}
	if c.History.MaxUndo <= 0 {
		c.History.MaxUndo = DefaultMaxUndo
	}
	if c.History.SuppressWindow <= 0 {
		c.History.SuppressWindow = DefaultSuppressWindow
	}
	if c.Session.PollInterval <= 0 {
		c.Session.PollInterval = DefaultPollInterval
	}
	if c.Session.Cols == 0 {
		c.Session.Cols = 80
	}
	if c.Session.Rows == 0 {
		c.Session.Rows = 24
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("session.max_sessions must not be negative (got %d)", c.Session.MaxSessions)
	}
	if c.Resolver.Timeout <= 0 {
		c.Resolver.Timeout = DefaultResolveTimeout
	}
	if c.Integration.DirPrefix == "" || strings.ContainsRune(c.Integration.DirPrefix, '/') {
		return fmt.Errorf("integration.dir_prefix must be a plain name (got %q)", c.Integration.DirPrefix)
	}

	success, err := normalizeColor(c.Theme.SuccessColor, DefaultSuccessColor)
	if err != nil {
		return fmt.Errorf("theme.success_color: %w", err)
	}
	failure, err := normalizeColor(c.Theme.FailureColor, DefaultFailureColor)
	if err != nil {
		return fmt.Errorf("theme.failure_color: %w", err)
	}
	c.Theme.SuccessColor = success
	c.Theme.FailureColor = failure

	return nil
}

func normalizeColor(value, fallback string) (string, error) {
	if value == "" {
		value = fallback
	}
	col, err := colorful.Hex(value)
	if err != nil {
		return "", fmt.Errorf("invalid color %q: %w", value, err)
	}
	return col.Hex(), nil
}

// Save writes the configuration to a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Save(cfg *Config, path string, fsys ...ports.FileSystem) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if len(fsys) > 0 && fsys[0] != nil {
		return fsys[0].WriteFile(path, data, 0644)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
