package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/acolita/terminal-division/internal/adapters/realfs"
	"github.com/acolita/terminal-division/internal/config"
	"github.com/acolita/terminal-division/internal/integration"
	"github.com/acolita/terminal-division/internal/logging"
	localpty "github.com/acolita/terminal-division/internal/pty"
	"github.com/acolita/terminal-division/internal/session"
	"github.com/acolita/terminal-division/internal/shellenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "terminal-division",
	Short: "Shell sessions with integration markers and undoable input",
	Long: `terminal-division runs login shells on pseudo-terminals, injects shell
integration so they report their working directory and prompt status, and
tracks each input line so it can be undone and redone.

Commands:
  serve    expose sessions to an MCP client over stdio
  attach   bridge this terminal to a single session
  path     print the login shell PATH sessions receive
  config   create or show the configuration file`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// loadConfig reads and validates the config file, applying --debug.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if debug {
		cfg.Logging.Level = "debug"
	}
}

// app is everything a command needs to run sessions.
type app struct {
	cfg      *config.Config
	registry *session.Registry
	resolver *shellenv.Resolver
	injector *integration.Injector
	watcher  *config.Watcher
}

// newApp loads config, sets up logging, resolves the login PATH and
// builds the registry.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)

	fs := realfs.New()
	shell := cfg.Shell.Path
	if shell == "" {
		shell = localpty.DetectShell(fs.Getenv)
	}

	resolver := shellenv.NewResolver(shell, fs.Environ(),
		shellenv.WithTimeout(cfg.Resolver.Timeout),
		shellenv.WithStripPatterns(cfg.Env.StripPatterns),
	)
	if cfg.Resolver.Enabled {
		// Resolve logs its own failure; sessions then get the inherited PATH.
		_, _ = resolver.Resolve(ctx)
	}

	injector := integration.NewInjector(fs, integration.WithDirPrefix(cfg.Integration.DirPrefix))

	return &app{
		cfg:      cfg,
		resolver: resolver,
		injector: injector,
		registry: session.NewRegistry(cfg,
			session.WithFileSystem(fs),
			session.WithIntegration(injector),
			session.WithPathResolver(resolver),
			session.WithContext(ctx),
		),
	}, nil
}

// watch hot-reloads the config file, if there is one. Each new config goes
// to onReload, or straight to the registry when onReload is nil.
func (a *app) watch(onReload func(*config.Config)) {
	if _, err := os.Stat(configPath); err != nil {
		return
	}

	w, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		applyFlags(newCfg)
		if onReload != nil {
			onReload(newCfg)
			return
		}
		a.registry.UpdateConfig(newCfg)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		return
	}
	a.watcher = w
	slog.Info("config hot-reload enabled", slog.String("path", configPath))
}

// Close stops the watcher, kills every session and removes the
// integration directory.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.registry.KillAll()
}
