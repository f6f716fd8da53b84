// Package integration generates the rc files that make zsh and bash report
// their working directory and prompt lifecycle to the session engine.
package integration

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"text/template"

	"github.com/acolita/terminal-division/internal/ports"
)

// ShellKind identifies a supported shell.
type ShellKind string

const (
	Zsh   ShellKind = "zsh"
	Bash  ShellKind = "bash"
	Other ShellKind = ""
)

// KindOf returns the kind of the shell at path, judged by its base name.
func KindOf(shell string) ShellKind {
	switch filepath.Base(shell) {
	case "zsh":
		return Zsh
	case "bash":
		return Bash
	default:
		return Other
	}
}

// Injector owns the integration directory. The directory is created on
// first use and lives until Shutdown.
type Injector struct {
	fs     ports.FileSystem
	prefix string
	pid    int

	mu  sync.Mutex
	dir string
}

// Option configures an Injector.
type Option func(*Injector)

// WithDirPrefix sets the directory name prefix; the pid is appended.
func WithDirPrefix(prefix string) Option {
	return func(i *Injector) { i.prefix = prefix }
}

// WithPID overrides the pid used in the directory name.
func WithPID(pid int) Option {
	return func(i *Injector) { i.pid = pid }
}

// NewInjector creates an injector writing through fsys.
func NewInjector(fsys ports.FileSystem, opts ...Option) *Injector {
	i := &Injector{
		fs:     fsys,
		prefix: "terminal-division-shell",
		pid:    os.Getpid(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the integration directory, creating it and its rc files on
// the first call. A failed attempt is retried on the next call.
func (i *Injector) Dir() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dir != "" {
		return i.dir, nil
	}

	dir := filepath.Join(i.fs.TempDir(), i.prefix+"-"+strconv.Itoa(i.pid))
	if err := i.fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create integration dir: %w", err)
	}

	data := rcData{OrigZdotdir: i.origZdotdir(), IntegrationDir: dir}
	for _, t := range []*template.Template{zshenvTmpl, zshrcTmpl, bashrcTmpl} {
		content, err := render(t, data)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", t.Name(), err)
		}
		if err := i.fs.WriteFile(filepath.Join(dir, t.Name()), []byte(content), 0600); err != nil {
			return "", fmt.Errorf("write %s: %w", t.Name(), err)
		}
	}

	slog.Debug("created shell integration dir", slog.String("dir", dir))
	i.dir = dir
	return dir, nil
}

// origZdotdir is where the user's own zsh startup files live.
func (i *Injector) origZdotdir() string {
	if z := i.fs.Getenv("ZDOTDIR"); z != "" {
		return z
	}
	home, err := i.fs.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// Env returns the variables that point shell at the integration rc files.
// Only zsh needs any. A nil map means no integration.
func (i *Injector) Env(shell string) map[string]string {
	if KindOf(shell) != Zsh {
		return nil
	}
	dir, err := i.Dir()
	if err != nil {
		slog.Warn("shell integration unavailable", slog.String("error", err.Error()))
		return nil
	}
	return map[string]string{
		"ZDOTDIR":              dir,
		"__TD_ORIG_ZDOTDIR":    i.origZdotdir(),
		"__TD_INTEGRATION_DIR": dir,
	}
}

// Args returns extra argv for shell. bash has no startup-directory
// variable, so it gets an explicit --rcfile.
func (i *Injector) Args(shell string) []string {
	if KindOf(shell) != Bash {
		return nil
	}
	dir, err := i.Dir()
	if err != nil {
		slog.Warn("shell integration unavailable", slog.String("error", err.Error()))
		return nil
	}
	return []string{"--rcfile", filepath.Join(dir, ".bashrc")}
}

// Shutdown removes the integration directory. Failures are logged and
// otherwise ignored. The directory is recreated on the next use.
func (i *Injector) Shutdown() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dir == "" {
		return
	}
	if err := i.fs.RemoveAll(i.dir); err != nil {
		slog.Debug("failed to remove shell integration dir",
			slog.String("dir", i.dir),
			slog.String("error", err.Error()),
		)
	}
	i.dir = ""
}
