package shellenv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
)

// ErrNoMarker is returned when the login shell output did not contain the
// marker-delimited PATH.
var ErrNoMarker = errors.New("PATH marker not found in login shell output")

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args []string, env []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return out, fmt.Errorf("login shell: %w", ctx.Err())
	}
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("login shell: %w", err)
	}
	// A non-zero exit from a noisy profile still counts if the marker made it out.
	return out, nil
}

// Resolver discovers the PATH of the user's login shell. The lookup runs at
// most once; its result is cached for the life of the Resolver.
type Resolver struct {
	shell    string
	environ  []string
	patterns []string
	timeout  time.Duration
	runner   Runner

	once sync.Once
	mu   sync.RWMutex
	path string
	err  error
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRunner sets the command runner.
func WithRunner(r Runner) ResolverOption {
	return func(res *Resolver) { res.runner = r }
}

// WithTimeout bounds the login shell invocation.
func WithTimeout(d time.Duration) ResolverOption {
	return func(res *Resolver) { res.timeout = d }
}

// WithStripPatterns sets the glob patterns of variables removed from the
// login shell environment. ZDOTDIR is always removed.
func WithStripPatterns(patterns []string) ResolverOption {
	return func(res *Resolver) { res.patterns = patterns }
}

// NewResolver creates a resolver for shell, run with the ambient environ.
func NewResolver(shell string, environ []string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		shell:    shell,
		environ:  environ,
		patterns: []string{"npm_*"},
		timeout:  10 * time.Second,
		runner:   ExecRunner{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the login shell once and caches the PATH it reports. Later
// calls return the cached outcome without running anything.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.once.Do(func() {
		path, err := r.run(ctx)
		if err != nil {
			slog.Warn("login shell PATH not resolved, using inherited PATH",
				slog.String("shell", r.shell),
				slog.String("error", err.Error()),
			)
		} else {
			slog.Info("resolved login shell PATH", slog.String("shell", r.shell))
		}
		r.mu.Lock()
		r.path, r.err = path, err
		r.mu.Unlock()
	})

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path, r.err
}

func (r *Resolver) run(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	marker := "__TD_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	env := Sanitize(r.environ, append(append([]string(nil), r.patterns...), "ZDOTDIR"))
	env = Set(env, "TERM", "dumb")

	out, err := r.runner.Run(ctx, r.shell, []string{"-ilc", "echo " + marker + "$PATH" + marker}, env)
	if err != nil {
		return "", err
	}
	path, ok := Extract(string(out), marker)
	if !ok {
		return "", ErrNoMarker
	}
	return path, nil
}

// Extract returns the non-empty text between the first pair of marker
// occurrences in output, ignoring ANSI sequences a profile may print.
func Extract(output, marker string) (string, bool) {
	output = ansi.Strip(output)
	_, rest, ok := strings.Cut(output, marker)
	if !ok {
		return "", false
	}
	value, _, ok := strings.Cut(rest, marker)
	if !ok || value == "" || strings.ContainsAny(value, "\r\n") {
		return "", false
	}
	return value, true
}

// Path returns the cached PATH, or "" when unresolved.
func (r *Resolver) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// MergedPath combines the cached PATH with ambient; see MergePath.
func (r *Resolver) MergedPath(ambient string) string {
	return MergePath(r.Path(), ambient)
}
