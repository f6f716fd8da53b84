// Package session owns the PTY sessions of every window: spawning shells
// with integration, routing their output and events, and applying input,
// paste framing and line history on the way in.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/acolita/terminal-division/internal/adapters/realclock"
	"github.com/acolita/terminal-division/internal/adapters/realfs"
	"github.com/acolita/terminal-division/internal/chunker"
	"github.com/acolita/terminal-division/internal/config"
	"github.com/acolita/terminal-division/internal/history"
	"github.com/acolita/terminal-division/internal/ports"
	"github.com/acolita/terminal-division/internal/protocol"
	localpty "github.com/acolita/terminal-division/internal/pty"
	"github.com/acolita/terminal-division/internal/shellenv"
)

// ShellIntegration supplies the env and argv that load the integration rc
// files into a shell.
type ShellIntegration interface {
	Env(shell string) map[string]string
	Args(shell string) []string
	Shutdown()
}

// PathResolver merges the login shell PATH into an ambient PATH.
type PathResolver interface {
	MergedPath(ambient string) string
}

// Registry is the session table. All methods are safe for concurrent use;
// operations on unknown ids are no-ops.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	windows  map[int]Window
	cfg      *config.Config

	spawner     ports.Spawner
	clock       ports.Clock
	fs          ports.FileSystem
	integration ShellIntegration
	resolver    PathResolver

	ctx context.Context
}

// Option configures a Registry.
type Option func(*Registry)

// WithSpawner sets the PTY spawner.
func WithSpawner(s ports.Spawner) Option {
	return func(r *Registry) { r.spawner = s }
}

// WithClock sets the clock driving polls, paste pacing and debounce.
func WithClock(c ports.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithFileSystem sets the filesystem and ambient environment.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(r *Registry) { r.fs = fs }
}

// WithIntegration sets the shell integration injector.
func WithIntegration(i ShellIntegration) Option {
	return func(r *Registry) { r.integration = i }
}

// WithPathResolver sets the login shell PATH source.
func WithPathResolver(p PathResolver) Option {
	return func(r *Registry) { r.resolver = p }
}

// WithContext sets the parent context of every session.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg *config.Config, opts ...Option) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		windows:  make(map[int]Window),
		cfg:      cfg,
		spawner:  localpty.NewSpawner(),
		clock:    realclock.New(),
		fs:       realfs.New(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpdateConfig replaces the configuration used for sessions created from
// now on.
func (r *Registry) UpdateConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// RegisterWindow adds w as an event destination, replacing any window with
// the same id.
func (r *Registry) RegisterWindow(w Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[w.ID()] = w
}

// UnregisterWindow removes the window. Its sessions keep running until
// killed.
func (r *Registry) UnregisterWindow(windowID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, windowID)
}

// Create spawns a shell for id owned by windowID. It returns false if id
// is taken, the session limit is reached or the spawn fails.
func (r *Registry) Create(id string, windowID int, initialCwd string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		slog.Debug("session already exists", slog.String("session_id", id))
		return false
	}
	if max := r.cfg.Session.MaxSessions; max > 0 && len(r.sessions) >= max {
		slog.Warn("max sessions reached", slog.Int("max", max))
		return false
	}

	cfg := r.cfg
	shell := r.shellPath()
	dir := r.workingDir(initialCwd)
	opts := ports.SpawnOptions{
		Shell: shell,
		Args:  r.shellArgs(shell),
		Dir:   dir,
		Env:   r.spawnEnv(shell),
		Cols:  cfg.Session.Cols,
		Rows:  cfg.Session.Rows,
	}

	proc, err := r.spawner.Spawn(opts)
	if err != nil {
		slog.Error("failed to spawn shell",
			slog.String("session_id", id),
			slog.String("shell", shell),
			slog.String("error", err.Error()),
		)
		return false
	}

	ctx, cancel := context.WithCancel(r.ctx)
	s := &Session{
		ID:        id,
		WindowID:  windowID,
		Shell:     shell,
		ShellName: shellName(shell),
		CreatedAt: r.clock.Now(),
		process:   proc,
		writer: chunker.New(ctx, id, proc, chunker.Options{
			Threshold: cfg.Write.PasteThreshold,
			FrameSize: cfg.Write.FrameSize,
			Delay:     cfg.Write.FrameDelay,
		}, r.clock),
		history: history.NewEngine(r.clock,
			history.WithMaxUndo(cfg.History.MaxUndo),
			history.WithSuppressWindow(cfg.History.SuppressWindow),
		),
		decoder:  protocol.NewDecoder(cfg.Integration.StripMarkers),
		prompts:  protocol.NewPromptTracker(cfg.Theme.SuccessColor, cfg.Theme.FailureColor),
		ctx:      ctx,
		cancel:   cancel,
		readDone: make(chan struct{}),
	}
	r.sessions[id] = s

	slog.Info("session created",
		slog.String("session_id", id),
		slog.Int("window_id", windowID),
		slog.String("shell", shell),
		slog.String("cwd", dir),
	)

	s.start(r, cfg.Session.PollInterval)
	r.sendLocked(windowID, ChannelShellName, ShellNameEvent{ID: id, ShellName: s.ShellName})
	return true
}

// shellPath picks the configured shell, then $SHELL, then /bin/zsh.
func (r *Registry) shellPath() string {
	if r.cfg.Shell.Path != "" {
		return r.cfg.Shell.Path
	}
	return localpty.DetectShell(r.fs.Getenv)
}

func (r *Registry) workingDir(initialCwd string) string {
	if initialCwd != "" {
		if fi, err := r.fs.Stat(initialCwd); err == nil && fi.IsDir() {
			return initialCwd
		}
		slog.Debug("initial cwd unusable, using home", slog.String("cwd", initialCwd))
	}
	home, err := r.fs.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func (r *Registry) shellArgs(shell string) []string {
	if r.integration == nil || !r.cfg.Integration.Enabled {
		return nil
	}
	return r.integration.Args(shell)
}

// spawnEnv is the ambient environment minus reserved keys, plus
// integration variables, the merged PATH and fixed terminal settings.
func (r *Registry) spawnEnv(shell string) []string {
	env := shellenv.Sanitize(r.fs.Environ(), r.cfg.Env.StripPatterns)

	if r.integration != nil && r.cfg.Integration.Enabled {
		env = shellenv.Merge(env, r.integration.Env(shell))
	}

	ambient, _ := shellenv.Lookup(env, "PATH")
	path := ambient
	if r.resolver != nil {
		path = r.resolver.MergedPath(ambient)
	}

	fixed := map[string]string{
		"PATH":      path,
		"LANG":      r.cfg.Shell.Lang,
		"LC_ALL":    r.cfg.Shell.Lang,
		"TERM":      r.cfg.Shell.Term,
		"COLORTERM": r.cfg.Shell.ColorTerm,
	}
	for k, v := range fixed {
		if v == "" {
			delete(fixed, k)
		}
	}
	return shellenv.Merge(env, fixed)
}

func (r *Registry) get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// remove deletes s from the table unless id was since reused.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.ID] == s {
		delete(r.sessions, s.ID)
	}
}

// Write sends data to the shell, framing large pastes.
func (r *Registry) Write(id string, data []byte) {
	if s := r.get(id); s != nil {
		s.writer.Write(data)
	}
}

// Input sends keystrokes to the shell, tracking them in the line history.
func (r *Registry) Input(id string, data string) {
	s := r.get(id)
	if s == nil {
		return
	}
	if s.history.Input(data) {
		s.writer.Write([]byte(data))
	}
}

// CompositionStart marks the start of an IME composition.
func (r *Registry) CompositionStart(id string) {
	if s := r.get(id); s != nil {
		s.history.CompositionStart()
	}
}

// CompositionEnd commits IME text to the line and sends it.
func (r *Registry) CompositionEnd(id string, text string) {
	s := r.get(id)
	if s == nil {
		return
	}
	if send := s.history.CompositionEnd(text); send != "" {
		s.writer.Write([]byte(send))
	}
}

// Undo restores the previous input line. It returns false when there is
// nothing to undo or id is unknown.
func (r *Registry) Undo(id string) bool {
	s := r.get(id)
	if s == nil {
		return false
	}
	edit, err := s.history.Undo()
	if err != nil {
		return false
	}
	r.applyEdit(s, edit)
	return true
}

// Redo reapplies an undone input line.
func (r *Registry) Redo(id string) bool {
	s := r.get(id)
	if s == nil {
		return false
	}
	edit, err := s.history.Redo()
	if err != nil {
		return false
	}
	r.applyEdit(s, edit)
	return true
}

// ClearLine clears the shell's input line as an undoable step.
func (r *Registry) ClearLine(id string) bool {
	s := r.get(id)
	if s == nil {
		return false
	}
	r.applyEdit(s, s.history.ClearLine())
	return true
}

// applyEdit writes an edit without passing it through the line history.
func (r *Registry) applyEdit(s *Session, edit history.Edit) {
	keys := make([][]byte, len(edit.Keys))
	for i, k := range edit.Keys {
		keys[i] = []byte(k)
	}
	s.writer.WriteRaw(keys...)
	s.writer.Write([]byte(edit.Text))
}

// Resize changes the PTY window size.
func (r *Registry) Resize(id string, cols, rows uint16) {
	s := r.get(id)
	if s == nil {
		return
	}
	if err := s.process.Resize(cols, rows); err != nil {
		slog.Warn("resize failed", slog.String("session_id", id), slog.String("error", err.Error()))
	}
}

// Kill terminates the session and removes it. Its exit event is still
// delivered.
func (r *Registry) Kill(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		slog.Info("session killed", slog.String("session_id", id))
		s.terminate()
	}
}

// KillAllForWindow kills every session owned by windowID.
func (r *Registry) KillAllForWindow(windowID int) {
	r.killWhere(func(s *Session) bool { return s.WindowID == windowID })
}

// KillAll kills every session and removes the integration directory.
func (r *Registry) KillAll() {
	r.killWhere(func(*Session) bool { return true })
	if r.integration != nil {
		r.integration.Shutdown()
	}
}

func (r *Registry) killWhere(match func(*Session) bool) {
	r.mu.Lock()
	var victims []*Session
	for id, s := range r.sessions {
		if match(s) {
			victims = append(victims, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range victims {
		s.terminate()
	}
}

// Broadcast sends an event to every live window.
func (r *Registry) Broadcast(channel string, payload any) {
	r.broadcast(channel, payload, nil)
}

// BroadcastExcept sends an event to every live window but windowID.
func (r *Registry) BroadcastExcept(channel string, payload any, windowID int) {
	r.broadcast(channel, payload, &windowID)
}

func (r *Registry) broadcast(channel string, payload any, exclude *int) {
	r.mu.RLock()
	targets := make([]Window, 0, len(r.windows))
	for id, w := range r.windows {
		if exclude != nil && id == *exclude {
			continue
		}
		targets = append(targets, w)
	}
	r.mu.RUnlock()

	for _, w := range targets {
		if !w.IsDestroyed() {
			w.Send(channel, payload)
		}
	}
}

// send delivers to the owning window if it is registered and alive now.
func (r *Registry) send(windowID int, channel string, payload any) {
	r.mu.RLock()
	w := r.windows[windowID]
	r.mu.RUnlock()
	deliver(w, channel, payload)
}

// sendLocked is send for callers holding r.mu.
func (r *Registry) sendLocked(windowID int, channel string, payload any) {
	deliver(r.windows[windowID], channel, payload)
}

func deliver(w Window, channel string, payload any) {
	if w == nil || w.IsDestroyed() {
		return
	}
	w.Send(channel, payload)
}

// Info returns a snapshot of the session.
func (r *Registry) Info(id string) (Info, error) {
	s := r.get(id)
	if s == nil {
		return Info{}, fmt.Errorf("session not found: %s", id)
	}
	return s.info(), nil
}

// List returns snapshots of all sessions ordered by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SessionCount returns the number of active sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
