package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acolita/terminal-division/internal/config"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakeclock"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakefs"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakepty"
)

// recordingWindow captures every event it receives.
type recordingWindow struct {
	id        int
	destroyed atomic.Bool

	mu       sync.Mutex
	messages []Message
}

func newRecordingWindow(id int) *recordingWindow {
	return &recordingWindow{id: id}
}

func (w *recordingWindow) ID() int           { return w.id }
func (w *recordingWindow) IsDestroyed() bool { return w.destroyed.Load() }

func (w *recordingWindow) Send(channel string, payload any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, Message{Channel: channel, Payload: payload})
}

func (w *recordingWindow) on(channel string) []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []any
	for _, m := range w.messages {
		if m.Channel == channel {
			out = append(out, m.Payload)
		}
	}
	return out
}

// data concatenates every pty:data payload for id.
func (w *recordingWindow) data(id string) string {
	var s string
	for _, p := range w.on(ChannelData) {
		if ev := p.(DataEvent); ev.ID == id {
			s += ev.Data
		}
	}
	return s
}

type fakeIntegration struct {
	mu       sync.Mutex
	shutdown int
}

func (f *fakeIntegration) Env(shell string) map[string]string {
	if shellName(shell) != "zsh" {
		return nil
	}
	return map[string]string{"ZDOTDIR": "/tmp/td", "__TD_INTEGRATION_DIR": "/tmp/td"}
}

func (f *fakeIntegration) Args(shell string) []string {
	if shellName(shell) != "bash" {
		return nil
	}
	return []string{"--rcfile", "/tmp/td/.bashrc"}
}

func (f *fakeIntegration) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown++
}

func (f *fakeIntegration) shutdowns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

type fakeResolver struct{ resolved string }

func (f fakeResolver) MergedPath(ambient string) string {
	if f.resolved == "" {
		return ambient
	}
	return f.resolved + ":" + ambient
}

type testEnv struct {
	registry    *Registry
	spawner     *fakepty.Spawner
	clock       *fakeclock.Clock
	fs          *fakefs.FS
	integration *fakeIntegration
	window      *recordingWindow
	cfg         *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		spawner:     fakepty.NewSpawner(),
		clock:       fakeclock.New(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		fs:          fakefs.New(),
		integration: &fakeIntegration{},
		window:      newRecordingWindow(1),
		cfg:         config.DefaultConfig(),
	}
	env.fs.SetEnv("SHELL", "/bin/zsh")
	env.fs.SetEnv("PATH", "/usr/bin:/bin")
	env.fs.SetEnv("HOME", "/home/test")

	env.registry = NewRegistry(env.cfg,
		WithSpawner(env.spawner),
		WithClock(env.clock),
		WithFileSystem(env.fs),
		WithIntegration(env.integration),
		WithPathResolver(fakeResolver{resolved: "/opt/homebrew/bin"}),
	)
	env.registry.RegisterWindow(env.window)
	t.Cleanup(env.registry.KillAll)
	return env
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}
