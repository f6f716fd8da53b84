// Package fakepty provides a scripted pseudo-terminal process and spawner
// for testing session logic without real terminals.
package fakepty

import (
	"errors"
	"io"
	"sync"

	"github.com/acolita/terminal-division/internal/ports"
)

// ErrSpawnFailed is returned by a Spawner configured to fail.
var ErrSpawnFailed = errors.New("fakepty: spawn failed")

// Process is a fake shell process. Output is scripted with Emit, input is
// captured per Write call so tests can inspect framing.
type Process struct {
	mu         sync.Mutex
	output     chan []byte
	pending    []byte
	writes     [][]byte
	resizes    [][2]uint16
	foreground string
	fgErr      error
	killed     bool
	exited     chan struct{}
	exitCode   int
	closeOnce  sync.Once
	writeHook  func([]byte)
}

// New creates a fake process whose foreground process is name.
func New(name string) *Process {
	return &Process{
		output:     make(chan []byte, 64),
		foreground: name,
		exited:     make(chan struct{}),
	}
}

// Emit queues bytes to be returned by Read, as if the shell printed them.
func (p *Process) Emit(data string) {
	p.mu.Lock()
	done := p.killed
	p.mu.Unlock()
	if done {
		return
	}
	select {
	case <-p.exited:
	case p.output <- []byte(data):
	}
}

// Read returns emitted output in order. It blocks until output is available
// and returns io.EOF once the process exited and output is drained.
func (p *Process) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	select {
	case data := <-p.output:
		n := copy(b, data)
		if n < len(data) {
			p.mu.Lock()
			p.pending = append(p.pending, data[n:]...)
			p.mu.Unlock()
		}
		return n, nil
	case <-p.exited:
		select {
		case data := <-p.output:
			n := copy(b, data)
			return n, nil
		default:
			return 0, io.EOF
		}
	}
}

// Write captures one write call.
func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	p.writes = append(p.writes, cp)
	hook := p.writeHook
	p.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return len(b), nil
}

// Resize records the requested window size.
func (p *Process) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [2]uint16{cols, rows})
	return nil
}

// ForegroundProcessName returns the scripted foreground process.
func (p *Process) ForegroundProcessName() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.foreground, p.fgErr
}

// Wait blocks until Exit or Kill and returns the exit code.
func (p *Process) Wait() (int, error) {
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

// Kill terminates the fake process. Wait then reports -1.
func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(-1)
	return nil
}

// Exit simulates the shell exiting on its own with code.
func (p *Process) Exit(code int) {
	p.finish(code)
}

func (p *Process) finish(code int) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.exitCode = code
		p.mu.Unlock()
		close(p.exited)
	})
}

// --- Test inspection methods ---

// SetForeground changes the foreground process name.
func (p *Process) SetForeground(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.foreground = name
}

// SetForegroundError makes ForegroundProcessName fail.
func (p *Process) SetForegroundError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fgErr = err
}

// OnWrite installs a hook called after each captured write.
func (p *Process) OnWrite(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeHook = fn
}

// Writes returns every captured write call in order.
func (p *Process) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	for i, w := range p.writes {
		out[i] = string(w)
	}
	return out
}

// Written returns all captured input concatenated.
func (p *Process) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, w := range p.writes {
		n += len(w)
	}
	buf := make([]byte, 0, n)
	for _, w := range p.writes {
		buf = append(buf, w...)
	}
	return string(buf)
}

// Resizes returns every recorded (cols, rows) pair.
func (p *Process) Resizes() [][2]uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]uint16(nil), p.resizes...)
}

// WasKilled reports whether Kill was called.
func (p *Process) WasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Done is closed once the process exited or was killed.
func (p *Process) Done() <-chan struct{} {
	return p.exited
}

// Spawner hands out fake processes and records spawn requests.
type Spawner struct {
	mu        sync.Mutex
	spawned   []ports.SpawnOptions
	processes []*Process
	queue     []*Process
	fail      bool
}

// NewSpawner creates a spawner that creates a fresh Process per Spawn call.
func NewSpawner() *Spawner {
	return &Spawner{}
}

// Spawn implements ports.Spawner.
func (s *Spawner) Spawn(opts ports.SpawnOptions) (ports.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, ErrSpawnFailed
	}

	s.spawned = append(s.spawned, opts)

	var p *Process
	if len(s.queue) > 0 {
		p = s.queue[0]
		s.queue = s.queue[1:]
	} else {
		p = New(baseName(opts.Shell))
	}
	s.processes = append(s.processes, p)
	return p, nil
}

// Queue makes the next Spawn call return p.
func (s *Spawner) Queue(p *Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, p)
}

// SetFail makes subsequent Spawn calls fail.
func (s *Spawner) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// Spawned returns the options of every successful Spawn call.
func (s *Spawner) Spawned() []ports.SpawnOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SpawnOptions(nil), s.spawned...)
}

// Processes returns every process handed out.
func (s *Spawner) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.processes...)
}

// Last returns the most recently spawned process, or nil.
func (s *Spawner) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.processes) == 0 {
		return nil
	}
	return s.processes[len(s.processes)-1]
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// Ensure the fakes implement the ports.
var (
	_ ports.Process = (*Process)(nil)
	_ ports.Spawner = (*Spawner)(nil)
)
