package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/acolita/terminal-division/internal/chunker"
	"github.com/acolita/terminal-division/internal/history"
	"github.com/acolita/terminal-division/internal/ports"
	"github.com/acolita/terminal-division/internal/protocol"
)

// readBufferSize is the PTY read chunk size.
const readBufferSize = 32 * 1024

// drainTimeout bounds how long an exit waits for buffered output.
const drainTimeout = 250 * time.Millisecond

// Session is one shell on a PTY, owned by a window.
type Session struct {
	ID        string
	WindowID  int
	Shell     string
	ShellName string
	CreatedAt time.Time

	process ports.Process
	writer  *chunker.Chunker
	history *history.Engine
	decoder *protocol.Decoder
	prompts *protocol.PromptTracker
	carry   runeCarry

	ctx      context.Context
	cancel   context.CancelFunc
	readDone chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	cwd        string
	foreground string
}

// Info is a snapshot of a session.
type Info struct {
	ID                string    `json:"id"`
	WindowID          int       `json:"window_id"`
	Shell             string    `json:"shell"`
	ShellName         string    `json:"shell_name"`
	Cwd               string    `json:"cwd,omitempty"`
	ForegroundProcess string    `json:"foreground_process,omitempty"`
	Line              string    `json:"line"`
	CanUndo           bool      `json:"can_undo"`
	CanRedo           bool      `json:"can_redo"`
	CreatedAt         time.Time `json:"created_at"`
}

func (s *Session) info() Info {
	s.mu.Lock()
	cwd, fg := s.cwd, s.foreground
	s.mu.Unlock()

	return Info{
		ID:                s.ID,
		WindowID:          s.WindowID,
		Shell:             s.Shell,
		ShellName:         s.ShellName,
		Cwd:               cwd,
		ForegroundProcess: fg,
		Line:              s.history.Line(),
		CanUndo:           s.history.CanUndo(),
		CanRedo:           s.history.CanRedo(),
		CreatedAt:         s.CreatedAt,
	}
}

// start launches the read, wait and poll goroutines.
func (s *Session) start(r *Registry, pollInterval time.Duration) {
	go s.readLoop(r)
	go s.waitLoop(r)
	go s.pollLoop(r, pollInterval)
}

func (s *Session) readLoop(r *Registry) {
	defer close(s.readDone)
	defer s.prompts.Dispose()

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.process.Read(buf)
		if n > 0 {
			s.handleOutput(r, buf[:n])
		}
		if err != nil {
			slog.Debug("pty read ended", slog.String("session_id", s.ID), slog.String("error", err.Error()))
			s.flushOutput(r)
			return
		}
	}
}

func (s *Session) handleOutput(r *Registry, chunk []byte) {
	out, events := s.decoder.Feed(chunk)
	s.sendData(r, s.carry.take(out))

	for _, ev := range events {
		switch ev.Kind {
		case protocol.CwdChanged:
			s.mu.Lock()
			s.cwd = ev.Cwd
			s.mu.Unlock()
			r.send(s.WindowID, ChannelCwd, CwdEvent{ID: s.ID, Cwd: ev.Cwd})
		case protocol.PromptStart, protocol.CommandDone:
			dec, ok := s.prompts.Apply(ev)
			if !ok {
				continue
			}
			r.send(s.WindowID, ChannelPromptStatus, PromptStatusEvent{
				ID:       s.ID,
				Line:     dec.Marker.Line,
				Status:   string(dec.Status),
				ExitCode: dec.ExitCode,
				Color:    dec.Color,
			})
		}
	}
}

// flushOutput forwards bytes still held back when the stream ends.
func (s *Session) flushOutput(r *Registry) {
	held := s.carry.take(s.decoder.Flush())
	s.sendData(r, append(held, s.carry.flush()...))
}

func (s *Session) sendData(r *Registry, out []byte) {
	if len(out) > 0 {
		r.send(s.WindowID, ChannelData, DataEvent{ID: s.ID, Data: string(out)})
	}
}

func (s *Session) waitLoop(r *Registry) {
	code, err := s.process.Wait()
	if err != nil {
		slog.Debug("shell wait failed", slog.String("session_id", s.ID), slog.String("error", err.Error()))
	}

	// Let output still buffered in the PTY reach the window before the exit.
	select {
	case <-s.readDone:
	case <-r.clock.After(drainTimeout):
	}

	slog.Info("shell exited", slog.String("session_id", s.ID), slog.Int("exit_code", code))
	r.send(s.WindowID, ChannelExit, ExitEvent{ID: s.ID, ExitCode: code})
	r.remove(s)
	s.stop()
}

// pollLoop reports the foreground process when it changes.
func (s *Session) pollLoop(r *Registry, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	last := s.ShellName
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C():
			name, err := s.process.ForegroundProcessName()
			if err != nil || name == "" || name == last {
				continue
			}
			last = name
			s.mu.Lock()
			s.foreground = name
			s.mu.Unlock()
			r.send(s.WindowID, ChannelProcessName, ProcessNameEvent{ID: s.ID, ProcessName: name})
		}
	}
}

// terminate kills the process and releases the session's resources.
func (s *Session) terminate() {
	if err := s.process.Kill(); err != nil {
		slog.Debug("kill failed", slog.String("session_id", s.ID), slog.String("error", err.Error()))
	}
	s.stop()
}

func (s *Session) stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.writer.Close()
		s.history.Close()
	})
}

func shellName(shell string) string {
	return filepath.Base(shell)
}
