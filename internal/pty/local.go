// Package pty starts shells on local pseudo-terminals.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/acolita/terminal-division/internal/ports"
)

// Spawner starts shells on local PTYs.
type Spawner struct{}

// NewSpawner returns a Spawner for the local machine.
func NewSpawner() *Spawner {
	return &Spawner{}
}

// Spawn implements ports.Spawner.
func (s *Spawner) Spawn(opts ports.SpawnOptions) (ports.Process, error) {
	return NewLocalPTY(opts)
}

// LocalPTY is a shell running on a local pseudo-terminal.
type LocalPTY struct {
	cmd   *exec.Cmd
	pty   *os.File
	shell string

	mu     sync.Mutex
	closed bool

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

// NewLocalPTY starts opts.Shell on a new PTY of the requested size.
func NewLocalPTY(opts ports.SpawnOptions) (*LocalPTY, error) {
	if opts.Shell == "" {
		return nil, errors.New("no shell given")
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: opts.Rows,
		Cols: opts.Cols,
	})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	return &LocalPTY{
		cmd:   cmd,
		pty:   ptmx,
		shell: opts.Shell,
	}, nil
}

// Shell returns the shell being used.
func (p *LocalPTY) Shell() string {
	return p.shell
}

// Pid returns the shell's process id.
func (p *LocalPTY) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Read reads from the PTY output.
func (p *LocalPTY) Read(b []byte) (int, error) {
	return p.pty.Read(b)
}

// Write writes to the PTY input.
func (p *LocalPTY) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

// Resize resizes the PTY window.
func (p *LocalPTY) Resize(cols, rows uint16) error {
	return pty.Setsize(p.pty, &pty.Winsize{
		Rows: rows,
		Cols: cols,
	})
}

// ForegroundProcessName returns the command name of the PTY's foreground
// process group leader.
func (p *LocalPTY) ForegroundProcessName() (string, error) {
	pgrp, err := foregroundPgrp(p.pty)
	if err != nil {
		return "", fmt.Errorf("foreground process group: %w", err)
	}
	return processName(pgrp)
}

// Wait waits for the shell to exit and returns its exit code, -1 when it
// was killed by a signal. Repeated calls return the same result.
func (p *LocalPTY) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.exitCode = 0
		case errors.As(err, &exitErr):
			p.exitCode = exitErr.ExitCode()
		default:
			p.exitCode = -1
			p.waitErr = err
		}
	})
	return p.exitCode, p.waitErr
}

// Kill closes the PTY and terminates the shell.
func (p *LocalPTY) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.pty.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pty: %w", err))
	}
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill process: %w", err))
		}
	}
	return errors.Join(errs...)
}

// DetectShell returns the user's login shell: $SHELL, else /bin/zsh.
func DetectShell(getenv func(string) string) string {
	if shell := getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/zsh"
}

var (
	_ ports.Spawner = (*Spawner)(nil)
	_ ports.Process = (*LocalPTY)(nil)
)
