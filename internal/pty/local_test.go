package pty

import (
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/acolita/terminal-division/internal/ports"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func startSh(t *testing.T) *LocalPTY {
	t.Helper()
	requireShell(t)
	p, err := NewLocalPTY(ports.SpawnOptions{
		Shell: "/bin/sh",
		Env:   []string{"TERM=dumb", "PS1=$ ", "PATH=/usr/bin:/bin"},
	})
	if err != nil {
		t.Fatalf("NewLocalPTY: %v", err)
	}
	t.Cleanup(func() { p.Kill() }) //nolint:errcheck
	return p
}

// waitForOutput writes a command and waits until the output contains the
// expected substring, or the timeout expires.
func waitForOutput(p *LocalPTY, cmd, expected string, timeout time.Duration) (string, bool) {
	if cmd != "" {
		_, _ = p.Write([]byte(cmd))
	}

	deadline := time.After(timeout)
	var sb strings.Builder
	type readResult struct {
		data []byte
		err  error
	}
	ch := make(chan readResult, 1)

	for {
		go func() {
			buf := make([]byte, 4096)
			n, err := p.Read(buf)
			ch <- readResult{buf[:n], err}
		}()

		select {
		case r := <-ch:
			sb.Write(r.data)
			if strings.Contains(sb.String(), expected) {
				return sb.String(), true
			}
			if r.err != nil {
				return sb.String(), false
			}
		case <-deadline:
			return sb.String(), false
		}
	}
}

func waitExit(t *testing.T, p *LocalPTY) int {
	t.Helper()
	done := make(chan int, 1)
	go func() {
		code, _ := p.Wait()
		done <- code
	}()
	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
		return 0
	}
}

func TestNewLocalPTY_NoShell(t *testing.T) {
	if _, err := NewLocalPTY(ports.SpawnOptions{}); err == nil {
		t.Error("expected error for empty shell")
	}
}

func TestNewLocalPTY_BadShell(t *testing.T) {
	if _, err := NewLocalPTY(ports.SpawnOptions{Shell: "/nonexistent/shell"}); err == nil {
		t.Error("expected error for missing executable")
	}
}

func TestLocalPTY_WriteAndRead(t *testing.T) {
	p := startSh(t)

	if p.Shell() != "/bin/sh" {
		t.Errorf("Shell() = %q", p.Shell())
	}
	if p.Pid() == 0 {
		t.Error("Pid() should be set")
	}

	output, found := waitForOutput(p, "echo PTY_TEST_$((40+2))\n", "PTY_TEST_42", 5*time.Second)
	if !found {
		t.Errorf("output %q does not contain marker", output)
	}
}

func TestLocalPTY_WorkingDirectory(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	p, err := NewLocalPTY(ports.SpawnOptions{Shell: "/bin/sh", Dir: dir, Env: []string{"TERM=dumb"}})
	if err != nil {
		t.Fatalf("NewLocalPTY: %v", err)
	}
	defer p.Kill() //nolint:errcheck

	// macOS temp dirs resolve through /private
	base := dir[strings.LastIndex(dir, "/")+1:]
	if output, found := waitForOutput(p, "pwd\n", base, 5*time.Second); !found {
		t.Errorf("pwd output %q does not contain %q", output, base)
	}
}

func TestLocalPTY_Resize(t *testing.T) {
	p := startSh(t)

	if err := p.Resize(132, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if output, found := waitForOutput(p, "stty size\n", "40 132", 5*time.Second); !found {
		t.Errorf("stty size output %q", output)
	}
}

func TestLocalPTY_WaitExitCode(t *testing.T) {
	p := startSh(t)

	p.Write([]byte("exit 3\n"))
	if code := waitExit(t, p); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	// cached
	if code, _ := p.Wait(); code != 3 {
		t.Errorf("second Wait() = %d, want 3", code)
	}
}

func TestLocalPTY_KillReportsMinusOne(t *testing.T) {
	p := startSh(t)

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if code := waitExit(t, p); code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill: %v", err)
	}
}

func TestLocalPTY_ForegroundProcessName(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on /proc")
	}
	p := startSh(t)
	waitForOutput(p, "echo ready\n", "ready", 5*time.Second)

	var name string
	var err error
	for i := 0; i < 20; i++ {
		name, err = p.ForegroundProcessName()
		if err == nil && name != "" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("ForegroundProcessName: %v", err)
	}
	if name != "sh" && name != "dash" && name != "bash" {
		t.Errorf("foreground = %q, want the shell", name)
	}

	p.Write([]byte("sleep 5\n"))
	for i := 0; i < 40; i++ {
		name, _ = p.ForegroundProcessName()
		if name == "sleep" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("foreground = %q, want sleep", name)
}

func TestSpawner_Spawn(t *testing.T) {
	requireShell(t)
	proc, err := NewSpawner().Spawn(ports.SpawnOptions{Shell: "/bin/sh", Env: []string{"TERM=dumb"}, Cols: 100, Rows: 30})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer proc.Kill() //nolint:errcheck

	if _, ok := proc.(*LocalPTY); !ok {
		t.Errorf("Spawn returned %T", proc)
	}
}

func TestDetectShell(t *testing.T) {
	env := map[string]string{"SHELL": "/usr/bin/fish"}
	if got := DetectShell(func(k string) string { return env[k] }); got != "/usr/bin/fish" {
		t.Errorf("DetectShell() = %q", got)
	}
	if got := DetectShell(func(string) string { return "" }); got != "/bin/zsh" {
		t.Errorf("DetectShell() fallback = %q, want /bin/zsh", got)
	}
}
