package integration

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/acolita/terminal-division/internal/testing/fakes/fakefs"
)

func newTestInjector() (*Injector, *fakefs.FS) {
	fs := fakefs.New()
	return NewInjector(fs, WithPID(4242)), fs
}

func TestKindOf(t *testing.T) {
	tests := map[string]ShellKind{
		"/bin/zsh":            Zsh,
		"/usr/local/bin/bash": Bash,
		"zsh":                 Zsh,
		"/usr/bin/fish":       Other,
		"/bin/sh":             Other,
	}
	for shell, want := range tests {
		if got := KindOf(shell); got != want {
			t.Errorf("KindOf(%q) = %q, want %q", shell, got, want)
		}
	}
}

func TestDir_CreatesRCFilesOnce(t *testing.T) {
	inj, fs := newTestInjector()

	dir, err := inj.Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != "/tmp/terminal-division-shell-4242" {
		t.Errorf("dir = %q", dir)
	}
	for _, name := range []string{".zshenv", ".zshrc", ".bashrc"} {
		if !fs.Exists(dir + "/" + name) {
			t.Errorf("%s not written", name)
		}
	}

	again, _ := inj.Dir()
	if again != dir {
		t.Errorf("second Dir() = %q, want %q", again, dir)
	}
}

func TestDir_WriteFailureRetries(t *testing.T) {
	inj, fs := newTestInjector()
	fs.SetWriteError(errors.New("read-only"))

	if _, err := inj.Dir(); err == nil {
		t.Fatal("expected error")
	}

	fs.SetWriteError(nil)
	if _, err := inj.Dir(); err != nil {
		t.Errorf("retry failed: %v", err)
	}
}

func TestZshenv_RestoresAndRepoints(t *testing.T) {
	inj, fs := newTestInjector()
	fs.SetEnv("ZDOTDIR", "/home/test/.config/zsh")

	dir, _ := inj.Dir()
	data, _ := fs.ReadFile(dir + "/.zshenv")
	content := string(data)

	if !strings.Contains(content, "ZDOTDIR=/home/test/.config/zsh\n") {
		t.Errorf(".zshenv does not restore user ZDOTDIR:\n%s", content)
	}
	if !strings.HasSuffix(content, "ZDOTDIR="+dir+"\n") {
		t.Errorf(".zshenv does not re-point ZDOTDIR last:\n%s", content)
	}
}

func TestZshrc_Hooks(t *testing.T) {
	inj, fs := newTestInjector()
	dir, _ := inj.Dir()
	data, _ := fs.ReadFile(dir + "/.zshrc")
	content := string(data)

	for _, want := range []string{
		`source "${ZDOTDIR}/.zshrc"`,
		`printf '\e]7770;D;%d\a' "$__td_last_exit"`,
		`printf '\e]7;file://%s%s\a' "${HOST}" "${PWD}"`,
		`printf '\e]7770;A\a'`,
		"__td_has_run_command=1",
		`PROMPT="%F{242}● %f${PROMPT}"`,
		"precmd_functions=(__td_precmd",
		"preexec_functions=(__td_preexec",
	} {
		if !strings.Contains(content, want) {
			t.Errorf(".zshrc missing %q", want)
		}
	}
}

func TestBashrc_SkipsFirstPrompt(t *testing.T) {
	inj, fs := newTestInjector()
	dir, _ := inj.Dir()
	data, _ := fs.ReadFile(dir + "/.bashrc")
	content := string(data)

	for _, want := range []string{
		`source "$HOME/.bashrc"`,
		"__td_first_prompt=1",
		`printf '\e]7770;D;%d\a' "$e"`,
		`PROMPT_COMMAND="__td_prompt_command"`,
		`\033[38;5;242m`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf(".bashrc missing %q", want)
		}
	}
}

func TestTemplates_QuotePaths(t *testing.T) {
	fs := fakefs.New()
	fs.SetTempDir("/tmp/my tmp")
	fs.SetHomeDir("/home/o'neil")
	inj := NewInjector(fs, WithPID(1))

	dir, err := inj.Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	data, _ := fs.ReadFile(dir + "/.zshenv")
	content := string(data)

	if !strings.Contains(content, "ZDOTDIR='/tmp/my tmp/terminal-division-shell-1'") {
		t.Errorf("integration dir not quoted:\n%s", content)
	}
	if !strings.Contains(content, `ZDOTDIR='/home/o'"'"'neil'`) {
		t.Errorf("home dir not quoted:\n%s", content)
	}
}

func TestEnv_Zsh(t *testing.T) {
	inj, _ := newTestInjector()

	env := inj.Env("/bin/zsh")
	dir := "/tmp/terminal-division-shell-4242"
	want := map[string]string{
		"ZDOTDIR":              dir,
		"__TD_ORIG_ZDOTDIR":    "/home/test",
		"__TD_INTEGRATION_DIR": dir,
	}
	if !reflect.DeepEqual(env, want) {
		t.Errorf("Env(zsh) = %v, want %v", env, want)
	}
	if inj.Args("/bin/zsh") != nil {
		t.Error("zsh should get no extra args")
	}
}

func TestArgs_Bash(t *testing.T) {
	inj, _ := newTestInjector()

	args := inj.Args("/bin/bash")
	want := []string{"--rcfile", "/tmp/terminal-division-shell-4242/.bashrc"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("Args(bash) = %v, want %v", args, want)
	}
	if inj.Env("/bin/bash") != nil {
		t.Error("bash should get no extra env")
	}
}

func TestOtherShell_NoIntegration(t *testing.T) {
	inj, fs := newTestInjector()

	if inj.Env("/usr/bin/fish") != nil || inj.Args("/usr/bin/fish") != nil {
		t.Error("unsupported shell should get no integration")
	}
	if fs.Exists("/tmp/terminal-division-shell-4242") {
		t.Error("dir should not be created for unsupported shells")
	}
}

func TestShutdown_RemovesDir(t *testing.T) {
	inj, fs := newTestInjector()
	dir, _ := inj.Dir()

	inj.Shutdown()
	if fs.Exists(dir) {
		t.Error("dir still exists after Shutdown")
	}

	// recreated lazily
	if _, err := inj.Dir(); err != nil || !fs.Exists(dir+"/.zshrc") {
		t.Errorf("dir not recreated: %v", err)
	}
}

func TestShutdown_IgnoresFailures(t *testing.T) {
	inj, fs := newTestInjector()
	inj.Dir()
	fs.SetRemoveError(errors.New("busy"))

	inj.Shutdown()
	inj.Shutdown()
}
