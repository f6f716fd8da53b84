package fakefs

import (
	"errors"
	"io/fs"
	"reflect"
	"testing"
)

func TestFS_ReadWriteFile(t *testing.T) {
	f := New()

	if err := f.WriteFile("/tmp/td/.zshrc", []byte("source x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := f.ReadFile("/tmp/td/.zshrc")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "source x" {
		t.Errorf("ReadFile = %q, want %q", data, "source x")
	}

	info, err := f.Stat("/tmp/td")
	if err != nil {
		t.Fatalf("parent dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("parent should be a directory")
	}
}

func TestFS_StatNotExist(t *testing.T) {
	f := New()

	_, err := f.Stat("/nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(/nope) err = %v, want ErrNotExist", err)
	}
}

func TestFS_RemoveAll(t *testing.T) {
	f := New()
	f.AddFile("/tmp/td/.zshenv", []byte("a"), 0644)
	f.AddFile("/tmp/td/.bashrc", []byte("b"), 0644)
	f.AddFile("/tmp/other", []byte("c"), 0644)

	if err := f.RemoveAll("/tmp/td"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if f.Exists("/tmp/td") || f.Exists("/tmp/td/.zshenv") {
		t.Error("RemoveAll left entries behind")
	}
	if !f.Exists("/tmp/other") {
		t.Error("RemoveAll removed a sibling")
	}
	if err := f.RemoveAll("/tmp/td"); err != nil {
		t.Errorf("RemoveAll on missing path: %v", err)
	}
}

func TestFS_InjectedErrors(t *testing.T) {
	f := New()
	boom := errors.New("boom")

	f.SetWriteError(boom)
	if err := f.WriteFile("/tmp/x", nil, 0644); !errors.Is(err, boom) {
		t.Errorf("WriteFile err = %v, want %v", err, boom)
	}
	if err := f.MkdirAll("/tmp/y", 0755); !errors.Is(err, boom) {
		t.Errorf("MkdirAll err = %v, want %v", err, boom)
	}

	f.SetRemoveError(boom)
	if err := f.RemoveAll("/tmp"); !errors.Is(err, boom) {
		t.Errorf("RemoveAll err = %v, want %v", err, boom)
	}
}

func TestFS_Environ(t *testing.T) {
	f := New()
	f.SetEnv("SHELL", "/bin/zsh")
	f.SetEnv("HOME", "/home/test")

	want := []string{"HOME=/home/test", "SHELL=/bin/zsh"}
	if got := f.Environ(); !reflect.DeepEqual(got, want) {
		t.Errorf("Environ() = %v, want %v", got, want)
	}
	if got := f.Getenv("SHELL"); got != "/bin/zsh" {
		t.Errorf("Getenv(SHELL) = %q", got)
	}
}

func TestFS_HomeAndTemp(t *testing.T) {
	f := New()

	home, err := f.UserHomeDir()
	if err != nil || home != "/home/test" {
		t.Errorf("UserHomeDir() = %q, %v", home, err)
	}

	f.SetHomeDir("")
	if _, err := f.UserHomeDir(); err == nil {
		t.Error("expected error for empty home")
	}

	f.SetTempDir("/var/tmp")
	if got := f.TempDir(); got != "/var/tmp" {
		t.Errorf("TempDir() = %q", got)
	}
}
