package recording

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/acolita/terminal-division/internal/session"
	"github.com/acolita/terminal-division/internal/testing/fakes/fakeclock"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
	err    error
}

func (b *bufferCloser) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	return b.Buffer.Write(p)
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func lines(t *testing.T, buf *bufferCloser) []string {
	t.Helper()
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestNewRecorder_WritesHeader(t *testing.T) {
	clock := fakeclock.New(time.Unix(1760000000, 0))
	buf := &bufferCloser{}

	_, err := NewRecorder(buf, Header{Width: 120, Height: 40, Title: "attach", Env: map[string]string{"SHELL": "/bin/zsh"}}, clock)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	var hdr Header
	if err := json.Unmarshal([]byte(lines(t, buf)[0]), &hdr); err != nil {
		t.Fatalf("header is not JSON: %v", err)
	}
	want := Header{Version: 2, Width: 120, Height: 40, Timestamp: 1760000000, Title: "attach", Env: map[string]string{"SHELL": "/bin/zsh"}}
	if !reflect.DeepEqual(hdr, want) {
		t.Errorf("header = %+v, want %+v", hdr, want)
	}
}

func TestNewRecorder_WriteError(t *testing.T) {
	buf := &bufferCloser{err: errors.New("disk full")}
	if _, err := NewRecorder(buf, Header{}, fakeclock.New(time.Unix(0, 0))); err == nil {
		t.Error("expected error")
	}
}

func TestRecorder_Events(t *testing.T) {
	clock := fakeclock.New(time.Unix(1760000000, 0))
	buf := &bufferCloser{}
	rec, err := NewRecorder(buf, Header{Width: 80, Height: 24}, clock)
	if err != nil {
		t.Fatal(err)
	}

	rec.RecordOutput("$ ")
	clock.Advance(1500 * time.Millisecond)
	rec.RecordResize(100, 30)
	rec.RecordMarker("exit 0")

	got := lines(t, buf)[1:]
	want := []string{
		`[0,"o","$ "]`,
		`[1.5,"r","100x30"]`,
		`[1.5,"m","exit 0"]`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestRecorder_CloseIdempotent(t *testing.T) {
	buf := &bufferCloser{}
	rec, _ := NewRecorder(buf, Header{}, fakeclock.New(time.Unix(0, 0)))

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !buf.closed {
		t.Error("writer not closed")
	}

	before := buf.Len()
	if err := rec.RecordOutput("late"); err != nil {
		t.Errorf("RecordOutput after Close error = %v", err)
	}
	if buf.Len() != before {
		t.Error("event written after Close")
	}
}

func TestWindow_RecordsOnePane(t *testing.T) {
	buf := &bufferCloser{}
	rec, _ := NewRecorder(buf, Header{}, fakeclock.New(time.Unix(0, 0)))
	inner := session.NewQueueWindow(3, 16)
	w := NewWindow(inner, rec, "p1")

	if w.ID() != 3 {
		t.Errorf("ID() = %d, want 3", w.ID())
	}

	w.Send(session.ChannelData, session.DataEvent{ID: "p1", Data: "hi"})
	w.Send(session.ChannelData, session.DataEvent{ID: "other", Data: "skip"})
	w.Send(session.ChannelCwd, session.CwdEvent{ID: "p1", Cwd: "/srv"})
	w.Send(session.ChannelPromptStatus, session.PromptStatusEvent{ID: "p1", ExitCode: 2, Status: "failure"})
	w.Send(session.ChannelShellName, session.ShellNameEvent{ID: "p1", ShellName: "zsh"})

	got := lines(t, buf)[1:]
	want := []string{
		`[0,"o","hi"]`,
		`[0,"m","cwd /srv"]`,
		`[0,"m","exit 2"]`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %q, want %q", got, want)
	}
	if n := len(inner.Drain(0)); n != 5 {
		t.Errorf("inner window received %d events, want 5", n)
	}
}
