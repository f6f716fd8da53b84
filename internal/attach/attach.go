// Package attach bridges the user's terminal to a single pane: keystrokes
// go through the pane's input history, output is copied back verbatim.
package attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/acolita/terminal-division/internal/recording"
	"github.com/acolita/terminal-division/internal/session"
	"golang.org/x/term"
)

// ErrCreateFailed is returned when the pane could not be spawned.
var ErrCreateFailed = errors.New("attach: pane could not be created")

const windowID = 1

// queueSize is the event buffer between the pane and the terminal writer.
// The window blocks when it fills, stalling the pane's reader.
const queueSize = 256

// Registry is the part of the session registry the client drives.
type Registry interface {
	Create(id string, windowID int, initialCwd string) bool
	Kill(id string)
	Input(id string, data string)
	Undo(id string) bool
	Redo(id string) bool
	ClearLine(id string) bool
	Resize(id string, cols, rows uint16)
	RegisterWindow(w session.Window)
	UnregisterWindow(windowID int)
}

// Options configures an attach.
type Options struct {
	PaneID string
	Cwd    string
	In     io.Reader
	Out    io.Writer

	// Terminal is the controlling terminal, switched to raw mode and
	// watched for size changes. Nil when In is not a terminal.
	Terminal *os.File

	// Recorder, if set, receives the pane's output and size changes.
	Recorder *recording.Recorder
}

// Run creates the pane and copies between it and the terminal until the
// shell exits or ctx is done. It returns the shell's exit code.
func Run(ctx context.Context, reg Registry, opts Options) (int, error) {
	if opts.PaneID == "" {
		opts.PaneID = "attach"
	}

	window := session.NewBlockingQueueWindow(windowID, queueSize)
	var sink session.Window = window
	if opts.Recorder != nil {
		sink = recording.NewWindow(window, opts.Recorder, opts.PaneID)
	}
	reg.RegisterWindow(sink)
	defer func() {
		window.Destroy()
		reg.UnregisterWindow(windowID)
	}()

	if !reg.Create(opts.PaneID, windowID, opts.Cwd) {
		return -1, ErrCreateFailed
	}
	defer func() {
		// Release a reader stalled on the full window before killing.
		window.Destroy()
		reg.Kill(opts.PaneID)
	}()

	if opts.Terminal != nil && term.IsTerminal(int(opts.Terminal.Fd())) {
		fd := int(opts.Terminal.Fd())
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return -1, fmt.Errorf("enter raw mode: %w", err)
		}
		defer func() {
			_ = term.Restore(fd, oldState)
		}()

		resize := func() {
			cols, rows, err := term.GetSize(fd)
			if err != nil {
				slog.Debug("get terminal size failed", slog.String("error", err.Error()))
				return
			}
			reg.Resize(opts.PaneID, uint16(cols), uint16(rows))
			if opts.Recorder != nil {
				_ = opts.Recorder.RecordResize(cols, rows)
			}
		}
		resize()
		stop := watchResize(resize)
		defer stop()
	}

	go forwardInput(reg, opts.PaneID, opts.In)

	for {
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case msg := <-window.Messages():
			switch ev := msg.Payload.(type) {
			case session.DataEvent:
				if _, err := io.WriteString(opts.Out, ev.Data); err != nil {
					return -1, fmt.Errorf("write output: %w", err)
				}
			case session.ExitEvent:
				return ev.ExitCode, nil
			case session.CwdEvent:
				slog.Debug("pane cwd changed", slog.String("cwd", ev.Cwd))
			}
		}
	}
}

// forwardInput reads the terminal until EOF, applying client bindings.
func forwardInput(reg Registry, id string, in io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		for _, a := range parseInput(buf[:n]) {
			switch a.kind {
			case actionInput:
				reg.Input(id, a.data)
			case actionUndo:
				reg.Undo(id)
			case actionRedo:
				reg.Redo(id)
			case actionClearLine:
				reg.ClearLine(id)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("terminal read ended", slog.String("error", err.Error()))
			}
			return
		}
	}
}
