// Package history reconstructs the shell's in-flight input line from the
// keystrokes sent to a PTY and provides undo/redo over whole-line
// snapshots of it.
//
// The engine never sees the shell's line buffer. Undo and redo emit
// synthetic keystrokes; a short suppression window and a one-shot
// pending-echo value keep those keystrokes from being recorded as edits.
package history

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/rivo/uniseg"

	"github.com/acolita/terminal-division/internal/ports"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Control keys.
const (
	KeyLineEnd  = "\x05" // Ctrl-E
	KeyLineKill = "\x15" // Ctrl-U
	KeyWordKill = "\x17" // Ctrl-W
)

// Defaults.
const (
	DefaultMaxUndo        = 100
	DefaultSuppressWindow = 300 * time.Millisecond
)

var trailingWord = regexp.MustCompile(`[\s\p{Zs}]*[^\s\p{Zs}]+[\s\p{Zs}]*$`)

// Edit is a keystroke instruction for the PTY: each key in order, then Text.
type Edit struct {
	Keys []string
	Text string
}

// Bytes returns the edit as the byte sequence to write.
func (e Edit) Bytes() []byte {
	var b []byte
	for _, k := range e.Keys {
		b = append(b, k...)
	}
	return append(b, e.Text...)
}

// State is a snapshot of an engine.
type State struct {
	Undo        []string
	Redo        []string
	Line        string
	Suppressing bool
	Composing   bool
}

// Engine tracks the input line of one session.
type Engine struct {
	mu    sync.Mutex
	clock ports.Clock

	maxUndo int
	window  time.Duration

	undoStack []string
	redoStack []string
	line      string

	pendingEcho *string
	suppressing bool
	timer       ports.Timer
	timerGen    uint64

	composing       bool
	lastComposition *string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxUndo bounds the undo stack; the oldest entries are evicted.
func WithMaxUndo(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxUndo = n
		}
	}
}

// WithSuppressWindow sets how long recording stays off after undo/redo.
func WithSuppressWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// NewEngine creates an engine with an empty line.
func NewEngine(clock ports.Clock, opts ...Option) *Engine {
	e := &Engine{
		clock:   clock,
		maxUndo: DefaultMaxUndo,
		window:  DefaultSuppressWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input observes a keystroke sequence about to be sent to the PTY. It
// returns false when the input must be dropped instead of sent: IME
// fragments during composition and the duplicate of committed composition
// text.
func (e *Engine) Input(data string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.composing && hasNonASCII(data) {
		return false
	}
	if e.lastComposition != nil && data == *e.lastComposition {
		e.lastComposition = nil
		return false
	}
	e.lastComposition = nil

	switch {
	case data == "\r" || data == "\n":
		e.undoStack = nil
		e.redoStack = nil
		e.line = ""
	case data == "\x7f" || data == "\b":
		e.record(dropLastGrapheme(e.line))
	case data == KeyWordKill:
		e.record(trailingWord.ReplaceAllString(e.line, ""))
	case data == KeyLineKill:
		e.record("")
	case data != "" && !isControl(data):
		e.record(e.line + data)
	}
	return true
}

// CompositionStart marks the start of an IME composition.
func (e *Engine) CompositionStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.composing = true
	e.lastComposition = nil
}

// CompositionEnd ends the composition, records the committed text and
// returns it for sending. An identical keystroke right after is dropped.
func (e *Engine) CompositionEnd(text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.composing = false
	if text == "" {
		return ""
	}
	e.lastComposition = &text
	e.record(e.line + text)
	return text
}

// record applies a new line value unless it is an echo of our own edit.
func (e *Engine) record(newLine string) {
	if e.suppressing {
		return
	}
	if e.pendingEcho != nil && *e.pendingEcho == newLine {
		e.pendingEcho = nil
		return
	}
	e.redoStack = nil
	e.pushUndo(e.line)
	e.line = newLine
}

func (e *Engine) pushUndo(line string) {
	e.undoStack = append(e.undoStack, line)
	if excess := len(e.undoStack) - e.maxUndo; excess > 0 {
		e.undoStack = e.undoStack[excess:]
	}
}

// Undo restores the previous line. The returned edit kills the shell's
// line and retypes the restored text.
func (e *Engine) Undo() (Edit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.undoStack) == 0 {
		return Edit{}, ErrNothingToUndo
	}

	e.suppressLocked()
	e.redoStack = append(e.redoStack, e.line)
	e.line = e.undoStack[len(e.undoStack)-1]
	e.undoStack = e.undoStack[:len(e.undoStack)-1]
	echo := e.line
	e.pendingEcho = &echo

	return Edit{Keys: []string{KeyLineKill}, Text: e.line}, nil
}

// Redo reapplies the most recently undone line.
func (e *Engine) Redo() (Edit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.redoStack) == 0 {
		return Edit{}, ErrNothingToRedo
	}

	e.suppressLocked()
	e.undoStack = append(e.undoStack, e.line)
	e.line = e.redoStack[len(e.redoStack)-1]
	e.redoStack = e.redoStack[:len(e.redoStack)-1]
	echo := e.line
	e.pendingEcho = &echo

	return Edit{Keys: []string{KeyLineKill}, Text: e.line}, nil
}

// ClearLine empties the line as one undoable step. The edit moves to the
// end of the line and kills to its start; it is returned even when the
// line is already empty, in which case history is left untouched.
func (e *Engine) ClearLine() Edit {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.line != "" {
		e.redoStack = nil
		e.pushUndo(e.line)
		e.line = ""
	}
	return Edit{Keys: []string{KeyLineEnd, KeyLineKill}}
}

// suppressLocked turns recording off and (re)schedules turning it back on.
// A timer from an earlier undo/redo never clears the flag.
func (e *Engine) suppressLocked() {
	e.suppressing = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerGen++
	gen := e.timerGen
	e.timer = e.clock.AfterFunc(e.window, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.timerGen != gen {
			return
		}
		e.suppressing = false
		e.timer = nil
	})
}

// Reset clears all history, as Enter does.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.undoStack = nil
	e.redoStack = nil
	e.line = ""
}

// Close cancels the pending suppression timer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

// Line returns the reconstructed input line.
func (e *Engine) Line() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.line
}

// CanUndo returns true if undo is available.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undoStack) > 0
}

// CanRedo returns true if redo is available.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redoStack) > 0
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Undo:        append([]string(nil), e.undoStack...),
		Redo:        append([]string(nil), e.redoStack...),
		Line:        e.line,
		Suppressing: e.suppressing,
		Composing:   e.composing,
	}
}

// isControl reports whether data is a lone C0/DEL byte or an escape
// sequence such as an arrow key.
func isControl(data string) bool {
	if len(data) == 1 {
		return data[0] < 0x20 || data[0] == 0x7f
	}
	return data[0] == 0x1b
}

func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return true
		}
	}
	return false
}

// dropLastGrapheme removes the final user-perceived character.
func dropLastGrapheme(s string) string {
	if s == "" {
		return ""
	}
	last := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		last, _ = g.Positions()
	}
	return s[:last]
}
