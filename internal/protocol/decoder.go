// Package protocol decodes the escape sequences emitted by the shell
// integration hooks from a PTY output stream.
//
// Two OSC families are recognized:
//
//	ESC ] 7 ; file://<host><path> BEL      working directory report
//	ESC ] 7770 ; A BEL                     prompt about to display
//	ESC ] 7770 ; D [; <exit code>] BEL     previous command finished
//
// ST (ESC \) is accepted in place of BEL. Chunks may split a sequence at
// any byte.
package protocol

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/acolita/terminal-division/internal/logging"
)

// MaxPayload bounds an OSC payload; longer sequences are abandoned and
// passed through.
const MaxPayload = 4096

// EventKind identifies a decoded sequence.
type EventKind int

const (
	// CwdChanged reports a new working directory.
	CwdChanged EventKind = iota + 1
	// PromptStart marks the line where a prompt is about to display.
	PromptStart
	// CommandDone reports the exit code of the previous command.
	CommandDone
)

func (k EventKind) String() string {
	switch k {
	case CwdChanged:
		return "cwd"
	case PromptStart:
		return "prompt_start"
	case CommandDone:
		return "command_done"
	default:
		return "unknown"
	}
}

// Event is one decoded sequence.
type Event struct {
	Kind     EventKind
	Cwd      string // CwdChanged
	Line     int    // output line the sequence arrived on
	ExitCode int    // CommandDone
}

type state int

const (
	stateGround state = iota
	stateEscape
	stateOSC
	stateOSCEscape
)

// Decoder is a streaming parser for one PTY output stream. It is not safe
// for concurrent use.
type Decoder struct {
	strip bool

	state   state
	held    []byte // raw bytes of the sequence being parsed
	payload []byte
	line    int
}

// NewDecoder returns a decoder. With strip set, recognized sequences are
// removed from the forwarded output; otherwise output is unchanged.
func NewDecoder(strip bool) *Decoder {
	return &Decoder{
		strip:   strip,
		held:    make([]byte, 0, 64),
		payload: make([]byte, 0, 256),
	}
}

// Line returns the number of newlines seen so far.
func (d *Decoder) Line() int {
	return d.line
}

// Feed parses chunk and returns the bytes to forward along with the events
// it completed. Bytes of a sequence still open at the end of chunk are held
// back until a later call completes or abandons it.
func (d *Decoder) Feed(chunk []byte) ([]byte, []Event) {
	out := make([]byte, 0, len(chunk)+len(d.held))
	var events []Event

	for _, b := range chunk {
		switch d.state {
		case stateGround:
			out = d.ground(out, b)

		case stateEscape:
			if b == ']' {
				d.held = append(d.held, b)
				d.payload = d.payload[:0]
				d.state = stateOSC
				continue
			}
			out = d.flush(out)
			out = d.ground(out, b)

		case stateOSC:
			switch b {
			case 0x07:
				d.held = append(d.held, b)
				out, events = d.complete(out, events)
			case 0x1b:
				d.held = append(d.held, b)
				d.state = stateOSCEscape
			default:
				d.held = append(d.held, b)
				d.payload = append(d.payload, b)
				if len(d.payload) > MaxPayload {
					slog.Debug("abandoned oversized OSC sequence", slog.Int("bytes", len(d.payload)))
					out = d.flush(out)
				}
			}

		case stateOSCEscape:
			if b == '\\' {
				d.held = append(d.held, b)
				out, events = d.complete(out, events)
				continue
			}
			// Unterminated OSC: pass it through and treat the ESC as the
			// start of a new sequence.
			slog.Debug("unterminated OSC sequence", slog.String("seq", logging.Escape(string(d.held), 64)))
			d.held = d.held[:len(d.held)-1]
			out = d.flush(out)
			d.held = append(d.held, 0x1b)
			d.state = stateEscape
			if b == ']' {
				d.held = append(d.held, b)
				d.payload = d.payload[:0]
				d.state = stateOSC
				continue
			}
			out = d.flush(out)
			out = d.ground(out, b)
		}
	}

	return out, events
}

// Flush returns the bytes of an unfinished sequence, forwarded unchanged,
// and resets the decoder. Call it when the stream ends.
func (d *Decoder) Flush() []byte {
	if len(d.held) == 0 {
		d.state = stateGround
		return nil
	}
	return d.flush(nil)
}

func (d *Decoder) ground(out []byte, b byte) []byte {
	if b == 0x1b {
		d.held = append(d.held[:0], b)
		d.state = stateEscape
		return out
	}
	if b == '\n' {
		d.line++
	}
	return append(out, b)
}

// flush forwards the held bytes and returns to ground.
func (d *Decoder) flush(out []byte) []byte {
	out = append(out, d.held...)
	d.held = d.held[:0]
	d.payload = d.payload[:0]
	d.state = stateGround
	return out
}

// complete handles a terminated OSC sequence.
func (d *Decoder) complete(out []byte, events []Event) ([]byte, []Event) {
	ev, ok := parsePayload(string(d.payload))
	if ok {
		ev.Line = d.line
		events = append(events, ev)
	}
	if ok && d.strip {
		d.held = d.held[:0]
		d.payload = d.payload[:0]
		d.state = stateGround
		return out, events
	}
	return d.flush(out), events
}

func parsePayload(p string) (Event, bool) {
	cmd, arg, _ := strings.Cut(p, ";")
	switch cmd {
	case "7":
		cwd, ok := parseFileURL(arg)
		if !ok {
			return Event{}, false
		}
		return Event{Kind: CwdChanged, Cwd: cwd}, true
	case "7770":
		return parsePromptLifecycle(arg)
	default:
		return Event{}, false
	}
}

// parseFileURL extracts the percent-decoded path of file://<host><path>.
func parseFileURL(s string) (string, bool) {
	rest, ok := strings.CutPrefix(s, "file://")
	if !ok {
		return "", false
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", false
	}
	path, err := url.PathUnescape(rest[slash:])
	if err != nil {
		return "", false
	}
	return path, true
}

func parsePromptLifecycle(arg string) (Event, bool) {
	cmd, code, hasCode := strings.Cut(arg, ";")
	switch cmd {
	case "A":
		return Event{Kind: PromptStart}, true
	case "D":
		ev := Event{Kind: CommandDone}
		if hasCode {
			if n, err := strconv.Atoi(strings.TrimSpace(code)); err == nil {
				ev.ExitCode = n
			}
		}
		return ev, true
	default:
		return Event{}, false
	}
}
