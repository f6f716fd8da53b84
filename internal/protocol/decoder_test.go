package protocol

import (
	"reflect"
	"strings"
	"testing"
)

func feedAll(d *Decoder, chunks ...string) (string, []Event) {
	var out strings.Builder
	var events []Event
	for _, c := range chunks {
		o, ev := d.Feed([]byte(c))
		out.Write(o)
		events = append(events, ev...)
	}
	return out.String(), events
}

func TestDecoder_Cwd(t *testing.T) {
	d := NewDecoder(false)
	input := "\x1b]7;file://host/Users/me/proj\x07"

	out, events := feedAll(d, input)
	if out != input {
		t.Errorf("forwarded %q, want input unchanged", out)
	}
	want := []Event{{Kind: CwdChanged, Cwd: "/Users/me/proj"}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestDecoder_CwdPercentDecoded(t *testing.T) {
	d := NewDecoder(false)
	_, events := feedAll(d, "\x1b]7;file://mac.local/Users/me/My%20Project/%E6%97%A5\x07")

	if len(events) != 1 || events[0].Cwd != "/Users/me/My Project/日" {
		t.Errorf("events = %+v", events)
	}
}

func TestDecoder_CwdEmptyHost(t *testing.T) {
	d := NewDecoder(false)
	_, events := feedAll(d, "\x1b]7;file:///tmp\x1b\\")

	if len(events) != 1 || events[0].Cwd != "/tmp" {
		t.Errorf("events = %+v", events)
	}
}

func TestDecoder_MalformedCwdIgnored(t *testing.T) {
	for _, seq := range []string{
		"\x1b]7;http://host/x\x07",
		"\x1b]7;file://hostonly\x07",
		"\x1b]7;file://h/%zz\x07",
	} {
		d := NewDecoder(true)
		out, events := feedAll(d, seq)
		if len(events) != 0 {
			t.Errorf("%q: events = %+v", seq, events)
		}
		if out != seq {
			t.Errorf("%q: malformed sequence should pass through, got %q", seq, out)
		}
	}
}

func TestDecoder_PromptLifecycle(t *testing.T) {
	d := NewDecoder(false)
	_, events := feedAll(d, "\x1b]7770;A\x07", "ls\r\n", "\x1b]7770;D;0\x07", "\x1b]7770;D;127\x07")

	want := []Event{
		{Kind: PromptStart, Line: 0},
		{Kind: CommandDone, Line: 1, ExitCode: 0},
		{Kind: CommandDone, Line: 1, ExitCode: 127},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestDecoder_ExitCodeDefaultsToZero(t *testing.T) {
	for _, seq := range []string{"\x1b]7770;D\x07", "\x1b]7770;D;\x07", "\x1b]7770;D;abc\x07"} {
		d := NewDecoder(false)
		_, events := feedAll(d, seq)
		if len(events) != 1 || events[0].Kind != CommandDone || events[0].ExitCode != 0 {
			t.Errorf("%q: events = %+v", seq, events)
		}
	}
}

func TestDecoder_UnknownOSCPassesThrough(t *testing.T) {
	d := NewDecoder(true)
	input := "\x1b]0;window title\x07\x1b]7770;Z\x07\x1b]133;A\x07"

	out, events := feedAll(d, input)
	if len(events) != 0 {
		t.Errorf("events = %+v", events)
	}
	if out != input {
		t.Errorf("out = %q", out)
	}
}

func TestDecoder_SplitAtEveryByte(t *testing.T) {
	input := "prompt$ \x1b]7;file://h/a%20b\x1b\\\x1b]7770;A\x07done\n"
	d := NewDecoder(false)

	var chunks []string
	for i := 0; i < len(input); i++ {
		chunks = append(chunks, input[i:i+1])
	}
	out, events := feedAll(d, chunks...)

	if out != input {
		t.Errorf("out = %q", out)
	}
	if len(events) != 2 || events[0].Cwd != "/a b" || events[1].Kind != PromptStart {
		t.Errorf("events = %+v", events)
	}
}

func TestDecoder_HoldsIncompleteSequence(t *testing.T) {
	d := NewDecoder(false)

	out, events := d.Feed([]byte("abc\x1b]7770;"))
	if string(out) != "abc" || len(events) != 0 {
		t.Errorf("first feed: out=%q events=%+v", out, events)
	}
	out, events = d.Feed([]byte("A\x07xyz"))
	if string(out) != "\x1b]7770;A\x07xyz" || len(events) != 1 {
		t.Errorf("second feed: out=%q events=%+v", out, events)
	}
}

func TestDecoder_FlushReturnsHeldBytes(t *testing.T) {
	d := NewDecoder(false)
	out, _ := feedAll(d, "ls\x1b]7;file://h/tm")
	if out != "ls" {
		t.Fatalf("out = %q, want the open sequence held back", out)
	}

	if got := string(d.Flush()); got != "\x1b]7;file://h/tm" {
		t.Errorf("Flush() = %q", got)
	}
	if got := d.Flush(); got != nil {
		t.Errorf("second Flush() = %q, want nil", got)
	}

	// The decoder starts clean after a flush.
	out, events := feedAll(d, "\x1b]7770;A\x07x")
	if out != "\x1b]7770;A\x07x" || len(events) != 1 {
		t.Errorf("after flush: out = %q, events = %+v", out, events)
	}
}

func TestDecoder_StripMode(t *testing.T) {
	d := NewDecoder(true)
	out, events := feedAll(d, "a\x1b]7770;A\x07b\x1b]7;file://h/x\x07c\x1b[31mred\x1b[0m")

	if out != "abc\x1b[31mred\x1b[0m" {
		t.Errorf("out = %q", out)
	}
	if len(events) != 2 {
		t.Errorf("events = %+v", events)
	}
}

func TestDecoder_NonOSCEscapesPassThrough(t *testing.T) {
	d := NewDecoder(true)
	input := "\x1b[2J\x1b[H\x1b\x1b]7770;A\x07"

	out, events := feedAll(d, input)
	if out != "\x1b[2J\x1b[H\x1b" {
		t.Errorf("out = %q", out)
	}
	if len(events) != 1 {
		t.Errorf("events = %+v", events)
	}
}

func TestDecoder_UnterminatedThenNewSequence(t *testing.T) {
	d := NewDecoder(false)
	input := "\x1b]7;file://h/broken\x1b]7770;A\x07"

	out, events := feedAll(d, input)
	if out != input {
		t.Errorf("out = %q", out)
	}
	if len(events) != 1 || events[0].Kind != PromptStart {
		t.Errorf("events = %+v", events)
	}
}

func TestDecoder_OversizedPayloadAbandoned(t *testing.T) {
	d := NewDecoder(true)
	input := "\x1b]7;file://h/" + strings.Repeat("a", MaxPayload) + "\x07\x1b]7770;A\x07"

	out, events := feedAll(d, input)
	if len(events) != 1 || events[0].Kind != PromptStart {
		t.Errorf("events = %+v", events)
	}
	if !strings.HasPrefix(out, "\x1b]7;file://h/aaa") || strings.Contains(out, "7770") {
		t.Errorf("out prefix = %q", out[:20])
	}
}

func TestDecoder_LineCount(t *testing.T) {
	d := NewDecoder(false)
	feedAll(d, "one\r\ntwo\n", "three\n")

	if d.Line() != 3 {
		t.Errorf("Line() = %d, want 3", d.Line())
	}
}

func TestEventKind_String(t *testing.T) {
	if CwdChanged.String() != "cwd" || PromptStart.String() != "prompt_start" ||
		CommandDone.String() != "command_done" || EventKind(0).String() != "unknown" {
		t.Error("unexpected EventKind names")
	}
}
