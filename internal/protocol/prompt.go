package protocol

// Status is the outcome shown by a prompt indicator.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Marker pins the output line a prompt was displayed on.
type Marker struct {
	Line     int
	disposed bool
}

// Disposed reports whether the marker was released.
func (m *Marker) Disposed() bool { return m.disposed }

// Decoration colors the indicator of a marked prompt.
type Decoration struct {
	Marker   *Marker
	Status   Status
	ExitCode int
	Color    string
	disposed bool
}

// Disposed reports whether the decoration was removed.
func (d *Decoration) Disposed() bool { return d.disposed }

// PromptTracker holds the indicator state of one session: the marker of the
// most recent prompt and the decoration currently coloring it.
type PromptTracker struct {
	successColor string
	failureColor string

	marker     *Marker
	decoration *Decoration
}

// NewPromptTracker returns a tracker using the given indicator colors.
func NewPromptTracker(successColor, failureColor string) *PromptTracker {
	return &PromptTracker{successColor: successColor, failureColor: failureColor}
}

// PromptStart records a marker at line, replacing the previous prompt
// state. Earlier decorations stay on screen with their prompts.
func (t *PromptTracker) PromptStart(line int) *Marker {
	t.marker = &Marker{Line: line}
	t.decoration = nil
	return t.marker
}

// CommandDone colors the most recent marker by exitCode, disposing any
// decoration it already had. It returns false when no prompt was marked.
func (t *PromptTracker) CommandDone(exitCode int) (*Decoration, bool) {
	if t.marker == nil || t.marker.disposed {
		return nil, false
	}
	if t.decoration != nil {
		t.decoration.disposed = true
	}

	d := &Decoration{Marker: t.marker, ExitCode: exitCode}
	if exitCode == 0 {
		d.Status, d.Color = StatusSuccess, t.successColor
	} else {
		d.Status, d.Color = StatusFailure, t.failureColor
	}
	t.decoration = d
	return d, true
}

// Apply feeds a decoded event to the tracker. It returns the new
// decoration for CommandDone events that colored a marker.
func (t *PromptTracker) Apply(ev Event) (*Decoration, bool) {
	switch ev.Kind {
	case PromptStart:
		t.PromptStart(ev.Line)
	case CommandDone:
		return t.CommandDone(ev.ExitCode)
	}
	return nil, false
}

// Current returns the current marker and decoration, either may be nil.
func (t *PromptTracker) Current() (*Marker, *Decoration) {
	return t.marker, t.decoration
}

// Dispose releases the current marker and decoration.
func (t *PromptTracker) Dispose() {
	if t.decoration != nil {
		t.decoration.disposed = true
	}
	if t.marker != nil {
		t.marker.disposed = true
	}
	t.marker, t.decoration = nil, nil
}
