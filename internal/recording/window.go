package recording

import (
	"fmt"
	"log/slog"

	"github.com/acolita/terminal-division/internal/session"
)

// Window passes session events on to another window, recording the output
// of one pane along the way. Cwd changes and finished commands become
// markers.
type Window struct {
	session.Window
	rec    *Recorder
	paneID string
}

// NewWindow wraps inner, recording events of paneID into rec.
func NewWindow(inner session.Window, rec *Recorder, paneID string) *Window {
	return &Window{Window: inner, rec: rec, paneID: paneID}
}

// Send implements session.Window.
func (w *Window) Send(channel string, payload any) {
	var err error
	switch ev := payload.(type) {
	case session.DataEvent:
		if ev.ID == w.paneID {
			err = w.rec.RecordOutput(ev.Data)
		}
	case session.CwdEvent:
		if ev.ID == w.paneID {
			err = w.rec.RecordMarker("cwd " + ev.Cwd)
		}
	case session.PromptStatusEvent:
		if ev.ID == w.paneID {
			err = w.rec.RecordMarker(fmt.Sprintf("exit %d", ev.ExitCode))
		}
	}
	if err != nil {
		slog.Debug("recording failed", slog.String("session_id", w.paneID), slog.String("error", err.Error()))
	}

	w.Window.Send(channel, payload)
}
