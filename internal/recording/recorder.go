// Package recording writes pane output in asciicast v2 format.
package recording

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/acolita/terminal-division/internal/ports"
)

// asciicast v2 event types.
const (
	EventOutput = "o"
	EventMarker = "m"
	EventResize = "r"
)

// Recorder records terminal output in asciicast v2 format.
// See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	w         io.WriteCloser
	startTime time.Time
	closed    bool
	clock     ports.Clock
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64 `json:"-"`
	Type string  `json:"-"`
	Data string  `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Time, e.Type, e.Data})
}

// NewRecorder writes the header to w and returns a recorder appending
// events to it. Version and Timestamp of hdr are filled in.
func NewRecorder(w io.WriteCloser, hdr Header, clock ports.Clock) (*Recorder, error) {
	r := &Recorder{
		w:         w,
		startTime: clock.Now(),
		clock:     clock,
	}

	hdr.Version = 2
	hdr.Timestamp = r.startTime.Unix()

	headerJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	if _, err := w.Write(append(headerJSON, '\n')); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return r, nil
}

// RecordOutput records output data (terminal -> user).
func (r *Recorder) RecordOutput(data string) error {
	return r.record(EventOutput, data)
}

// RecordMarker records a named marker, shown as a chapter by players.
func (r *Recorder) RecordMarker(label string) error {
	return r.record(EventMarker, label)
}

// RecordResize records a terminal size change.
func (r *Recorder) RecordResize(cols, rows int) error {
	return r.record(EventResize, fmt.Sprintf("%dx%d", cols, rows))
}

// record writes an event to the recording.
func (r *Recorder) record(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	elapsed := r.clock.Now().Sub(r.startTime).Seconds()
	event := Event{
		Time: elapsed,
		Type: eventType,
		Data: data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := r.w.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Close closes the underlying writer. Later events are discarded.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.w.Close()
}
