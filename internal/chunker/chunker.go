// Package chunker serializes writes to a PTY and frames large pastes so
// line-oriented shells receive them as one bracketed paste.
package chunker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/acolita/terminal-division/internal/ports"
)

// Options controls when and how writes are framed.
type Options struct {
	Threshold int           // payloads longer than this are framed
	FrameSize int           // bytes per frame
	Delay     time.Duration // pause between frames, none after the last
}

// DefaultOptions returns 512 byte threshold, 1 KiB frames and 10ms pacing.
func DefaultOptions() Options {
	return Options{Threshold: 512, FrameSize: 1024, Delay: 10 * time.Millisecond}
}

// Frames returns the write calls a payload is split into.
func Frames(data []byte, opts Options) [][]byte {
	if len(data) <= opts.Threshold {
		return [][]byte{data}
	}
	size := opts.FrameSize
	if size <= 0 {
		size = len(data)
	}
	frames := make([][]byte, 0, len(data)/size+3)
	frames = append(frames, []byte(ansi.BracketedPasteStart))
	for off := 0; off < len(data); off += size {
		end := min(off+size, len(data))
		frames = append(frames, data[off:end])
	}
	return append(frames, []byte(ansi.BracketedPasteEnd))
}

type job struct {
	frames [][]byte
	// paced jobs sleep between payload frames
	paced bool
}

// Chunker owns the write side of one PTY. Writes are queued and performed
// in order by a single goroutine so a paste in progress never interleaves
// with later keystrokes and never blocks the caller.
type Chunker struct {
	w     io.Writer
	opts  Options
	clock ports.Clock
	id    string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	queue  []job
	notify chan struct{}
}

// New starts a chunker writing to w. It stops when ctx is canceled or
// Close is called; queued frames are then dropped.
func New(ctx context.Context, id string, w io.Writer, opts Options, clock ports.Clock) *Chunker {
	ctx, cancel := context.WithCancel(ctx)
	c := &Chunker{
		w:      w,
		opts:   opts,
		clock:  clock,
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		notify: make(chan struct{}, 1),
	}
	go c.run()
	return c
}

// Write queues data, framing it when it exceeds the threshold.
func (c *Chunker) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := append([]byte(nil), data...)
	frames := Frames(buf, c.opts)
	c.enqueue(job{frames: frames, paced: len(frames) > 1})
}

// WriteRaw queues each part as its own unframed write.
func (c *Chunker) WriteRaw(parts ...[]byte) {
	frames := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) > 0 {
			frames = append(frames, append([]byte(nil), p...))
		}
	}
	if len(frames) > 0 {
		c.enqueue(job{frames: frames})
	}
}

func (c *Chunker) enqueue(j job) {
	c.mu.Lock()
	c.queue = append(c.queue, j)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Close stops the writer goroutine and drops anything not yet written.
func (c *Chunker) Close() {
	c.cancel()
	<-c.done
}

// Pending returns the number of queued jobs not yet started.
func (c *Chunker) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Chunker) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			select {
			case <-c.ctx.Done():
				return
			case <-c.notify:
				continue
			}
		}
		j := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if !c.perform(j) {
			return
		}
	}
}

// perform writes one job. It returns false once the chunker is stopped.
func (c *Chunker) perform(j job) bool {
	for i, frame := range j.frames {
		if c.ctx.Err() != nil {
			return false
		}
		if _, err := c.w.Write(frame); err != nil {
			slog.Debug("pty write failed",
				slog.String("session_id", c.id),
				slog.Int("bytes", len(frame)),
				slog.String("error", err.Error()),
			)
			return c.ctx.Err() == nil
		}
		// Delay between payload frames: skip after the start marker,
		// the last payload frame and the end marker.
		if j.paced && i > 0 && i < len(j.frames)-2 && c.opts.Delay > 0 {
			select {
			case <-c.ctx.Done():
				return false
			case <-c.clock.After(c.opts.Delay):
			}
		}
	}
	return true
}
