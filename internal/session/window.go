package session

import (
	"sync"
	"sync/atomic"
)

// Window is a consumer of session events. Delivery is fire-and-forget and a
// destroyed window is skipped. Send should not block; a window that does
// stalls the sending session until it catches up.
type Window interface {
	ID() int
	IsDestroyed() bool
	Send(channel string, payload any)
}

// Message is one event queued on a QueueWindow.
type Message struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// QueueWindow buffers events for a consumer that pulls them. Events that do
// not fit in the buffer are dropped and counted, unless the window blocks.
type QueueWindow struct {
	id        int
	ch        chan Message
	block     bool
	done      chan struct{}
	closeOnce sync.Once
	destroyed atomic.Bool
	dropped   atomic.Int64
}

// NewQueueWindow creates a window buffering up to size events.
func NewQueueWindow(id, size int) *QueueWindow {
	if size <= 0 {
		size = 1024
	}
	return &QueueWindow{id: id, ch: make(chan Message, size), done: make(chan struct{})}
}

// NewBlockingQueueWindow creates a window whose Send waits for buffer space
// instead of dropping, until the window is destroyed. It suits a single
// local consumer that must see every byte.
func NewBlockingQueueWindow(id, size int) *QueueWindow {
	w := NewQueueWindow(id, size)
	w.block = true
	return w
}

// ID implements Window.
func (w *QueueWindow) ID() int { return w.id }

// IsDestroyed implements Window.
func (w *QueueWindow) IsDestroyed() bool { return w.destroyed.Load() }

// Send implements Window.
func (w *QueueWindow) Send(channel string, payload any) {
	if w.destroyed.Load() {
		return
	}
	msg := Message{Channel: channel, Payload: payload}
	if w.block {
		select {
		case w.ch <- msg:
		case <-w.done:
		}
		return
	}
	select {
	case w.ch <- msg:
	default:
		w.dropped.Add(1)
	}
}

// Messages returns the event stream. It is never closed.
func (w *QueueWindow) Messages() <-chan Message { return w.ch }

// Drain returns up to max queued events without blocking. max <= 0 means
// everything queued.
func (w *QueueWindow) Drain(max int) []Message {
	var out []Message
	for max <= 0 || len(out) < max {
		select {
		case m := <-w.ch:
			out = append(out, m)
		default:
			return out
		}
	}
	return out
}

// Dropped returns the number of events lost to a full buffer.
func (w *QueueWindow) Dropped() int64 { return w.dropped.Load() }

// Destroy marks the window dead; later events are discarded.
func (w *QueueWindow) Destroy() {
	w.destroyed.Store(true)
	w.closeOnce.Do(func() { close(w.done) })
}
