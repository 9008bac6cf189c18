package protocol

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("poster closed")

// Poster sends messages to the host page. Posting is fire-and-forget from the
// caller's point of view; an error only means the channel is gone.
type Poster interface {
	Post(m Message) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(m Message) error

// Post calls f(m).
func (f PosterFunc) Post(m Message) error { return f(m) }

// Queue is a buffered Poster drained by a single consumer.
type Queue struct {
	ch     chan Message
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan Message, size)}
}

// Post enqueues m, blocking while the buffer is full.
func (q *Queue) Post(m Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.ch <- m
	return nil
}

// Messages returns the channel the consumer drains.
func (q *Queue) Messages() <-chan Message {
	return q.ch
}

// Close stops accepting messages and closes the channel.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Recorder keeps every posted message in order.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Post records m.
func (r *Recorder) Post(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// OfType returns recorded messages with the given type.
func (r *Recorder) OfType(t Type) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Statuses returns the text of every recorded status message.
func (r *Recorder) Statuses() []string {
	var out []string
	for _, m := range r.OfType(TypeStatus) {
		out = append(out, m.Msg)
	}
	return out
}
