// Package session tracks connected clients and delivers encoded events to
// their transport goroutines.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultOutboxSize is the queue length used when none is configured.
const DefaultOutboxSize = 64

var (
	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("session: outbox closed")
	// ErrOutboxFull is returned by Push when the client is not draining its queue.
	ErrOutboxFull = errors.New("session: outbox buffer full")
)

// Outbox is the bounded queue between the room loops that produce a
// client's events and the single transport goroutine that writes them.
//
// Invariant: once closed, the events channel is closed and stays closed.
type Outbox struct {
	uid     string
	events  chan []byte
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewOutbox creates the queue of client uid holding up to size events.
func NewOutbox(uid string, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{uid: uid, events: make(chan []byte, size)}
}

// UID returns the owning client's identifier.
func (o *Outbox) UID() string { return o.uid }

// Push enqueues data without blocking. A full queue drops data and counts it.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("%w: %s", ErrOutboxClosed, o.uid)
	}
	select {
	case o.events <- data:
		return nil
	default:
		o.dropped++
		return fmt.Errorf("%w: %s", ErrOutboxFull, o.uid)
	}
}

// Events is drained by the transport writer. It is closed by Close.
func (o *Outbox) Events() <-chan []byte { return o.events }

// Close stops delivery. Calling it again has no effect.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.events)
}

// Closed reports whether Close has been called.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Dropped returns how many events were discarded on a full queue.
func (o *Outbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
