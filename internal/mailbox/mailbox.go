// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mailbox provides an unbounded FIFO queue used as the inbox of the
// daemon's actors.
//
// Sends never block, so an actor may notify another actor while that actor is
// itself waiting on a reply from the sender.  A receiver waits on Signal and
// then drains the queue with Next until it reports no more items.
package mailbox

import (
	"container/list"
	"errors"
	"sync"
)

// ErrClosed is returned when sending to a mailbox whose owner has exited.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue of items of type T.  It is safe for
// concurrent use by multiple senders and a single receiver.
type Mailbox[T any] struct {
	mtx    sync.Mutex
	queue  *list.List
	closed bool
	signal chan struct{}
	done   chan struct{}
}

// New returns a new empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		queue:  list.New(),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Send appends the item to the queue and wakes the receiver.  It returns
// ErrClosed if the mailbox has been closed.
func (m *Mailbox[T]) Send(item T) error {
	m.mtx.Lock()
	if m.closed {
		m.mtx.Unlock()
		return ErrClosed
	}
	m.queue.PushBack(item)
	m.mtx.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Signal returns a channel that receives a value whenever items may be
// waiting.  A single signal may cover several items, so the receiver must
// call Next until it returns false.
func (m *Mailbox[T]) Signal() <-chan struct{} {
	return m.signal
}

// Next removes and returns the item at the front of the queue.  The boolean
// is false when the queue is empty.
func (m *Mailbox[T]) Next() (T, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	front := m.queue.Front()
	if front == nil {
		var zero T
		return zero, false
	}
	return m.queue.Remove(front).(T), true
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mtx.Lock()
	n := m.queue.Len()
	m.mtx.Unlock()
	return n
}

// Close marks the mailbox closed, drops any queued items and closes the done
// channel.  It is safe to call more than once.
func (m *Mailbox[T]) Close() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.queue.Init()
	close(m.done)
}

// Done returns a channel that is closed once the mailbox is closed.  Callers
// waiting on a reply from the owner select on it to detect that the owner
// exited before answering.
func (m *Mailbox[T]) Done() <-chan struct{} {
	return m.done
}
