package processor

import "sync"

// Mailbox is a single-slot buffer where the newest value wins. The producer
// never blocks; a value that was not consumed in time is handed to drop.
type Mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	full   bool
	closed bool
	drops  uint64
	drop   func(T)
}

// NewMailbox creates a mailbox. drop may be nil.
func NewMailbox[T any](drop func(T)) *Mailbox[T] {
	m := &Mailbox[T]{drop: drop}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores v, replacing an unconsumed value. It reports false once the
// mailbox is closed, in which case v is dropped.
func (m *Mailbox[T]) Publish(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.release(v)
		return false
	}
	old, hadOld := m.value, m.full
	m.value = v
	m.full = true
	if hadOld {
		m.drops++
	}
	m.cond.Signal()
	m.mu.Unlock()

	if hadOld {
		m.release(old)
	}
	return true
}

// Next blocks until a value is available. ok is false after Close.
func (m *Mailbox[T]) Next() (v T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.full && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return v, false
	}
	v = m.value
	var zero T
	m.value = zero
	m.full = false
	return v, true
}

// Close wakes the consumer and drops a pending value
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending, hadPending := m.value, m.full
	var zero T
	m.value = zero
	m.full = false
	m.cond.Broadcast()
	m.mu.Unlock()

	if hadPending {
		m.release(pending)
	}
}

// Drops returns how many values were replaced before being consumed
func (m *Mailbox[T]) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

func (m *Mailbox[T]) release(v T) {
	if m.drop != nil {
		m.drop(v)
	}
}
