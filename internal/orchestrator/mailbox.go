package orchestrator

import "sync"

// event is a unit of work executed on the event loop. apply runs to
// completion before any other event starts.
type event interface {
	apply(o *Orchestrator)
}

// mailbox is an unbounded multi-producer, single-consumer queue. post
// never waits for the consumer.
type mailbox struct {
	mu     sync.Mutex
	queue  []event
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(ev event) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStopped
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// drain takes every queued event in posting order.
func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue
	m.queue = nil
	return q
}

// close rejects further posts and returns the events that will never run.
func (m *mailbox) close() []event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
