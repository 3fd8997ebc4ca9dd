package core

import (
	"sync"
	"time"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// Mode selects one of the three dequeue disciplines a Mailbox supports.
type Mode int

const (
	// Blocking waits indefinitely for a matching message.
	Blocking Mode = iota
	// NonBlocking returns immediately if nothing currently queued matches.
	NonBlocking
	// TimeoutMode waits up to a bounded duration for a new message to
	// arrive once the currently-queued messages have been scanned
	// without a match.
	TimeoutMode
)

// Predicate probes a single envelope during a mailbox scan. It returns
// the action to hand back to the caller and true when it accepts the
// envelope; an envelope rejected by every predicate in the list stays in
// the mailbox at its original position.
type Predicate func(envelope types.Envelope) (action interface{}, ok bool)

// Mailbox is the unbounded, FIFO, selective-receive queue of Envelopes
// owned by exactly one process. Producers enqueue under a short lock
// that commits a single append; the single consumer scans under the
// same lock. Waiting consumers are woken by closing a per-generation
// notify channel -- the same broadcast-via-channel-close idiom the
// wider Go ecosystem uses in place of a raw sync.Cond, composing
// cleanly with select and time.After for the Timeout mode.
type Mailbox struct {
	mu      sync.Mutex
	items   []types.Envelope
	closed  bool
	notify  chan struct{}
	metrics *Metrics
}

// NewMailbox constructs an empty, open Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{})}
}

// SetMetrics wires m into this mailbox's live depth gauge: every
// subsequent Enqueue and successful scan updates
// actor_mailbox_depth to reflect this mailbox's own queued length. A
// Mailbox with no metrics attached (e.g. tests constructing one bare)
// simply skips reporting.
func (m *Mailbox) SetMetrics(metrics *Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// reportDepthLocked pushes the current queue length to the attached
// Metrics, if any. Must be called with mu held.
func (m *Mailbox) reportDepthLocked() {
	if m.metrics != nil {
		m.metrics.SetMailboxDepth(len(m.items))
	}
}

// wake must be called with mu held; it broadcasts to every goroutine
// currently waiting in Dequeue and arms a fresh generation for the next
// wait.
func (m *Mailbox) wake() {
	close(m.notify)
	m.notify = make(chan struct{})
}

// Enqueue appends envelope to the end of the mailbox, preserving I1
// (insertion order) and I3 (concurrent senders serialize at this call).
func (m *Mailbox) Enqueue(envelope types.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return types.ErrMailboxClosed
	}
	m.items = append(m.items, envelope)
	m.reportDepthLocked()
	m.wake()
	return nil
}

// Close marks the mailbox closed and wakes every pending Dequeue so it
// can observe ErrMailboxClosed. Called by Process.Terminate when the
// owning process dies.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.wake()
	}
}

// Len reports how many envelopes are currently queued, for metrics.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// scanLocked implements the matching algorithm: iterate in FIFO order,
// probe predicates in order for each item, and on the first accept
// remove that item (preserving the order of everything else) and return
// its action. Must be called with mu held.
func (m *Mailbox) scanLocked(preds []Predicate) (interface{}, bool) {
	for i := range m.items {
		envelope := m.items[i]
		for _, p := range preds {
			if action, ok := p(envelope); ok {
				m.items = append(m.items[:i:i], m.items[i+1:]...)
				m.reportDepthLocked()
				return action, true
			}
		}
	}
	return nil, false
}

// Dequeue implements the three modes from the selective-receive
// contract. timeout is only consulted in TimeoutMode; a timeout of zero
// is equivalent to NonBlocking and never suspends.
func (m *Mailbox) Dequeue(mode Mode, timeout time.Duration, preds []Predicate) (interface{}, bool, error) {
	m.mu.Lock()
	if action, ok := m.scanLocked(preds); ok {
		m.mu.Unlock()
		return action, true, nil
	}
	if m.closed {
		m.mu.Unlock()
		return nil, false, types.ErrMailboxClosed
	}
	switch mode {
	case NonBlocking:
		m.mu.Unlock()
		return nil, false, nil
	case TimeoutMode:
		if timeout <= 0 {
			m.mu.Unlock()
			return nil, false, nil
		}
	}

	var deadline <-chan time.Time
	if mode == TimeoutMode {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		ch := m.notify
		m.mu.Unlock()
		select {
		case <-ch:
			m.mu.Lock()
		case <-deadline:
			m.mu.Lock()
			if action, ok := m.scanLocked(preds); ok {
				m.mu.Unlock()
				return action, true, nil
			}
			m.mu.Unlock()
			return nil, false, nil
		}
		if action, ok := m.scanLocked(preds); ok {
			m.mu.Unlock()
			return action, true, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, false, types.ErrMailboxClosed
		}
	}
}

// MatchType builds a Predicate that accepts any envelope whose
// fingerprint matches zero's type, decoding it into a fresh value of
// that type and handing it back as the action -- the building block
// behind expect<T>/receiveWait's type-only matches.
func MatchType(zero interface{}, newValue func() interface{}) Predicate {
	return func(envelope types.Envelope) (interface{}, bool) {
		if !envelope.Matches(zero) {
			return nil, false
		}
		out := newValue()
		if err := types.Decode(envelope, zero, out); err != nil {
			return nil, false
		}
		return out, true
	}
}

// MatchIf builds a Predicate over envelopes of a single type, further
// filtered by guard; guard runs only once the envelope has already been
// decoded, matching the scenario's `matchIf(even, id)` shape.
func MatchIf(zero interface{}, newValue func() interface{}, guard func(interface{}) bool) Predicate {
	inner := MatchType(zero, newValue)
	return func(envelope types.Envelope) (interface{}, bool) {
		action, ok := inner(envelope)
		if !ok {
			return nil, false
		}
		if !guard(action) {
			return nil, false
		}
		return action, true
	}
}
