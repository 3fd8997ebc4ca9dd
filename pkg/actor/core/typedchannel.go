package core

import (
	"reflect"
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// TypedChannel is the in-process ordered queue backing a typed channel:
// many writers (arbitrary holders of the SendPort), one reader (the
// holder of the ReceivePort). It plays the same role as the teacher's
// single `<-chan RPC` fed from several goroutines in handleGMCast, but
// generalized over an arbitrary element type with Go generics and
// exposed through a push/wait contract rather than a bare channel, so
// composite reads (below) can be built without losing wakeups.
type TypedChannel[T any] struct {
	mu      sync.Mutex
	pending []T
	notify  chan struct{}
	closed  bool
}

// NewTypedChannel constructs an empty, open TypedChannel.
func NewTypedChannel[T any]() *TypedChannel[T] {
	return &TypedChannel[T]{notify: make(chan struct{})}
}

// wakeLocked must be called with mu held: it broadcasts to every
// goroutine waiting on the current notify generation.
func (c *TypedChannel[T]) wakeLocked() {
	close(c.notify)
	c.notify = make(chan struct{})
}

// Push delivers v to the channel, preserving per-sender-thread ordering
// since each call commits a single append under the lock.
func (c *TypedChannel[T]) Push(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return types.ErrMailboxClosed
	}
	c.pending = append(c.pending, v)
	c.wakeLocked()
	return nil
}

// Close stops the channel from accepting further pushes. Called when the
// owning process dies and drops its TypedChannels.
func (c *TypedChannel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.wakeLocked()
	}
}

// tryOrWaitCase atomically either pops the head element (returning it
// with ok=true) or, if empty, captures a select case on the current
// notify generation so a caller can block on it without missing a wakeup
// from a Push that happens immediately after this call returns.
func (c *TypedChannel[T]) tryOrWaitCase() (T, bool, reflect.SelectCase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > 0 {
		v := c.pending[0]
		c.pending = c.pending[1:]
		return v, true, reflect.SelectCase{}
	}
	return *new(T), false, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(c.notify),
	}
}

// Receive blocks until an element is available and returns it, preserving
// FIFO order of whatever was pushed.
func (c *TypedChannel[T]) Receive() T {
	for {
		v, ok, waitCase := c.tryOrWaitCase()
		if ok {
			return v
		}
		reflect.Select([]reflect.SelectCase{waitCase})
	}
}

// ReceivePort is the read half of a typed channel, or a composite built
// over several such ports. It never copies messages; composition only
// ever wraps the leaves passed to it.
type ReceivePort[T any] interface {
	// Receive blocks until a value is available, committing to exactly
	// one underlying source.
	Receive() T

	// tryOrWait is the composable primitive behind Receive: it either
	// pops a ready value or returns a wait case for the caller to block
	// on, exactly like TypedChannel.tryOrWaitCase.
	tryOrWait() (T, bool, reflect.SelectCase)
}

// SinglePort references exactly one TypedChannel.
type SinglePort[T any] struct {
	channel *TypedChannel[T]
}

// NewSinglePort wraps channel as a ReceivePort.
func NewSinglePort[T any](channel *TypedChannel[T]) *SinglePort[T] {
	return &SinglePort[T]{channel: channel}
}

func (s *SinglePort[T]) Receive() T {
	return s.channel.Receive()
}

func (s *SinglePort[T]) tryOrWait() (T, bool, reflect.SelectCase) {
	return s.channel.tryOrWaitCase()
}

// biasedAttempt scans ports in priority order, committing to the first
// one with a ready value; if none are ready it returns the wait cases
// for every port so the caller can block until any becomes ready, then
// retry the scan from the top -- this is what gives Biased its
// leftmost-wins tie-break for messages already queued before the read
// begins, and RoundRobin its fairness once combined with rotation.
func biasedAttempt[T any](ports []ReceivePort[T]) (T, int, bool, []reflect.SelectCase) {
	cases := make([]reflect.SelectCase, 0, len(ports))
	for i, p := range ports {
		v, ok, waitCase := p.tryOrWait()
		if ok {
			return v, i, true, nil
		}
		cases = append(cases, waitCase)
	}
	return *new(T), -1, false, cases
}

// BiasedPort is the composite ReceivePort that always prefers earlier
// ports in its list.
type BiasedPort[T any] struct {
	ports []ReceivePort[T]
}

// MergePortsBiased returns the ReceivePort reading from ports in
// priority order. Merging never copies messages or allocates new
// channels; it wraps the given ports.
func MergePortsBiased[T any](ports []ReceivePort[T]) *BiasedPort[T] {
	return &BiasedPort[T]{ports: ports}
}

func (b *BiasedPort[T]) Receive() T {
	for {
		v, _, ok, waitCases := biasedAttempt(b.ports)
		if ok {
			return v
		}
		reflect.Select(waitCases)
	}
}

func (b *BiasedPort[T]) tryOrWait() (T, bool, reflect.SelectCase) {
	v, _, ok, waitCases := biasedAttempt(b.ports)
	if ok {
		return v, true, reflect.SelectCase{}
	}
	return *new(T), false, waitAny(waitCases)
}

// RoundRobinPort is the composite ReceivePort that, after each
// successful read, moves the served port to the end of its list --
// giving every underlying port an equal share of reads over time.
type RoundRobinPort[T any] struct {
	mu    sync.Mutex
	ports []ReceivePort[T]
}

// MergePortsRR returns the ReceivePort reading from ports in
// round-robin order.
func MergePortsRR[T any](ports []ReceivePort[T]) *RoundRobinPort[T] {
	cp := make([]ReceivePort[T], len(ports))
	copy(cp, ports)
	return &RoundRobinPort[T]{ports: cp}
}

func (r *RoundRobinPort[T]) snapshot() []ReceivePort[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]ReceivePort[T], len(r.ports))
	copy(cp, r.ports)
	return cp
}

func (r *RoundRobinPort[T]) rotate(selected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if selected < 0 || selected >= len(r.ports) {
		return
	}
	picked := r.ports[selected]
	r.ports = append(r.ports[:selected], r.ports[selected+1:]...)
	r.ports = append(r.ports, picked)
}

func (r *RoundRobinPort[T]) Receive() T {
	for {
		ports := r.snapshot()
		v, idx, ok, waitCases := biasedAttempt(ports)
		if ok {
			r.rotate(idx)
			return v
		}
		reflect.Select(waitCases)
	}
}

func (r *RoundRobinPort[T]) tryOrWait() (T, bool, reflect.SelectCase) {
	ports := r.snapshot()
	v, idx, ok, waitCases := biasedAttempt(ports)
	if ok {
		r.rotate(idx)
		return v, true, reflect.SelectCase{}
	}
	return *new(T), false, waitAny(waitCases)
}

// channelSink adapts a TypedChannel to the controller's non-generic
// portSink so a remote send addressed to a SendPortId can reach it
// without the controller ever knowing T.
type channelSink[T any] struct {
	channel *TypedChannel[T]
}

// NewChannelSink wraps channel for registration with Controller.RegisterPort.
func NewChannelSink[T any](channel *TypedChannel[T]) portSink {
	return &channelSink[T]{channel: channel}
}

func (s *channelSink[T]) push(envelope types.Envelope) error {
	var zero T
	out := new(T)
	if err := types.Decode(envelope, zero, out); err != nil {
		return err
	}
	return s.channel.Push(*out)
}

// waitAny collapses an arbitrary number of select cases into a single
// one, for composites nested inside another composite's port list: a
// short-lived goroutine blocks on all of them and closes a signal
// channel the instant any fires, without consuming from (or otherwise
// disturbing) whichever one actually became ready -- the real consuming
// select happens on the next pass through the owning composite's own
// tryOrWait/Receive loop.
func waitAny(cases []reflect.SelectCase) reflect.SelectCase {
	done := make(chan struct{})
	if len(cases) == 0 {
		close(done)
		return reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(done)}
	}
	go func() {
		reflect.Select(cases)
		close(done)
	}()
	return reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(done)}
}
