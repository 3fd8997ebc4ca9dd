package core

import (
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// channelOwner is the non-generic handle a Process keeps for each live
// TypedChannel it created, so they can all be closed uniformly when the
// process dies without the process needing to know their element type.
type channelOwner interface {
	Close()
}

// EntryPoint is the Go type every spawnable computation must have: a
// resolved Closure's value is expected to carry this fingerprint, so it
// is a named type rather than an anonymous func literal (whose
// fingerprint would be indistinguishable from any other func's).
type EntryPoint func(*Process)

// Process is the local process context (C4): it owns a mailbox, the
// per-process counters and live-channel table named by the data model,
// and a back-reference to the controller for submitting control signals
// and routing sends through the transport when a destination is remote.
type Process struct {
	id      types.ProcessId
	mailbox *Mailbox
	log     types.Logger

	controller *Controller

	channelIndex   types.Counter
	monitorCounter types.Counter
	spawnCounter   types.Counter

	channelsMu sync.Mutex
	channels   map[uint64]channelOwner

	exitOnce   sync.Once
	exitReason types.Reason
	done       chan struct{}
}

func newProcess(id types.ProcessId, controller *Controller, log types.Logger) *Process {
	mailbox := NewMailbox()
	mailbox.SetMetrics(controller.metrics)
	return &Process{
		id:         id,
		mailbox:    mailbox,
		log:        log,
		controller: controller,
		channels:   make(map[uint64]channelOwner),
		done:       make(chan struct{}),
	}
}

// Pid returns this process's identity.
func (p *Process) Pid() types.ProcessId {
	return p.id
}

// Node returns the identity of the node this process runs on.
func (p *Process) Node() types.NodeId {
	return p.id.Node
}

// Mailbox returns this process's mailbox.
func (p *Process) Mailbox() *Mailbox {
	return p.mailbox
}

// Controller returns the owning node's controller, for primitives that
// need to submit control signals.
func (p *Process) Controller() *Controller {
	return p.controller
}

// Done is closed once the process has terminated, for suspension points
// that should unblock on shutdown (the host runtime's cooperative
// cancellation named in the concurrency model).
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// NextChannelIndex mints the next per-process channel index.
func (p *Process) NextChannelIndex() uint64 {
	return p.channelIndex.Next()
}

// NextMonitorCounter mints the next per-process monitor counter value.
func (p *Process) NextMonitorCounter() uint64 {
	return p.monitorCounter.Next()
}

// NextSpawnCounter mints the next per-process spawn counter value.
func (p *Process) NextSpawnCounter() uint64 {
	return p.spawnCounter.Next()
}

// TrackChannel registers a TypedChannel under index so it is closed when
// the process dies.
func (p *Process) TrackChannel(index uint64, ch channelOwner) {
	p.channelsMu.Lock()
	defer p.channelsMu.Unlock()
	p.channels[index] = ch
}

// Terminate ends the process with reason: its mailbox and every live
// TypedChannel are dropped, done is closed unblocking any suspended
// reads, and the controller is notified of the death of each dropped
// channel's send port and of the process itself so it can walk the
// supervision graph and registry. Safe to call more than once; only the
// first call has effect.
func (p *Process) Terminate(reason types.Reason) {
	p.exitOnce.Do(func() {
		p.exitReason = reason
		p.mailbox.Close()
		p.channelsMu.Lock()
		for index, ch := range p.channels {
			ch.Close()
			p.controller.notifyDeath(types.OfSendPort(types.SendPortId{Owner: p.id, Index: index}), reason)
		}
		p.channelsMu.Unlock()
		close(p.done)
		p.controller.notifyDeath(types.OfProcess(p.id), reason)
	})
}

// ExitReason reports the reason this process terminated with, valid
// only after Terminate has run.
func (p *Process) ExitReason() types.Reason {
	return p.exitReason
}
