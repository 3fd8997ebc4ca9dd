package core

import (
	"fmt"
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/definition"
	"github.com/jabolina/go-actor/pkg/actor/types"
)

// portSink is the non-generic handle the controller keeps for a live
// SendPortId so a remote-addressed push can reach the right
// TypedChannel without the controller needing its element type.
type portSink interface {
	push(envelope types.Envelope) error
}

// Controller is the single-writer node controller (C5): the sole
// mutator of the supervision graph and registry, processing one control
// signal at a time from local processes or from the transport, in the
// order it receives them -- the serial-processing discipline spec
// requires to eliminate intra-node races without finer-grained locking.
//
// Structurally this replaces the teacher's Unity.run/poll/process
// dispatch loop: one goroutine reading off two sources (here, the
// in-process inbox and the transport) and switching on message kind.
type Controller struct {
	node      types.NodeId
	version   types.WireVersion
	log       types.Logger
	transport Transport
	resolver  types.Resolver
	eventLog  *types.EventLog
	metrics   *Metrics
	invoker   Invoker

	inbox chan interface{}
	done  chan struct{}
	stop  sync.Once

	graph    *SupervisionGraph
	registry *Registry

	processesMu sync.Mutex
	processes   map[types.ProcessId]*Process
	localSeq    types.Counter

	portsMu sync.Mutex
	ports   map[types.SendPortId]portSink

	decodersMu sync.Mutex
	decoders   []remoteDecoder
}

type remoteDecoder struct {
	zero   interface{}
	decode func(envelope types.Envelope) (interface{}, bool)
}

// NewController constructs a Controller for node, wired to transport,
// resolver, and the supporting ambient stack, and starts its dispatch
// loop. version is advertised to peers on every remote control signal and
// checked against theirs before a peer's signal is dispatched
// (processRemoteSignal).
func NewController(node types.NodeId, version types.WireVersion, transport Transport, resolver types.Resolver, log types.Logger, eventLog *types.EventLog, metrics *Metrics, invoker Invoker) *Controller {
	c := &Controller{
		node:      node,
		version:   version,
		log:       log,
		transport: transport,
		resolver:  resolver,
		eventLog:  eventLog,
		metrics:   metrics,
		invoker:   invoker,
		inbox:     make(chan interface{}, 256),
		done:      make(chan struct{}),
		graph:     NewSupervisionGraph(),
		registry:  NewRegistry(),
		processes: make(map[types.ProcessId]*Process),
		ports:     make(map[types.SendPortId]portSink),
	}
	registerSignalDecoders(c)
	invoker.Spawn(c.run)
	return c
}

// Node reports the identity of the node this controller owns.
func (c *Controller) Node() types.NodeId {
	return c.node
}

// Submit enqueues a control signal for processing. Signals from the same
// originator are processed in the order Submit is called, matching the
// per-originator issue-order guarantee.
func (c *Controller) Submit(signal interface{}) {
	c.metrics.IncControllerBacklog(1)
	select {
	case c.inbox <- signal:
	case <-c.done:
	}
}

// Dispatch submits signal for processing on node's controller: directly
// via Submit when node is this controller's own node, or framed over the
// transport to node's controller inbox otherwise. Every primitive that
// must mutate a graph living on a specific node (which may not be the
// caller's own) goes through this, local and remote alike.
func (c *Controller) Dispatch(node types.NodeId, signal interface{}) {
	if node == c.node {
		c.Submit(signal)
		return
	}
	c.sendRemoteSignal(node, signal)
}

// Shutdown stops the controller's dispatch loop.
func (c *Controller) Shutdown() {
	c.stop.Do(func() {
		close(c.done)
	})
}

// run is the controller's single dispatch loop: one goroutine, two
// sources, processed one at a time.
func (c *Controller) run() {
	for {
		select {
		case <-c.done:
			return
		case signal := <-c.inbox:
			c.metrics.IncControllerBacklog(-1)
			c.process(signal)
		case wire, ok := <-c.transport.Listen():
			if !ok {
				return
			}
			c.processWire(wire)
		}
	}
}

// processWire routes an inbound WireMessage to the right place: a
// message addressed to a live local process's mailbox, a push onto a
// live local SendPort's TypedChannel, or (addressed to this node
// itself) a remote control signal to decode and dispatch.
func (c *Controller) processWire(wire WireMessage) {
	switch wire.Destination.Kind {
	case types.ProcessIdentifier:
		c.deliverMailbox(wire.Destination.Pid, wire.Envelope)
	case types.SendPortIdentifier:
		c.deliverPort(wire.Destination.Port, wire.Envelope)
	case types.NodeIdentifier:
		c.processRemoteSignal(wire.Envelope)
	}
}

// processRemoteSignal unwraps a RemoteSignalFrame and runs the version
// handshake (types.CheckWireVersion) before dispatching the signal it
// carries -- the check that precedes accepting any remote control signal,
// generalizing the teacher's checkRPCHeader.
func (c *Controller) processRemoteSignal(envelope types.Envelope) {
	var frame types.RemoteSignalFrame
	if err := types.Decode(envelope, types.RemoteSignalFrame{}, &frame); err != nil {
		c.log.Warnf("%s: dropped envelope with unrecognized fingerprint %s", c.node, envelope.Fingerprint)
		return
	}
	remote, err := types.NewWireVersion(frame.Version)
	if err != nil {
		c.log.Warnf("%s: dropped remote signal with unparseable version %q: %v", c.node, frame.Version, err)
		return
	}
	if err := types.CheckWireVersion(c.version, remote); err != nil {
		c.log.Warnf("%s: rejected remote signal: %v", c.node, err)
		return
	}
	if signal, ok := c.decodeRemoteSignal(frame.Signal); ok {
		c.process(signal)
	} else {
		c.log.Warnf("%s: dropped envelope with unrecognized fingerprint %s", c.node, frame.Signal.Fingerprint)
	}
}

func (c *Controller) deliverMailbox(pid types.ProcessId, envelope types.Envelope) {
	if err := c.deliverMailboxErr(pid, envelope); err != nil {
		c.log.Warnf("%s: %v", c.node, err)
	}
}

func (c *Controller) deliverMailboxErr(pid types.ProcessId, envelope types.Envelope) error {
	c.processesMu.Lock()
	proc, ok := c.processes[pid]
	c.processesMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownProcess, pid)
	}
	if err := proc.mailbox.Enqueue(envelope); err != nil {
		return fmt.Errorf("delivering to %s: %w", pid, err)
	}
	return nil
}

func (c *Controller) deliverPort(port types.SendPortId, envelope types.Envelope) {
	c.portsMu.Lock()
	sink, ok := c.ports[port]
	c.portsMu.Unlock()
	if !ok {
		c.log.Warnf("%s: dropped message for unknown port %s", c.node, port)
		return
	}
	if err := sink.push(envelope); err != nil {
		c.log.Warnf("%s: failed pushing to port %s: %v", c.node, port, err)
	}
}

// RegisterPort exposes a TypedChannel to remote senders under id.
func (c *Controller) RegisterPort(id types.SendPortId, sink portSink) {
	c.portsMu.Lock()
	defer c.portsMu.Unlock()
	c.ports[id] = sink
}

// UnregisterPort removes a previously-registered port.
func (c *Controller) UnregisterPort(id types.SendPortId) {
	c.portsMu.Lock()
	defer c.portsMu.Unlock()
	delete(c.ports, id)
}

// SpawnLocal mints a fresh ProcessId, registers its Process in the
// process table, and starts run on its own goroutine. Used both
// directly (local spawn primitive) and as the landing site for a
// resolved Spawn closure.
func (c *Controller) SpawnLocal(run func(*Process)) *Process {
	local := types.LocalProcessId(c.localSeq.Next())
	pid := types.ProcessId{Node: c.node, Local: local}
	proc := newProcess(pid, c, c.log)

	c.processesMu.Lock()
	c.processes[pid] = proc
	c.processesMu.Unlock()

	c.invoker.Spawn(func() {
		// Mirrors the teacher's finishMessageProcessing defer/recover
		// discipline (pkg/mcast/core/peer.go), generalized from
		// swallowing a single known panic into the process boundary's
		// catch/terminate contract: a `Reason` panic (raised by the
		// terminate primitive) ends the process with that reason, any
		// other panic is recorded as a crash, and a normal return ends
		// it with ReasonNormal.
		defer func() {
			if r := recover(); r != nil {
				if reason, ok := r.(types.Reason); ok {
					proc.Terminate(reason)
					return
				}
				proc.Terminate(types.Reason(fmt.Sprintf("panic: %v", r)))
				return
			}
			proc.Terminate(types.ReasonNormal)
		}()
		run(proc)
	})
	return proc
}

// process dispatches a single decoded control signal -- the heart of
// C5/C6/C7.
func (c *Controller) process(signal interface{}) {
	switch sig := signal.(type) {
	case types.MonitorSignal:
		c.onMonitor(sig)
	case types.UnmonitorSignal:
		c.onUnmonitor(sig)
	case types.LinkSignal:
		c.onLink(sig)
	case types.UnlinkSignal:
		c.onUnlink(sig)
	case types.RegisterSignal:
		c.onRegister(sig)
	case types.WhereIsSignal:
		c.onWhereIs(sig)
	case types.NamedSendSignal:
		c.onNamedSend(sig)
	case types.SpawnSignal:
		c.onSpawn(sig)
	case types.DeathSignal:
		c.onDeath(sig)
	default:
		c.log.Warnf("%s: controller received unknown signal %#v", c.node, signal)
	}
}

func (c *Controller) onMonitor(sig types.MonitorSignal) {
	_ = c.eventLog.Record(types.OpMonitor, sig.Target.String())
	if dead, reason, ok := c.checkAlreadyDead(sig.Target); ok {
		c.deliverToPid(sig.Watcher, types.MonitorNotification{Ref: sig.Ref, Target: dead, Reason: reason})
		return
	}
	c.graph.AddMonitor(MonitorEntry{Ref: sig.Ref, Watcher: sig.Watcher, Target: sig.Target})
	c.metrics.SetMonitorCount(len(c.graph.monitorsByRef))
}

// checkAlreadyDead reports whether target is already dead on this node:
// a ProcessIdentifier, or a SendPortIdentifier judged by its owning
// process, whose process is local and not in the live process table
// (never spawned, or already dead). Node targets and entities owned by
// another node are never reported here.
func (c *Controller) checkAlreadyDead(target types.Identifier) (types.Identifier, types.Reason, bool) {
	var pid types.ProcessId
	switch target.Kind {
	case types.ProcessIdentifier:
		pid = target.Pid
	case types.SendPortIdentifier:
		pid = target.Port.Owner
	default:
		return target, "", false
	}
	if pid.Node != c.node {
		return target, "", false
	}
	c.processesMu.Lock()
	_, alive := c.processes[pid]
	c.processesMu.Unlock()
	if alive {
		return target, "", false
	}
	return target, types.ReasonUnknown, true
}

func (c *Controller) onUnmonitor(sig types.UnmonitorSignal) {
	_ = c.eventLog.Record(types.OpUnmonitor, sig.Ref.String())
	c.graph.RemoveMonitor(sig.Ref)
	c.metrics.SetMonitorCount(len(c.graph.monitorsByRef))
	c.deliverToPid(sig.ReplyTo, types.DidUnmonitor{Ref: sig.Ref})
}

func (c *Controller) onLink(sig types.LinkSignal) {
	_ = c.eventLog.Record(types.OpLink, sig.A.String()+"<->"+sig.B.String())
	c.graph.AddLink(sig.A, sig.B)
	c.metrics.SetLinkCount(c.graph.LinkCount())
}

// onUnlink removes the link from this node's own graph copy. A link
// spans two nodes (one per endpoint, per spec's C6), so the caller
// dispatches this signal to both endpoints' owning nodes; only the
// dispatch carrying a non-zero ReplyTo (the caller's own node) sends
// back the acknowledgement -- the mirrored dispatch to the partner's
// node is fire-and-forget bookkeeping, to avoid handing the caller two
// acks for one unlink.
func (c *Controller) onUnlink(sig types.UnlinkSignal) {
	_ = c.eventLog.Record(types.OpUnlink, sig.From.String()+"<->"+sig.Target.String())
	c.graph.RemoveLink(sig.From, sig.Target)
	c.metrics.SetLinkCount(c.graph.LinkCount())
	if (sig.ReplyTo != types.ProcessId{}) {
		c.deliverToPid(sig.ReplyTo, types.DidUnlink{Target: sig.Target})
	}
}

func (c *Controller) onRegister(sig types.RegisterSignal) {
	if sig.Remove {
		_ = c.eventLog.Record(types.OpUnregister, sig.Label)
		c.registry.Unregister(sig.Label)
		return
	}
	_ = c.eventLog.Record(types.OpRegister, sig.Label)
	c.registry.Register(sig.Label, sig.Pid)
}

func (c *Controller) onWhereIs(sig types.WhereIsSignal) {
	_ = c.eventLog.Record(types.OpWhereIs, sig.Label)
	pid, found := c.registry.WhereIs(sig.Label)
	c.deliverToPid(sig.ReplyTo, types.WhereIsReply{Label: sig.Label, Pid: pid, Found: found})
}

func (c *Controller) onNamedSend(sig types.NamedSendSignal) {
	_ = c.eventLog.Record(types.OpNamedSend, sig.Label)
	pid, found := c.registry.WhereIs(sig.Label)
	if !found {
		return
	}
	c.deliverMailbox(pid, sig.Envelope)
}

func (c *Controller) onSpawn(sig types.SpawnSignal) {
	_ = c.eventLog.Record(types.OpSpawn, sig.Closure.Label)
	resolved, err := definition.UnClosure(c.resolver, sig.Closure, EntryPoint(nil))
	if err != nil {
		c.deliverToPid(sig.ReplyTo, types.SpawnReply{Ref: sig.Ref, Err: err.Error()})
		return
	}
	entry, ok := resolved.(EntryPoint)
	if !ok {
		c.deliverToPid(sig.ReplyTo, types.SpawnReply{Ref: sig.Ref, Err: types.ErrClosureTypeMismatch.Error()})
		return
	}
	proc := c.SpawnLocal(entry)
	c.deliverToPid(sig.ReplyTo, types.SpawnReply{Ref: sig.Ref, Pid: proc.Pid()})
}

func (c *Controller) onDeath(sig types.DeathSignal) {
	c.processesMu.Lock()
	if sig.Entity.Kind == types.ProcessIdentifier {
		// A death relayed for a local process that is still running (its
		// link partner died on another node) ends that process first; its
		// own Terminate then submits the DeathSignal that drives the walk.
		if proc, ok := c.processes[sig.Entity.Pid]; ok {
			select {
			case <-proc.done:
			default:
				c.processesMu.Unlock()
				c.invoker.Spawn(func() { proc.Terminate(sig.Reason) })
				return
			}
		}
		delete(c.processes, sig.Entity.Pid)
		for _, label := range c.registry.OnDeath(sig.Entity.Pid) {
			c.log.Debugf("%s: removed registration %q for dead process %s", c.node, label, sig.Entity.Pid)
		}
	}
	c.processesMu.Unlock()

	toNotify, linkPartners := c.graph.OnDeath(sig.Entity)
	c.metrics.SetMonitorCount(len(c.graph.monitorsByRef))
	c.metrics.SetLinkCount(c.graph.LinkCount())

	for _, entry := range toNotify {
		c.deliverToPid(entry.Watcher, types.MonitorNotification{Ref: entry.Ref, Target: sig.Entity, Reason: sig.Reason})
	}
	for _, partner := range linkPartners {
		c.propagateLinkDeath(partner)
	}
}

// propagateLinkDeath terminates the surviving endpoint of a broken link,
// local or remote. A remote partner is told via the transport using its
// owning node's controller inbox; a local one is terminated directly. A
// send-port partner stands for its owning process; a node partner is not
// terminated.
func (c *Controller) propagateLinkDeath(partner types.Identifier) {
	if partner.Kind == types.SendPortIdentifier {
		partner = types.OfProcess(partner.Port.Owner)
	}
	if partner.Kind != types.ProcessIdentifier {
		return
	}
	if partner.Pid.Node != c.node {
		c.sendRemoteSignal(partner.Pid.Node, types.DeathSignal{Entity: partner, Reason: types.ReasonLinkedDied})
		return
	}
	c.processesMu.Lock()
	proc, ok := c.processes[partner.Pid]
	c.processesMu.Unlock()
	if ok {
		c.invoker.Spawn(func() {
			proc.Terminate(types.ReasonLinkedDied)
		})
	}
}

// notifyDeath is called by a Process when it terminates, submitting a
// DeathSignal so the death is handled on the controller's single
// dispatch loop rather than the dying process's own goroutine.
func (c *Controller) notifyDeath(entity types.Identifier, reason types.Reason) {
	c.Submit(types.DeathSignal{Entity: entity, Reason: reason})
}

// deliverToPid routes a value to pid's mailbox, local or remote,
// swallowing (logging) the error -- the shape every internal
// acknowledgement and notification uses, where there is no caller left
// to hand a failure back to.
func (c *Controller) deliverToPid(pid types.ProcessId, v interface{}) {
	if err := c.SendMessage(pid, v); err != nil {
		c.log.Warnf("%s: %v", c.node, err)
	}
}

// SendMessage is the send primitive's backing implementation (spec's
// `send: ProcessId x Value -> unit`): local processes get a direct
// mailbox enqueue, remote ones go through the transport, and a
// transport failure is reported to the caller *and* folds into the
// same node-down death handling a failed control signal triggers.
func (c *Controller) SendMessage(pid types.ProcessId, v interface{}) error {
	envelope, err := types.CreateMessage(v)
	if err != nil {
		return fmt.Errorf("encoding message to %s: %w", pid, err)
	}
	if pid.Node == c.node {
		return c.deliverMailboxErr(pid, envelope)
	}
	if err := c.transport.SendToProcess(pid, envelope); err != nil {
		c.notifyDeath(types.OfNode(pid.Node), types.ReasonNodeDown)
		return fmt.Errorf("delivering to remote process %s: %w", pid, err)
	}
	return nil
}

// RouteToPort is sendChan's backing implementation: local ports get a
// direct push through the controller's registered sink, remote ports go
// through the transport.
func (c *Controller) RouteToPort(port types.SendPortId, envelope types.Envelope) error {
	if port.Owner.Node == c.node {
		c.portsMu.Lock()
		sink, ok := c.ports[port]
		c.portsMu.Unlock()
		if !ok {
			return fmt.Errorf("%w: port %s", types.ErrUnknownProcess, port)
		}
		return sink.push(envelope)
	}
	return c.transport.SendToPort(port, envelope)
}

// Resolver exposes the closure resolver for the unClosure primitive.
func (c *Controller) Resolver() types.Resolver {
	return c.resolver
}

// sendRemoteSignal encodes a control signal, wraps it with this node's
// wire version, and sends it to another node's controller inbox.
func (c *Controller) sendRemoteSignal(node types.NodeId, signal interface{}) {
	signalEnvelope, err := types.CreateMessage(signal)
	if err != nil {
		c.log.Errorf("%s: failed encoding remote signal: %v", c.node, err)
		return
	}
	envelope, err := types.CreateMessage(types.RemoteSignalFrame{Version: c.version.String(), Signal: signalEnvelope})
	if err != nil {
		c.log.Errorf("%s: failed encoding remote signal frame: %v", c.node, err)
		return
	}
	if err := c.transport.SendToNode(node, envelope); err != nil {
		c.log.Warnf("%s: failed sending control signal to %s: %v", c.node, node, err)
		c.notifyDeath(types.OfNode(node), types.ReasonNodeDown)
	}
}

// decodeRemoteSignal tries every known control signal type against
// envelope's fingerprint, returning the first that matches.
func (c *Controller) decodeRemoteSignal(envelope types.Envelope) (interface{}, bool) {
	c.decodersMu.Lock()
	defer c.decodersMu.Unlock()
	for _, d := range c.decoders {
		if v, ok := d.decode(envelope); ok {
			return v, true
		}
	}
	return nil, false
}

func registerSignalDecoders(c *Controller) {
	register := func(zero interface{}, newValue func() interface{}) {
		c.decoders = append(c.decoders, remoteDecoder{
			zero: zero,
			decode: func(envelope types.Envelope) (interface{}, bool) {
				if !envelope.Matches(zero) {
					return nil, false
				}
				out := newValue()
				if err := types.Decode(envelope, zero, out); err != nil {
					return nil, false
				}
				return derefSignal(out), true
			},
		})
	}
	register(types.MonitorSignal{}, func() interface{} { return new(types.MonitorSignal) })
	register(types.UnmonitorSignal{}, func() interface{} { return new(types.UnmonitorSignal) })
	register(types.LinkSignal{}, func() interface{} { return new(types.LinkSignal) })
	register(types.UnlinkSignal{}, func() interface{} { return new(types.UnlinkSignal) })
	register(types.RegisterSignal{}, func() interface{} { return new(types.RegisterSignal) })
	register(types.WhereIsSignal{}, func() interface{} { return new(types.WhereIsSignal) })
	register(types.NamedSendSignal{}, func() interface{} { return new(types.NamedSendSignal) })
	register(types.SpawnSignal{}, func() interface{} { return new(types.SpawnSignal) })
	register(types.DeathSignal{}, func() interface{} { return new(types.DeathSignal) })
}

func derefSignal(v interface{}) interface{} {
	switch p := v.(type) {
	case *types.MonitorSignal:
		return *p
	case *types.UnmonitorSignal:
		return *p
	case *types.LinkSignal:
		return *p
	case *types.UnlinkSignal:
		return *p
	case *types.RegisterSignal:
		return *p
	case *types.WhereIsSignal:
		return *p
	case *types.NamedSendSignal:
		return *p
	case *types.SpawnSignal:
		return *p
	case *types.DeathSignal:
		return *p
	default:
		return v
	}
}
