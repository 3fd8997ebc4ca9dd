package actor

import (
	"errors"
	"time"

	"github.com/jabolina/go-actor/pkg/actor/core"
	"github.com/jabolina/go-actor/pkg/actor/definition"
	"github.com/jabolina/go-actor/pkg/actor/types"
)

// This file is the primitive surface (C8): thin, synchronous wrappers
// composing the mailbox, typed channels, and the node controller's
// asynchronous control signals. Every primitive that must wait for a
// correlated reply does so by selectively receiving it back out of the
// calling process's own mailbox, keyed strictly on the correlation token
// (MonitorRef, Identifier, or label) per the design note in spec.md §9 --
// never on message order alone, so concurrent outstanding requests never
// steal each other's acknowledgements.

// Send delivers v to pid: locally if pid's owning node is this process's
// own node, over the transport otherwise.
func Send(p *core.Process, pid types.ProcessId, v interface{}) error {
	return p.Controller().SendMessage(pid, v)
}

// Match is one entry of the ordered predicate list a selective receive
// scans: Guard accepts or rejects a decoded value of T. A zero-value
// Match (nil Guard) behaves as MatchAny.
type Match[T any] struct {
	Guard func(T) bool
}

// MatchAny accepts any value of T, regardless of content.
func MatchAny[T any]() Match[T] {
	return Match[T]{Guard: func(T) bool { return true }}
}

// MatchIf accepts a value of T only when guard reports true.
func MatchIf[T any](guard func(T) bool) Match[T] {
	return Match[T]{Guard: guard}
}

func buildPredicates[T any](matches []Match[T]) []core.Predicate {
	if len(matches) == 0 {
		matches = []Match[T]{MatchAny[T]()}
	}
	var zero T
	preds := make([]core.Predicate, len(matches))
	for i, m := range matches {
		guard := m.Guard
		if guard == nil {
			guard = func(T) bool { return true }
		}
		preds[i] = core.MatchIf(zero, func() interface{} { return new(T) }, func(v interface{}) bool {
			return guard(*v.(*T))
		})
	}
	return preds
}

// ReceiveWait blocks until a message matching one of matches (in order)
// arrives, then returns its decoded value. An empty matches list accepts
// any message of T.
func ReceiveWait[T any](p *core.Process, matches ...Match[T]) T {
	action, _, err := p.Mailbox().Dequeue(core.Blocking, 0, buildPredicates(matches))
	if err != nil {
		panic(err)
	}
	return *action.(*T)
}

// ReceiveTimeout is ReceiveWait bounded by timeout; it returns (zero,
// false) if no match arrives in time. timeout <= 0 never suspends
// (spec's "non-blocking timeout-zero" invariant).
func ReceiveTimeout[T any](p *core.Process, timeout time.Duration, matches ...Match[T]) (T, bool) {
	action, ok, err := p.Mailbox().Dequeue(core.TimeoutMode, timeout, buildPredicates(matches))
	if err != nil {
		panic(err)
	}
	if !ok {
		var zero T
		return zero, false
	}
	return *action.(*T), true
}

// Expect blocks for the next message of type T, regardless of content.
func Expect[T any](p *core.Process) T {
	return ReceiveWait[T](p)
}

// ExpectTimeout is Expect bounded by timeout.
func ExpectTimeout[T any](p *core.Process, timeout time.Duration) (T, bool) {
	return ReceiveTimeout[T](p, timeout)
}

// waitFor is the building block behind every synchronous
// signal-then-correlated-ack primitive below: block until a message of T
// satisfying guard arrives, ignoring (leaving queued) anything of type T
// that doesn't, so an unrelated outstanding request's reply is never
// consumed here.
func waitFor[T any](p *core.Process, guard func(T) bool) T {
	return ReceiveWait[T](p, Match[T]{Guard: guard})
}

// SendPort is the serializable write half of a typed channel: it names
// the channel by (owning process, local index) only, never the queue
// itself, so it can cross the wire while the ReceivePort stays local to
// its creator.
type SendPort[T any] struct {
	Id types.SendPortId
}

// channelOwnerHandle adapts a TypedChannel's Close plus its controller
// port registration into the single Close a Process tracks, so both are
// released together when the owning process dies.
type channelOwnerHandle struct {
	id         types.SendPortId
	channel    interface{ Close() }
	controller *core.Controller
}

func (h *channelOwnerHandle) Close() {
	h.controller.UnregisterPort(h.id)
	h.channel.Close()
}

// NewChan creates a fresh TypedChannel owned by p, returning its
// SendPort (serializable, sharable) and ReceivePort (local-only).
func NewChan[T any](p *core.Process) (SendPort[T], core.ReceivePort[T]) {
	channel := core.NewTypedChannel[T]()
	id := types.SendPortId{Owner: p.Pid(), Index: p.NextChannelIndex()}
	p.Controller().RegisterPort(id, core.NewChannelSink(channel))
	p.TrackChannel(id.Index, &channelOwnerHandle{id: id, channel: channel, controller: p.Controller()})
	return SendPort[T]{Id: id}, core.NewSinglePort(channel)
}

// SendChan delivers v to port's backing TypedChannel, locally or over
// the transport depending on the port's owning node.
func SendChan[T any](p *core.Process, port SendPort[T], v T) error {
	envelope, err := types.CreateMessage(v)
	if err != nil {
		return err
	}
	return p.Controller().RouteToPort(port.Id, envelope)
}

// ReceiveChan blocks until port yields a value, committing to exactly
// one underlying read when port is a composite.
func ReceiveChan[T any](port core.ReceivePort[T]) T {
	return port.Receive()
}

// MergePortsBiased returns the ReceivePort reading ports in priority
// order, earliest-indexed port wins ties.
func MergePortsBiased[T any](ports []core.ReceivePort[T]) core.ReceivePort[T] {
	return core.MergePortsBiased(ports)
}

// MergePortsRR returns the ReceivePort reading ports round-robin.
func MergePortsRR[T any](ports []core.ReceivePort[T]) core.ReceivePort[T] {
	return core.MergePortsRR(ports)
}

// monitorDestination decides which node's controller must own a given
// monitor/link registration. A process or port identifier is only ever
// known to have died by its own owning node's controller, so that is
// where the registration lives; a whole-node target can only ever be
// detected as unreachable by the watcher's own node (whichever transport
// attempt to it fails), so that registration stays local to the watcher.
func monitorDestination(p *core.Process, target types.Identifier) types.NodeId {
	if target.Kind == types.NodeIdentifier {
		return p.Node()
	}
	return target.OwningNode()
}

// Monitor installs a one-way observation of target's death, returning
// the MonitorRef the eventual types.MonitorNotification will carry.
// Monitoring a process, or a send port, whose (owning) process is not
// alive on its node immediately delivers the notification with
// ReasonUnknown; a node target is only reported once a transport attempt
// to that node fails. This call itself never blocks.
func Monitor(p *core.Process, target types.Identifier) types.MonitorRef {
	ref := types.MonitorRef{Target: target, Counter: p.NextMonitorCounter()}
	p.Controller().Dispatch(monitorDestination(p, target), types.MonitorSignal{
		Ref:     ref,
		Watcher: p.Pid(),
		Target:  target,
	})
	return ref
}

// MonitorNode monitors a whole node's reachability.
func MonitorNode(p *core.Process, node types.NodeId) types.MonitorRef {
	return Monitor(p, types.OfNode(node))
}

// MonitorPort monitors a send port's owning process.
func MonitorPort(p *core.Process, port types.SendPortId) types.MonitorRef {
	return Monitor(p, types.OfSendPort(port))
}

// Unmonitor removes ref and blocks until the controller's
// acknowledgement arrives; idempotent, a never-installed or
// already-removed ref still completes normally.
func Unmonitor(p *core.Process, ref types.MonitorRef) {
	p.Controller().Dispatch(monitorDestination(p, ref.Target), types.UnmonitorSignal{
		Ref:     ref,
		ReplyTo: p.Pid(),
	})
	waitFor(p, func(v types.DidUnmonitor) bool { return v.Ref == ref })
}

// Link installs a symmetric link between p and other: each endpoint's
// owning node records the relation (spec's C6 "both live on the node of
// each endpoint"), so a cross-node link dispatches to both.
func Link(p *core.Process, other types.Identifier) {
	self := types.OfProcess(p.Pid())
	sig := types.LinkSignal{A: self, B: other}
	p.Controller().Dispatch(p.Node(), sig)
	if owning := other.OwningNode(); owning != p.Node() {
		p.Controller().Dispatch(owning, sig)
	}
}

// LinkNode links p to a whole node's reachability.
func LinkNode(p *core.Process, node types.NodeId) {
	Link(p, types.OfNode(node))
}

// LinkPort links p to a send port's owning process.
func LinkPort(p *core.Process, port types.SendPortId) {
	Link(p, types.OfSendPort(port))
}

// Unlink removes the link between p and target and blocks until the
// acknowledgement keyed on target arrives. Idempotent, including against
// an already-dead target (spec.md §9 open question).
func Unlink(p *core.Process, target types.Identifier) {
	self := types.OfProcess(p.Pid())
	p.Controller().Dispatch(p.Node(), types.UnlinkSignal{From: self, Target: target, ReplyTo: p.Pid()})
	if owning := target.OwningNode(); owning != p.Node() {
		// Fire-and-forget mirror to the partner's own node: it must
		// forget the relation too, but the caller only waits for one
		// acknowledgement (see core.Controller.onUnlink).
		p.Controller().Dispatch(owning, types.UnlinkSignal{From: self, Target: target})
	}
	waitFor(p, func(v types.DidUnlink) bool { return v.Target == target })
}

// UnlinkNode unlinks p from a whole node.
func UnlinkNode(p *core.Process, node types.NodeId) {
	Unlink(p, types.OfNode(node))
}

// UnlinkPort unlinks p from a send port's owning process.
func UnlinkPort(p *core.Process, port types.SendPortId) {
	Unlink(p, types.OfSendPort(port))
}

// Register installs label -> pid in this node's registry.
func Register(p *core.Process, label string, pid types.ProcessId) {
	p.Controller().Dispatch(p.Node(), types.RegisterSignal{Label: label, Pid: pid})
}

// RegisterRemote installs label -> pid in node's registry.
func RegisterRemote(p *core.Process, node types.NodeId, label string, pid types.ProcessId) {
	p.Controller().Dispatch(node, types.RegisterSignal{Label: label, Pid: pid})
}

// Unregister removes label from this node's registry, if present.
func Unregister(p *core.Process, label string) {
	p.Controller().Dispatch(p.Node(), types.RegisterSignal{Label: label, Remove: true})
}

// UnregisterRemote removes label from node's registry, if present.
func UnregisterRemote(p *core.Process, node types.NodeId, label string) {
	p.Controller().Dispatch(node, types.RegisterSignal{Label: label, Remove: true})
}

func whereIsOn(p *core.Process, node types.NodeId, label string) (types.ProcessId, bool) {
	p.Controller().Dispatch(node, types.WhereIsSignal{Label: label, ReplyTo: p.Pid()})
	reply := waitFor(p, func(v types.WhereIsReply) bool { return v.Label == label })
	return reply.Pid, reply.Found
}

// WhereIs looks up label in this node's registry, blocking for the
// reply.
func WhereIs(p *core.Process, label string) (types.ProcessId, bool) {
	return whereIsOn(p, p.Node(), label)
}

// WhereIsRemote looks up label in node's registry, blocking for the
// reply.
func WhereIsRemote(p *core.Process, node types.NodeId, label string) (types.ProcessId, bool) {
	return whereIsOn(p, node, label)
}

func nsendOn(p *core.Process, node types.NodeId, label string, v interface{}) error {
	envelope, err := types.CreateMessage(v)
	if err != nil {
		return err
	}
	p.Controller().Dispatch(node, types.NamedSendSignal{Label: label, Envelope: envelope})
	return nil
}

// NSend delivers v to whatever process is registered under label on
// this node; an unregistered label silently drops it.
func NSend(p *core.Process, label string, v interface{}) error {
	return nsendOn(p, p.Node(), label, v)
}

// NSendRemote delivers v to whatever process is registered under label
// on node.
func NSendRemote(p *core.Process, node types.NodeId, label string, v interface{}) error {
	return nsendOn(p, node, label, v)
}

// LoggerMessage is the payload Say named-sends to the reserved "logger"
// label. The process registered under that label is an external
// collaborator (spec.md §1 Non-goals); only this wire shape and the
// registration point are specified.
type LoggerMessage struct {
	Timestamp string
	Pid       types.ProcessId
	Text      string
}

// LoggerLabel is the reserved registry label Say targets.
const LoggerLabel = "logger"

// Say named-sends a formatted log line to the reserved "logger" label.
func Say(p *core.Process, s string) error {
	return NSend(p, LoggerLabel, LoggerMessage{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Pid:       p.Pid(),
		Text:      s,
	})
}

// GetSelfPid reads the calling process's own identity.
func GetSelfPid(p *core.Process) types.ProcessId {
	return p.Pid()
}

// GetSelfNode reads the calling process's own node.
func GetSelfNode(p *core.Process) types.NodeId {
	return p.Node()
}

// Terminate raises the distinguished termination condition caught at the
// process boundary (core.Controller.SpawnLocal's recover), ending the
// calling process with reason "killed by self". Must be called from
// within the process's own running computation.
func Terminate() {
	panic(types.ReasonKilledBySelf)
}

// Catch runs f, recovering any panic that is not itself a process
// termination condition and handing it to handler; a Terminate (or a
// propagated linked-death) panic is re-raised so the process boundary
// still observes it. Grounded on the teacher's
// pkg/mcast/core/peer.go:finishMessageProcessing defer/recover
// discipline, generalized from swallowing one known panic into a
// dispatch between "is this a termination condition" and "is this a
// user error".
func Catch(f func(), handler func(recovered interface{})) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(types.Reason); ok {
				panic(r)
			}
			handler(r)
		}
	}()
	f()
}

// SpawnAsync asks node to resolve closure and start a process, blocking
// for the correlated SpawnReply. The resolved computation's execution is
// entirely node's own affair (spec.md §1 Non-goals exclude remote spawn
// execution beyond this initiating side).
func SpawnAsync(p *core.Process, node types.NodeId, closure types.Closure) (types.ProcessId, error) {
	ref := types.SpawnRef(p.NextSpawnCounter())
	p.Controller().Dispatch(node, types.SpawnSignal{Closure: closure, Ref: ref, ReplyTo: p.Pid()})
	reply := waitFor(p, func(v types.SpawnReply) bool { return v.Ref == ref })
	if reply.Err != "" {
		return types.ProcessId{}, errors.New(reply.Err)
	}
	return reply.Pid, nil
}

// UnClosure resolves c through node's resolver and verifies its
// fingerprint against expected, the same check SpawnAsync's target node
// performs on its side of the wire, exposed here for user code that
// deserializes closures directly.
func UnClosure(p *core.Process, c types.Closure, expected interface{}) (interface{}, error) {
	return definition.UnClosure(p.Controller().Resolver(), c, expected)
}
