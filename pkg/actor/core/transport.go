package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jabolina/go-actor/pkg/actor/types"
	"github.com/jabolina/relt/pkg/relt"
)

// WireMessage is the framed unit the Transport moves between nodes: a
// destination identifier plus the opaque envelope/control bytes bound
// for it, mirroring spec's "Incoming: a stream of (destination, bytes)
// tuples routed to the controller or to the appropriate mailbox."
type WireMessage struct {
	Destination types.Identifier
	Envelope    types.Envelope
}

// Transport is the external collaborator this module depends on but does
// not itself implement beyond a reference: reliable, per-(sender,
// receiver) ordered delivery of opaque byte envelopes between nodes.
type Transport interface {
	// SendToNode frames and delivers a controller-bound message to nid.
	SendToNode(nid types.NodeId, envelope types.Envelope) error

	// SendToProcess delivers envelope to a remote process's mailbox.
	SendToProcess(pid types.ProcessId, envelope types.Envelope) error

	// SendToPort delivers envelope to a remote typed channel.
	SendToPort(port types.SendPortId, envelope types.Envelope) error

	// Listen returns the stream of WireMessages arriving from any peer.
	Listen() <-chan WireMessage

	// Close releases the underlying transport resources.
	Close() error
}

// RemoteTransport is the reference Transport implementation, wrapping
// jabolina/relt's reliable group broadcast exactly as the teacher's
// ReliableTransport wraps it for partition broadcast -- generalized here
// to frame arbitrary node/process/port destinations instead of a fixed
// multicast partition.
type RemoteTransport struct {
	log      types.Logger
	relt     *relt.Relt
	producer chan WireMessage
	context  context.Context
	finish   context.CancelFunc
	self     types.NodeId
}

// NewRemoteTransport builds a RemoteTransport bound to self's address,
// exchanging over the group named by self (mirroring the teacher's
// conf.Exchange = relt.GroupAddress(peer.Partition)).
func NewRemoteTransport(self types.NodeId, log types.Logger, invoker Invoker) (*RemoteTransport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = string(self)
	conf.Exchange = relt.GroupAddress(self)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, fmt.Errorf("constructing relt transport: %w", err)
	}
	ctx, done := context.WithCancel(context.Background())
	t := &RemoteTransport{
		log:      log,
		relt:     r,
		producer: make(chan WireMessage, 128),
		context:  ctx,
		finish:   done,
		self:     self,
	}
	invoker.Spawn(t.poll)
	return t, nil
}

func (r *RemoteTransport) apply(node types.NodeId, message WireMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshalling wire message: %w", err)
	}
	return r.relt.Broadcast(r.context, relt.Send{
		Address: relt.GroupAddress(node),
		Data:    data,
	})
}

func (r *RemoteTransport) SendToNode(nid types.NodeId, envelope types.Envelope) error {
	return r.apply(nid, WireMessage{Destination: types.OfNode(nid), Envelope: envelope})
}

func (r *RemoteTransport) SendToProcess(pid types.ProcessId, envelope types.Envelope) error {
	return r.apply(pid.Node, WireMessage{Destination: types.OfProcess(pid), Envelope: envelope})
}

func (r *RemoteTransport) SendToPort(port types.SendPortId, envelope types.Envelope) error {
	return r.apply(port.Owner.Node, WireMessage{Destination: types.OfSendPort(port), Envelope: envelope})
}

func (r *RemoteTransport) Listen() <-chan WireMessage {
	return r.producer
}

func (r *RemoteTransport) Close() error {
	r.finish()
	return r.relt.Close()
}

// poll keeps consuming from the underlying relt listener until the
// transport context is cancelled, mirroring the teacher's poll/consume
// split in core/transport.go.
func (r *RemoteTransport) poll() {
	listener, err := r.relt.Consume()
	if err != nil {
		r.log.Errorf("remote transport %s failed starting consume: %v", r.self, err)
		return
	}
	for {
		select {
		case <-r.context.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			r.consume(recv.Origin, relt.Recv{Data: recv.Data, Error: recv.Error})
		}
	}
}

func (r *RemoteTransport) consume(origin string, recv relt.Recv) {
	if recv.Error != nil {
		r.log.Errorf("%s: failed consuming message from %s: %v", r.self, origin, recv.Error)
		return
	}
	if recv.Data == nil {
		r.log.Warnf("%s: received empty message from %s", r.self, origin)
		return
	}
	var message WireMessage
	if err := json.Unmarshal(recv.Data, &message); err != nil {
		r.log.Errorf("%s: failed unmarshalling message from %s: %v", r.self, origin, err)
		return
	}
	timeout, cancel := context.WithTimeout(r.context, 250*time.Millisecond)
	defer cancel()
	select {
	case <-timeout.Done():
		r.log.Warnf("%s: dropped message from %s, consumer too slow", r.self, origin)
	case r.producer <- message:
	}
}
