// Package actor is the top-level orchestration surface: it wires a
// Node's controller, transport, resolver, and logger together (the role
// the teacher's Unity played for a multicast group) and exposes the
// primitive surface of spec.md's C8 as package-level functions operating
// over a *core.Process.
package actor

import (
	"fmt"

	"github.com/jabolina/go-actor/pkg/actor/core"
	"github.com/jabolina/go-actor/pkg/actor/definition"
	"github.com/jabolina/go-actor/pkg/actor/types"
	"github.com/prometheus/common/model"
)

// wireVersion is this build's protocol version, compared against a
// remote node's advertised version before its control signals are
// trusted (types.CheckWireVersion).
const wireVersion = "1.0.0"

// TransportFactory builds the Transport a Node uses for inter-node
// delivery. The default, RemoteTransportFactory, wraps jabolina/relt;
// tests substitute an in-memory fake.
type TransportFactory func(self types.NodeId, log types.Logger, invoker core.Invoker) (core.Transport, error)

// RemoteTransportFactory is the reference TransportFactory, grounded on
// core.NewRemoteTransport.
func RemoteTransportFactory(self types.NodeId, log types.Logger, invoker core.Invoker) (core.Transport, error) {
	return core.NewRemoteTransport(self, log, invoker)
}

// NodeConfiguration generalizes the teacher's BaseConfiguration/
// ClusterConfiguration pair (constructed via DefaultConfiguration(name)
// in its tests) into the handful of knobs a Node needs: identity,
// protocol version, and the ambient-stack collaborators. Name and Version
// are required; every collaborator field left zero is filled with a
// default by NewNode. Bootstrap/CLI parsing
// of this configuration is explicitly out of scope (spec.md §1
// Non-goals); it is always built programmatically by the embedding
// application.
type NodeConfiguration struct {
	Name      types.NodeId
	Version   string
	Logger    types.Logger
	Storage   types.Storage
	Transport TransportFactory
	Invoker   core.Invoker
	Resolver  *definition.StaticResolver
}

// DefaultConfiguration returns a NodeConfiguration for name with every
// ambient collaborator defaulted, mirroring the convenience the
// teacher's test helpers get from mcast.DefaultConfiguration.
func DefaultConfiguration(name string) *NodeConfiguration {
	return &NodeConfiguration{
		Name:    types.NodeId(name),
		Version: wireVersion,
	}
}

// Node is a single node's runtime: a controller owning the supervision
// graph and registry, the transport it listens on, and the resolver used
// to land spawned closures. It is the direct analogue of the teacher's
// Unity, generalized from a replicated-group participant to an actor
// runtime node.
type Node struct {
	id            types.NodeId
	version       types.WireVersion
	log           types.Logger
	resolver      *definition.StaticResolver
	eventLog      *types.EventLog
	metrics       *core.Metrics
	invoker       core.Invoker
	transport     core.Transport
	controller    *core.Controller
	configuration *NodeConfiguration
}

// NewNode constructs and starts a Node from configuration, defaulting
// every ambient collaborator left unset.
func NewNode(configuration *NodeConfiguration) (*Node, error) {
	if configuration.Name == "" {
		return nil, fmt.Errorf("node configuration requires a non-empty Name")
	}
	version, err := types.NewWireVersion(configuration.Version)
	if err != nil {
		return nil, fmt.Errorf("constructing node %s: %w", configuration.Name, err)
	}

	log := configuration.Logger
	if log == nil {
		log = definition.NewDefaultLogger(map[string]interface{}{"node": string(configuration.Name)})
	}
	storage := configuration.Storage
	if storage == nil {
		storage = definition.NewInMemoryStorage()
	}
	resolver := configuration.Resolver
	if resolver == nil {
		resolver = definition.NewStaticResolver()
	}
	invoker := configuration.Invoker
	if invoker == nil {
		invoker = core.InvokerInstance()
	}
	factory := configuration.Transport
	if factory == nil {
		factory = RemoteTransportFactory
	}

	transport, err := factory(configuration.Name, log, invoker)
	if err != nil {
		return nil, fmt.Errorf("constructing node %s transport: %w", configuration.Name, err)
	}

	eventLog := types.NewEventLog(storage)
	metrics := core.NewMetrics()
	controller := core.NewController(configuration.Name, version, transport, resolver, log, eventLog, metrics, invoker)

	return &Node{
		id:            configuration.Name,
		version:       version,
		log:           log,
		resolver:      resolver,
		eventLog:      eventLog,
		metrics:       metrics,
		invoker:       invoker,
		transport:     transport,
		controller:    controller,
		configuration: configuration,
	}, nil
}

// Id reports this node's identity.
func (n *Node) Id() types.NodeId {
	return n.id
}

// Version reports this node's wire protocol version.
func (n *Node) Version() types.WireVersion {
	return n.version
}

// Resolver exposes the closure resolver so the embedding application can
// register spawnable EntryPoints under a label before accepting Spawn
// requests naming them.
func (n *Node) Resolver() *definition.StaticResolver {
	return n.resolver
}

// Metrics renders the node's current gauges as Prometheus exposition
// samples.
func (n *Node) Metrics() model.Vector {
	return n.metrics.Snapshot(string(n.id))
}

// EventLog replays every control-plane decision this node's controller
// has processed, for diagnostics.
func (n *Node) EventLog() ([]types.EventLogEntry, error) {
	return n.eventLog.Replay()
}

// Spawn starts entry on a freshly minted local process and returns its
// context -- the direct, non-closure-resolved spawn path (the resolved
// path is Spawn/1's remote counterpart, SpawnAsync, in primitives.go).
func (n *Node) Spawn(entry core.EntryPoint) *core.Process {
	return n.controller.SpawnLocal(entry)
}

// Controller exposes the node's controller. The primitives in
// primitives.go reach it through core.Process.Controller instead.
func (n *Node) Controller() *core.Controller {
	return n.controller
}

// Shutdown stops the controller's dispatch loop, closes the transport,
// and waits for every goroutine spawned through this node's Invoker to
// return.
func (n *Node) Shutdown() error {
	n.controller.Shutdown()
	err := n.transport.Close()
	n.invoker.Stop()
	return err
}
