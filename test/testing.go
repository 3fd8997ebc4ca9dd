// Package test holds the support helpers integration and fuzzy tests
// build on, mirroring the teacher's test/testing.go: a deterministic
// Invoker, a cluster builder, and a couple of small waiting helpers.
package test

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jabolina/go-actor/pkg/actor"
	"github.com/jabolina/go-actor/pkg/actor/core"
	"github.com/jabolina/go-actor/pkg/actor/definition"
	"github.com/jabolina/go-actor/pkg/actor/types"
)

// TestInvoker is the teacher's own Invoker shape (test/testing.go in the
// teacher repo): goroutines routed through a WaitGroup so a test can
// deterministically wait for every one it spawned to finish, instead of
// leaking them past the test's own lifetime.
type TestInvoker struct {
	group *sync.WaitGroup
}

func (t *TestInvoker) Spawn(f func()) {
	t.group.Add(1)
	go func() {
		defer t.group.Done()
		f()
	}()
}

func (t *TestInvoker) Stop() {
	t.group.Wait()
}

// NewInvoker constructs a fresh TestInvoker.
func NewInvoker() core.Invoker {
	return &TestInvoker{group: &sync.WaitGroup{}}
}

// LoopbackNetwork is an in-memory stand-in for the transport, connecting
// every LoopbackTransport registered under it directly by NodeId. It
// exists because the reference transport needs a live relt exchange,
// which a unit test has no business standing up -- this plays the same
// role the teacher's tests get for free from a single-process
// TCPTransport bound to loopback, but without the actual socket.
type LoopbackNetwork struct {
	mutex sync.Mutex
	nodes map[types.NodeId]*LoopbackTransport
}

// NewLoopbackNetwork constructs an empty network.
func NewLoopbackNetwork() *LoopbackNetwork {
	return &LoopbackNetwork{nodes: make(map[types.NodeId]*LoopbackTransport)}
}

// Factory returns an actor.TransportFactory bound to this network, for
// use as NodeConfiguration.Transport in tests.
func (n *LoopbackNetwork) Factory() actor.TransportFactory {
	return func(self types.NodeId, _ types.Logger, _ core.Invoker) (core.Transport, error) {
		t := &LoopbackTransport{self: self, network: n, inbox: make(chan core.WireMessage, 256)}
		n.mutex.Lock()
		n.nodes[self] = t
		n.mutex.Unlock()
		return t, nil
	}
}

func (n *LoopbackNetwork) route(node types.NodeId, wire core.WireMessage) error {
	n.mutex.Lock()
	target, ok := n.nodes[node]
	n.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeUnreachable, node)
	}
	select {
	case target.inbox <- wire:
		return nil
	default:
		return fmt.Errorf("%w: %s inbox full", types.ErrNodeUnreachable, node)
	}
}

// LoopbackTransport implements core.Transport by routing directly
// through its owning LoopbackNetwork instead of any real wire.
type LoopbackTransport struct {
	self    types.NodeId
	network *LoopbackNetwork
	inbox   chan core.WireMessage
	closed  bool
	mutex   sync.Mutex
}

func (l *LoopbackTransport) SendToNode(nid types.NodeId, envelope types.Envelope) error {
	return l.network.route(nid, core.WireMessage{Destination: types.OfNode(nid), Envelope: envelope})
}

func (l *LoopbackTransport) SendToProcess(pid types.ProcessId, envelope types.Envelope) error {
	return l.network.route(pid.Node, core.WireMessage{Destination: types.OfProcess(pid), Envelope: envelope})
}

func (l *LoopbackTransport) SendToPort(port types.SendPortId, envelope types.Envelope) error {
	return l.network.route(port.Owner.Node, core.WireMessage{Destination: types.OfSendPort(port), Envelope: envelope})
}

func (l *LoopbackTransport) Listen() <-chan core.WireMessage {
	return l.inbox
}

func (l *LoopbackTransport) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if !l.closed {
		l.closed = true
		close(l.inbox)
	}
	return nil
}

// Cluster is a fixed-size set of Nodes sharing one LoopbackNetwork and
// one closure Resolver, the direct analogue of the teacher's
// UnityCluster.
type Cluster struct {
	T     *testing.T
	Names []types.NodeId
	Nodes []*actor.Node

	network *LoopbackNetwork
	mutex   sync.Mutex
	index   int
}

// CreateCluster builds size Nodes named prefix-0..prefix-(size-1), wired
// to the same loopback network and the same Resolver so a spawn closure
// registered on one is resolvable by every member.
func CreateCluster(size int, prefix string, t *testing.T) *Cluster {
	network := NewLoopbackNetwork()
	resolver := definition.NewStaticResolver()
	names := make([]types.NodeId, size)
	nodes := make([]*actor.Node, size)
	for i := 0; i < size; i++ {
		name := types.NodeId(fmt.Sprintf("%s-%d", prefix, i))
		names[i] = name
		node, err := actor.NewNode(&actor.NodeConfiguration{
			Name:      name,
			Version:   "1.0.0",
			Transport: network.Factory(),
			Invoker:   NewInvoker(),
			Resolver:  resolver,
		})
		if err != nil {
			t.Fatalf("failed creating node %s: %v", name, err)
		}
		nodes[i] = node
	}
	return &Cluster{T: t, Names: names, Nodes: nodes, network: network}
}

// Next round-robins over the cluster's Nodes, for tests that don't care
// which member handles a given step.
func (c *Cluster) Next() *actor.Node {
	c.mutex.Lock()
	defer func() {
		c.index++
		c.mutex.Unlock()
	}()
	if c.index >= len(c.Nodes) {
		c.index = 0
	}
	return c.Nodes[c.index]
}

// Off shuts down every Node in the cluster concurrently and waits for
// all of them.
func (c *Cluster) Off() {
	var group sync.WaitGroup
	for _, node := range c.Nodes {
		group.Add(1)
		go func(n *actor.Node) {
			defer group.Done()
			if err := n.Shutdown(); err != nil {
				c.T.Errorf("failed shutting down node %s: %v", n.Id(), err)
			}
		}(node)
	}
	group.Wait()
}

// PrintStackTrace dumps every goroutine's stack to the test log, for
// diagnosing a hung shutdown.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}

// WaitThisOrTimeout runs cb on its own goroutine and reports whether it
// finished before duration elapsed.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
