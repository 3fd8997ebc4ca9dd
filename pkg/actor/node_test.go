package actor

import (
	"testing"

	"github.com/jabolina/go-actor/pkg/actor/core"
	"github.com/jabolina/go-actor/pkg/actor/types"
)

// noopTransport is a single-node fake used by this package's own tests:
// it never needs to reach another node, so every send is a no-op that
// reports the node unreachable, exactly as a real transport would for a
// node no peer is listening on.
type noopTransport struct {
	inbox chan core.WireMessage
}

func newNoopTransport() *noopTransport {
	return &noopTransport{inbox: make(chan core.WireMessage)}
}

func (n *noopTransport) SendToNode(types.NodeId, types.Envelope) error       { return types.ErrNodeUnreachable }
func (n *noopTransport) SendToProcess(types.ProcessId, types.Envelope) error { return types.ErrNodeUnreachable }
func (n *noopTransport) SendToPort(types.SendPortId, types.Envelope) error   { return types.ErrNodeUnreachable }
func (n *noopTransport) Listen() <-chan core.WireMessage                    { return n.inbox }
func (n *noopTransport) Close() error                                       { return nil }

func testNode(t *testing.T, name string) *Node {
	t.Helper()
	node, err := NewNode(&NodeConfiguration{
		Name:    types.NodeId(name),
		Version: "1.0.0",
		Transport: func(types.NodeId, types.Logger, core.Invoker) (core.Transport, error) {
			return newNoopTransport(), nil
		},
	})
	if err != nil {
		t.Fatalf("failed creating node: %v", err)
	}
	return node
}

func Test_NewNode_RejectsEmptyName(t *testing.T) {
	_, err := NewNode(&NodeConfiguration{Version: "1.0.0"})
	if err == nil {
		t.Error("expected empty-name configuration to fail")
	}
}

func Test_NewNode_RejectsInvalidVersion(t *testing.T) {
	_, err := NewNode(&NodeConfiguration{Name: "n1", Version: "not-a-version"})
	if err == nil {
		t.Error("expected an invalid version string to fail construction")
	}
}

func Test_Node_SpawnRegistersProcess(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	started := make(chan struct{})
	proc := node.Spawn(func(p *core.Process) {
		close(started)
		<-p.Done()
	})

	<-started
	if proc.Node() != node.Id() {
		t.Errorf("expected spawned process's node to be %s, got %s", node.Id(), proc.Node())
	}
	proc.Terminate(types.ReasonKilledBySelf)
}

func Test_Node_EventLogRecordsControlPlaneActivity(t *testing.T) {
	node := testNode(t, "n1")
	defer node.Shutdown()

	done := make(chan struct{})
	node.Spawn(func(p *core.Process) {
		defer close(done)
		Register(p, "worker", p.Pid())
		if _, ok := WhereIs(p, "worker"); !ok {
			t.Error("expected to find self under the registered label")
		}
	})
	<-done

	entries, err := node.EventLog()
	if err != nil {
		t.Fatalf("unexpected error replaying event log: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected register/whereis activity to be recorded in the event log")
	}
}
