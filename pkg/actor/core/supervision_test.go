package core

import (
	"testing"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

func pid(node string, local uint64) types.ProcessId {
	return types.ProcessId{Node: types.NodeId(node), Local: types.LocalProcessId(local)}
}

func Test_SupervisionGraph_MonitorFiresOnDeath(t *testing.T) {
	g := NewSupervisionGraph()
	watcher := pid("n1", 1)
	target := types.OfProcess(pid("n1", 2))
	ref := types.MonitorRef{Target: target, Counter: 1}

	g.AddMonitor(MonitorEntry{Ref: ref, Watcher: watcher, Target: target})

	toNotify, links := g.OnDeath(target)
	if len(links) != 0 {
		t.Errorf("expected no link partners, got %d", len(links))
	}
	if len(toNotify) != 1 || toNotify[0].Ref != ref {
		t.Fatalf("expected exactly one notification for ref %v, got %v", ref, toNotify)
	}

	if len(g.MonitorsOf(target)) != 0 {
		t.Error("expected monitor to be removed from the graph after firing")
	}
}

func Test_SupervisionGraph_RemoveMonitorIsIdempotent(t *testing.T) {
	g := NewSupervisionGraph()
	ref := types.MonitorRef{Target: types.OfProcess(pid("n1", 1)), Counter: 1}

	if g.RemoveMonitor(ref) {
		t.Error("expected removing a never-installed ref to report false")
	}

	g.AddMonitor(MonitorEntry{Ref: ref, Watcher: pid("n1", 2), Target: ref.Target})
	if !g.RemoveMonitor(ref) {
		t.Error("expected removing a live ref to report true")
	}
	if g.RemoveMonitor(ref) {
		t.Error("expected a second removal of the same ref to report false")
	}
}

func Test_SupervisionGraph_LinkDeathNotifiesSurvivor(t *testing.T) {
	g := NewSupervisionGraph()
	a := types.OfProcess(pid("n1", 1))
	b := types.OfProcess(pid("n1", 2))
	g.AddLink(a, b)

	_, partners := g.OnDeath(a)
	if len(partners) != 1 || partners[0].String() != b.String() {
		t.Fatalf("expected b to be notified of a's death, got %v", partners)
	}
	if len(g.LinksOf(b)) != 0 {
		t.Error("expected the link to be removed from b's side after a's death")
	}
}

func Test_SupervisionGraph_RemoveLinkIsIdempotent(t *testing.T) {
	g := NewSupervisionGraph()
	a := types.OfProcess(pid("n1", 1))
	b := types.OfProcess(pid("n1", 2))

	if g.RemoveLink(a, b) {
		t.Error("expected removing a never-installed link to report false")
	}
	g.AddLink(a, b)
	if !g.RemoveLink(a, b) {
		t.Error("expected removing a live link to report true")
	}
	if g.RemoveLink(a, b) {
		t.Error("expected a second removal to report false")
	}
}

func Test_SupervisionGraph_DeadWatcherMonitorsAreDropped(t *testing.T) {
	g := NewSupervisionGraph()
	watcher := pid("n1", 1)
	target := types.OfProcess(pid("n1", 2))
	ref := types.MonitorRef{Target: target, Counter: 1}
	g.AddMonitor(MonitorEntry{Ref: ref, Watcher: watcher, Target: target})

	g.OnDeath(types.OfProcess(watcher))

	if len(g.MonitorsOf(target)) != 0 {
		t.Error("expected a dead watcher's monitor registrations to be removed")
	}
}
