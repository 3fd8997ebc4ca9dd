package core

import (
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// MonitorEntry is a single live monitor registration: watcher observes
// target's death and will be notified via ref.
type MonitorEntry struct {
	Ref     types.MonitorRef
	Watcher types.ProcessId
	Target  types.Identifier
}

// SupervisionGraph holds the two live relations named by the data model:
// Monitors (watcher -> set of (ref, target)) and Links (an unordered
// set of endpoint pairs). It is exclusively owned and mutated by the
// node controller's single-writer loop -- the mutex here only guards
// against diagnostic reads from other goroutines (e.g. metrics), never
// against concurrent writers, since there is exactly one.
type SupervisionGraph struct {
	mu sync.Mutex

	// monitorsByTarget indexes live monitors by the identifier string of
	// their target, for O(live monitors on E) lookup on E's death.
	monitorsByTarget map[string][]MonitorEntry

	// monitorsByRef indexes the same entries by ref for Unmonitor.
	monitorsByRef map[types.MonitorRef]MonitorEntry

	// links is an adjacency map: both directions recorded so either
	// endpoint's death finds the relation.
	links map[string]map[string]types.Identifier
}

// NewSupervisionGraph constructs an empty graph.
func NewSupervisionGraph() *SupervisionGraph {
	return &SupervisionGraph{
		monitorsByTarget: make(map[string][]MonitorEntry),
		monitorsByRef:    make(map[types.MonitorRef]MonitorEntry),
		links:            make(map[string]map[string]types.Identifier),
	}
}

// AddMonitor installs entry into the graph.
func (g *SupervisionGraph) AddMonitor(entry MonitorEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := entry.Target.String()
	g.monitorsByTarget[key] = append(g.monitorsByTarget[key], entry)
	g.monitorsByRef[entry.Ref] = entry
}

// RemoveMonitor removes the monitor registered under ref, if any, and
// reports whether it was present. Unknown refs are a no-op, not an
// error -- Unmonitor is idempotent at the graph level.
func (g *SupervisionGraph) RemoveMonitor(ref types.MonitorRef) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.monitorsByRef[ref]
	if !ok {
		return false
	}
	delete(g.monitorsByRef, ref)
	key := entry.Target.String()
	list := g.monitorsByTarget[key]
	for i, e := range list {
		if e.Ref == ref {
			g.monitorsByTarget[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(g.monitorsByTarget[key]) == 0 {
		delete(g.monitorsByTarget, key)
	}
	return true
}

// MonitorsOf returns every live monitor watching target, a copy safe for
// the caller to range over while the graph continues mutating.
func (g *SupervisionGraph) MonitorsOf(target types.Identifier) []MonitorEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := g.monitorsByTarget[target.String()]
	out := make([]MonitorEntry, len(list))
	copy(out, list)
	return out
}

// AddLink installs a symmetric link between a and b.
func (g *SupervisionGraph) AddLink(a, b types.Identifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.linkLocked(a, b)
	g.linkLocked(b, a)
}

func (g *SupervisionGraph) linkLocked(from, to types.Identifier) {
	key := from.String()
	if g.links[key] == nil {
		g.links[key] = make(map[string]types.Identifier)
	}
	g.links[key][to.String()] = to
}

// RemoveLink removes the symmetric link between a and b and reports
// whether it was present on either side. Idempotent: unlinking an
// already-dead or never-linked target still succeeds.
func (g *SupervisionGraph) RemoveLink(a, b types.Identifier) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := g.unlinkLocked(a, b)
	removed = g.unlinkLocked(b, a) || removed
	return removed
}

func (g *SupervisionGraph) unlinkLocked(from, to types.Identifier) bool {
	key := from.String()
	peers, ok := g.links[key]
	if !ok {
		return false
	}
	toKey := to.String()
	if _, ok := peers[toKey]; !ok {
		return false
	}
	delete(peers, toKey)
	if len(peers) == 0 {
		delete(g.links, key)
	}
	return true
}

// LinkCount reports the number of live link edges, each a<->b pair
// counted once despite being stored symmetrically under both endpoints.
func (g *SupervisionGraph) LinkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, peers := range g.links {
		total += len(peers)
	}
	return total / 2
}

// LinksOf returns every live link partner of endpoint.
func (g *SupervisionGraph) LinksOf(endpoint types.Identifier) []types.Identifier {
	g.mu.Lock()
	defer g.mu.Unlock()
	peers := g.links[endpoint.String()]
	out := make([]types.Identifier, 0, len(peers))
	for _, id := range peers {
		out = append(out, id)
	}
	return out
}

// OnDeath reports every monitor that must fire and every link partner
// that must be notified for dead's death, and removes all graph entries
// touching dead (as a monitor target, as a link endpoint, and as a
// monitor watcher, since a dead watcher can never consume a
// notification anyway).
func (g *SupervisionGraph) OnDeath(dead types.Identifier) (toNotify []MonitorEntry, linkPartners []types.Identifier) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := dead.String()
	toNotify = append(toNotify, g.monitorsByTarget[key]...)
	delete(g.monitorsByTarget, key)
	for _, e := range toNotify {
		delete(g.monitorsByRef, e.Ref)
	}

	peers := g.links[key]
	for _, id := range peers {
		linkPartners = append(linkPartners, id)
		g.unlinkLocked(id, dead)
	}
	delete(g.links, key)

	if dead.Kind == types.ProcessIdentifier {
		g.removeWatcherLocked(dead.Pid)
	}
	return toNotify, linkPartners
}

// removeWatcherLocked drops every monitor installed by watcher, since a
// dead watcher cannot observe anything anymore. Must be called with mu
// held.
func (g *SupervisionGraph) removeWatcherLocked(watcher types.ProcessId) {
	for targetKey, list := range g.monitorsByTarget {
		filtered := list[:0]
		for _, e := range list {
			if e.Watcher == watcher {
				delete(g.monitorsByRef, e.Ref)
				continue
			}
			filtered = append(filtered, e)
		}
		if len(filtered) == 0 {
			delete(g.monitorsByTarget, targetKey)
		} else {
			g.monitorsByTarget[targetKey] = filtered
		}
	}
}
