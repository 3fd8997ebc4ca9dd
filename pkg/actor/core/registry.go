package core

import (
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// Registry is the controller-owned label -> ProcessId map for one node,
// plus the reverse ProcessId -> labels index used to garbage-collect
// registrations on process death.
type Registry struct {
	mu      sync.Mutex
	byLabel map[string]types.ProcessId
	byPid   map[types.ProcessId]map[string]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byLabel: make(map[string]types.ProcessId),
		byPid:   make(map[types.ProcessId]map[string]struct{}),
	}
}

// Register installs label -> pid, replacing any process previously
// registered under label (and removing label from that process's
// reverse index).
func (r *Registry) Register(label string, pid types.ProcessId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, ok := r.byLabel[label]; ok {
		if labels, ok := r.byPid[prior]; ok {
			delete(labels, label)
		}
	}
	r.byLabel[label] = pid
	if r.byPid[pid] == nil {
		r.byPid[pid] = make(map[string]struct{})
	}
	r.byPid[pid][label] = struct{}{}
}

// Unregister removes label, if present.
func (r *Registry) Unregister(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.byLabel[label]
	if !ok {
		return
	}
	delete(r.byLabel, label)
	if labels, ok := r.byPid[pid]; ok {
		delete(labels, label)
		if len(labels) == 0 {
			delete(r.byPid, pid)
		}
	}
}

// WhereIs looks up label, returning (pid, true) if registered.
func (r *Registry) WhereIs(label string) (types.ProcessId, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.byLabel[label]
	return pid, ok
}

// OnDeath removes every label registered to pid, returning them for
// diagnostics/logging.
func (r *Registry) OnDeath(pid types.ProcessId) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	labels, ok := r.byPid[pid]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(labels))
	for label := range labels {
		out = append(out, label)
		delete(r.byLabel, label)
	}
	delete(r.byPid, pid)
	return out
}
