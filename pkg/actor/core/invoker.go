package core

import "sync"

// Invoker spawns and tracks the goroutines backing a node's processes,
// controller loop, and transport pump. Routing every goroutine spawn
// through this interface -- rather than calling `go` directly -- is
// what lets tests swap in a WaitGroup-backed invoker and deterministically
// wait for every spawned goroutine to finish, the same pattern the
// teacher uses for its Peer and ReliableTransport.
type Invoker interface {
	// Spawn runs f on a new goroutine.
	Spawn(f func())

	// Stop blocks until every goroutine spawned by this Invoker has
	// returned.
	Stop()
}

type defaultInvoker struct {
	group sync.WaitGroup
}

func (d *defaultInvoker) Spawn(f func()) {
	d.group.Add(1)
	go func() {
		defer d.group.Done()
		f()
	}()
}

func (d *defaultInvoker) Stop() {
	d.group.Wait()
}

var singleton = &defaultInvoker{}

// InvokerInstance returns the process-wide default Invoker, matching the
// teacher's package-level singleton used by Peer and ReliableTransport.
// Tests that need deterministic shutdown construct their own Invoker
// instead (see the `test` package's TestInvoker).
func InvokerInstance() Invoker {
	return singleton
}
