package definition

import (
	"fmt"
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// StaticResolver is a default types.Resolver backed by a fixed table of
// label -> factory functions, registered ahead of time by the embedding
// application -- the closest in-process analogue to a static symbol
// table without an actual serialization format.
type StaticResolver struct {
	mutex   sync.RWMutex
	symbols map[string]func(env []byte) (interface{}, error)
}

// NewStaticResolver constructs an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		symbols: make(map[string]func(env []byte) (interface{}, error)),
	}
}

// Register installs a factory under label, replacing any prior entry.
func (s *StaticResolver) Register(label string, factory func(env []byte) (interface{}, error)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.symbols[label] = factory
}

// Resolve implements types.Resolver.
func (s *StaticResolver) Resolve(label string, env []byte) (interface{}, bool) {
	s.mutex.RLock()
	factory, ok := s.symbols[label]
	s.mutex.RUnlock()
	if !ok {
		return nil, false
	}
	v, err := factory(env)
	if err != nil {
		return nil, false
	}
	return v, true
}

// UnClosure resolves a Closure through a Resolver and verifies the
// result's fingerprint matches expected, surfacing the two user-visible
// failures named by this module's error-handling design: an
// unregistered label, or a fingerprint mismatch on the resolved value.
func UnClosure(resolver types.Resolver, c types.Closure, expected interface{}) (interface{}, error) {
	v, ok := resolver.Resolve(c.Label, c.Env)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrClosureNotFound, c.Label)
	}
	if types.FingerprintOf(v) != types.FingerprintOf(expected) {
		return nil, fmt.Errorf("%w: closure %s", types.ErrClosureTypeMismatch, c.Label)
	}
	return v, nil
}
