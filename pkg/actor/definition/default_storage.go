package definition

import (
	"sync"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

// InMemoryStorage is the default types.Storage backing a node's
// EventLog: a mutex-guarded append-only slice, mirroring the teacher's
// in-memory default rather than anything disk-backed.
type InMemoryStorage struct {
	mutex   sync.Mutex
	entries []types.StorageEntry
}

// NewInMemoryStorage constructs an empty InMemoryStorage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{}
}

func (s *InMemoryStorage) Set(entry types.StorageEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStorage) Get() ([]types.StorageEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]types.StorageEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
