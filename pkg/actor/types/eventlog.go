package types

import (
	"encoding/json"
	"fmt"
)

// EventLogEntry is the payload appended for every monitor, unmonitor,
// link, unlink, register, unregister, whereis, named-send and spawn
// signal the node controller processes, before being serialized into a
// StorageEntry's Value. Death signals are not recorded.
type EventLogEntry struct {
	Operation Operation `json:"operation"`
	Detail    string    `json:"detail"`
	Sequence  uint64    `json:"sequence"`
}

// EventLog commits the node controller's control-plane decisions into a
// Storage, and can replay them back out for diagnostics. Adapted from
// the teacher's InMemoryStateMachine: same Commit/Restore shape, but
// committing supervision/registry decisions instead of replicated
// multicast entries.
type EventLog struct {
	store   Storage
	counter Counter
}

// NewEventLog constructs an EventLog backed by the given Storage.
func NewEventLog(store Storage) *EventLog {
	return &EventLog{store: store}
}

// Record appends a single control-plane decision to the log.
func (e *EventLog) Record(op Operation, detail string) error {
	seq := e.counter.Next()
	entry := EventLogEntry{Operation: op, Detail: detail, Sequence: seq}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling event log entry: %w", err)
	}
	return e.store.Set(StorageEntry{Key: seq, Type: op, Value: data})
}

// Replay returns every recorded decision in append order, for
// diagnostics. It never influences mailbox or controller behavior --
// the log is read-only once written.
func (e *EventLog) Replay() ([]EventLogEntry, error) {
	raw, err := e.store.Get()
	if err != nil {
		return nil, fmt.Errorf("reading event log storage: %w", err)
	}
	entries := make([]EventLogEntry, 0, len(raw))
	for _, stored := range raw {
		var entry EventLogEntry
		if err := json.Unmarshal(stored.Value, &entry); err != nil {
			return nil, fmt.Errorf("unmarshalling event log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
