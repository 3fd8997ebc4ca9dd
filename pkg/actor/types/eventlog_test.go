package types

import "testing"

type memoryStorage struct {
	entries []StorageEntry
}

func (m *memoryStorage) Set(entry StorageEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryStorage) Get() ([]StorageEntry, error) {
	return m.entries, nil
}

func Test_EventLog_RecordAndReplayPreservesOrder(t *testing.T) {
	log := NewEventLog(&memoryStorage{})
	if err := log.Record(OpMonitor, "watcher-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := log.Record(OpLink, "a<->b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := log.Replay()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != OpMonitor || entries[0].Detail != "watcher-a" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Operation != OpLink || entries[1].Detail != "a<->b" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	if entries[0].Sequence >= entries[1].Sequence {
		t.Error("expected strictly increasing sequence numbers")
	}
}
