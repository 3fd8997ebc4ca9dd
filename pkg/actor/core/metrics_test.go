package core

import (
	"testing"

	"github.com/prometheus/common/model"
)

func Test_Metrics_SnapshotReflectsGauges(t *testing.T) {
	m := NewMetrics()
	m.SetMailboxDepth(3)
	m.IncControllerBacklog(5)
	m.IncControllerBacklog(-2)
	m.SetMonitorCount(2)
	m.SetLinkCount(1)

	samples := m.Snapshot("n1")
	byName := make(map[string]int64, len(samples))
	for _, s := range samples {
		byName[string(s.Metric[model.MetricNameLabel])] = int64(s.Value)
	}

	if byName["actor_mailbox_depth"] != 3 {
		t.Errorf("expected mailbox depth 3, got %d", byName["actor_mailbox_depth"])
	}
	if byName["actor_controller_backlog"] != 3 {
		t.Errorf("expected controller backlog 3, got %d", byName["actor_controller_backlog"])
	}
	if byName["actor_live_monitors"] != 2 {
		t.Errorf("expected live monitors 2, got %d", byName["actor_live_monitors"])
	}
	if byName["actor_live_links"] != 1 {
		t.Errorf("expected live links 1, got %d", byName["actor_live_links"])
	}
}
