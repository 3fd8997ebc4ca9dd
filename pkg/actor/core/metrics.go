package core

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/common/model"
)

// Metrics tracks the handful of gauges useful for operating a node:
// mailbox depth, controller backlog, and live monitor/link counts. The
// gauges themselves are plain atomics -- the teacher's stack pulls in
// github.com/prometheus/common (not the separate client_golang
// instrumentation library), which supplies only the exposition data
// model (model.Metric / model.Sample), not a live Gauge type. Snapshot
// renders the current values into that data model, the same shape a
// Prometheus-compatible scraper or exporter downstream would consume.
type Metrics struct {
	mailboxDepth      int64
	controllerBacklog int64
	liveMonitors      int64
	liveLinks         int64
}

// NewMetrics constructs a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) SetMailboxDepth(v int) {
	atomic.StoreInt64(&m.mailboxDepth, int64(v))
}

func (m *Metrics) IncControllerBacklog(delta int64) {
	atomic.AddInt64(&m.controllerBacklog, delta)
}

func (m *Metrics) SetMonitorCount(v int) {
	atomic.StoreInt64(&m.liveMonitors, int64(v))
}

func (m *Metrics) SetLinkCount(v int) {
	atomic.StoreInt64(&m.liveLinks, int64(v))
}

// Snapshot renders the current gauge values as Prometheus exposition
// samples, labeled with the owning node.
func (m *Metrics) Snapshot(node string) model.Vector {
	now := model.TimeFromUnixNano(timeNow())
	gauge := func(name string, value int64) *model.Sample {
		return &model.Sample{
			Metric: model.Metric{
				model.MetricNameLabel: model.LabelValue(name),
				model.LabelName("node"): model.LabelValue(node),
			},
			Value:     model.SampleValue(value),
			Timestamp: now,
		}
	}
	return model.Vector{
		gauge("actor_mailbox_depth", atomic.LoadInt64(&m.mailboxDepth)),
		gauge("actor_controller_backlog", atomic.LoadInt64(&m.controllerBacklog)),
		gauge("actor_live_monitors", atomic.LoadInt64(&m.liveMonitors)),
		gauge("actor_live_links", atomic.LoadInt64(&m.liveLinks)),
	}
}

func timeNow() int64 {
	return time.Now().UnixNano()
}
