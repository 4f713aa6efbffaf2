package app

import (
	"time"

	"edgepurge/internal/metrics"
)

// observer fans component measurements out to Prometheus and to the
// in-process stats line.
type observer struct {
	m     *metrics.Metrics
	stats *statsCollector
}

func (o observer) PurgeRequest(kind, outcome string, d time.Duration) {
	o.m.PurgeRequest(kind, outcome, d)
	o.stats.ObservePurge(d, outcome != "success")
}

func (o observer) ItemsPurged(kind string, n int) { o.m.ItemsPurged(kind, n) }

func (o observer) QueueSize(n int) {
	o.m.QueueSize(n)
	o.stats.queueSize.Store(int64(n))
}

func (o observer) QueueDropped(n int) {
	o.m.QueueDropped(n)
	o.stats.dropped.Add(uint64(n))
}

func (o observer) DrainRun(outcome string) {
	o.m.DrainRun(outcome)
	switch outcome {
	case "success":
		o.stats.drains.Add(1)
	case "failure":
		o.stats.drains.Add(1)
		o.stats.drainFailures.Add(1)
	}
}

func (o observer) ImmediatePurge(outcome string) {
	o.m.ImmediatePurge(outcome)
	if outcome != "success" {
		o.stats.immediateFail.Add(1)
	}
}

func (o observer) Event(entity, handling string) {
	o.m.Event(entity, handling)
	o.stats.events.Add(1)
	if handling == "skipped" {
		o.stats.skipped.Add(1)
	}
}
