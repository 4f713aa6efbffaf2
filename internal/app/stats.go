package app

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

// statsCollector keeps process-lifetime counters for the periodic stats line.
type statsCollector struct {
	purgeRequests atomic.Uint64
	purgeFailures atomic.Uint64
	purgeNanos    atomic.Uint64
	minPurgeNanos atomic.Uint64
	maxPurgeNanos atomic.Uint64

	events        atomic.Uint64
	skipped       atomic.Uint64
	immediateFail atomic.Uint64
	drains        atomic.Uint64
	drainFailures atomic.Uint64
	dropped       atomic.Uint64
	queueSize     atomic.Int64
}

func newStatsCollector() *statsCollector {
	s := &statsCollector{}
	s.minPurgeNanos.Store(math.MaxUint64)
	return s
}

func (s *statsCollector) ObservePurge(d time.Duration, failed bool) {
	if d < 0 {
		d = 0
	}
	n := uint64(d)

	s.purgeRequests.Add(1)
	s.purgeNanos.Add(n)
	if failed {
		s.purgeFailures.Add(1)
	}

	for {
		cur := s.minPurgeNanos.Load()
		if n >= cur {
			break
		}
		if s.minPurgeNanos.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := s.maxPurgeNanos.Load()
		if n <= cur {
			break
		}
		if s.maxPurgeNanos.CompareAndSwap(cur, n) {
			break
		}
	}
}

type statsSnapshot struct {
	PurgeRequests  uint64
	PurgeFailures  uint64
	MinPurge       time.Duration
	AvgPurge       time.Duration
	MaxPurge       time.Duration
	Events         uint64
	Skipped        uint64
	ImmediateFails uint64
	Drains         uint64
	DrainFailures  uint64
	Dropped        uint64
	QueueSize      int64
}

func (s *statsCollector) Snapshot() statsSnapshot {
	ss := statsSnapshot{
		PurgeRequests:  s.purgeRequests.Load(),
		PurgeFailures:  s.purgeFailures.Load(),
		Events:         s.events.Load(),
		Skipped:        s.skipped.Load(),
		ImmediateFails: s.immediateFail.Load(),
		Drains:         s.drains.Load(),
		DrainFailures:  s.drainFailures.Load(),
		Dropped:        s.dropped.Load(),
		QueueSize:      s.queueSize.Load(),
	}
	if ss.PurgeRequests == 0 {
		return ss
	}
	minv := s.minPurgeNanos.Load()
	if minv == math.MaxUint64 {
		minv = 0
	}
	ss.MinPurge = time.Duration(minv)
	ss.MaxPurge = time.Duration(s.maxPurgeNanos.Load())
	ss.AvgPurge = time.Duration(s.purgeNanos.Load() / ss.PurgeRequests)
	return ss
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	if b < kb {
		return fmt.Sprintf("%db", b)
	}
	if b < mb {
		return trimFloat(fmt.Sprintf("%.1f", float64(b)/kb)) + "kb"
	}
	if b < gb {
		return trimFloat(fmt.Sprintf("%.1f", float64(b)/mb)) + "mb"
	}
	return trimFloat(fmt.Sprintf("%.1f", float64(b)/gb)) + "gb"
}

func trimFloat(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".0")
}
