package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	tapsTotal      uint64
	tapsRejected   uint64
	tapsQueued     uint64
	commitsTotal   uint64
	conflictsTotal uint64
	evictionsTotal uint64
	alertsTotal    uint64
	commitDurMsTot uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Tap() {
	atomic.AddUint64(&c.tapsTotal, 1)
}

func (c *Collector) Rejected() {
	atomic.AddUint64(&c.tapsRejected, 1)
}

func (c *Collector) Queued() {
	atomic.AddUint64(&c.tapsQueued, 1)
}

func (c *Collector) Conflict() {
	atomic.AddUint64(&c.conflictsTotal, 1)
}

func (c *Collector) Eviction() {
	atomic.AddUint64(&c.evictionsTotal, 1)
}

func (c *Collector) Alert() {
	atomic.AddUint64(&c.alertsTotal, 1)
}

func (c *Collector) Commit(duration time.Duration) {
	atomic.AddUint64(&c.commitsTotal, 1)
	atomic.AddUint64(&c.commitDurMsTot, uint64(duration.Milliseconds()))
}

func (c *Collector) Snapshot() map[string]any {
	commits := atomic.LoadUint64(&c.commitsTotal)
	totalMs := atomic.LoadUint64(&c.commitDurMsTot)
	avg := float64(0)
	if commits > 0 {
		avg = float64(totalMs) / float64(commits)
	}
	return map[string]any{
		"tapsTotal":      atomic.LoadUint64(&c.tapsTotal),
		"tapsRejected":   atomic.LoadUint64(&c.tapsRejected),
		"tapsQueued":     atomic.LoadUint64(&c.tapsQueued),
		"commitsTotal":   commits,
		"conflictsTotal": atomic.LoadUint64(&c.conflictsTotal),
		"evictionsTotal": atomic.LoadUint64(&c.evictionsTotal),
		"alertsTotal":    atomic.LoadUint64(&c.alertsTotal),
		"avgCommitMs":    avg,
		"totalCommitMs":  totalMs,
	}
}
