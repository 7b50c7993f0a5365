// Package stats implements the Statistics & Reporting component (C9):
// a plain in-memory accumulator of per-task terminal outcomes, merged
// at the end of a build with the Shared Artifact Store's own counters
// into a single report.
//
// Collector is fed directly by the scheduler at each task's
// terminal-state transition rather than through the Tracer/Span seam:
// a local done-marker or shared-store hit never opens a span at all,
// so a span-only accumulator would miss exactly the outcomes the cache
// exists to produce.
package stats

import (
	"sync"

	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
)

// Failure records one task's terminal failure for the build's final
// report.
type Failure struct {
	Task string
	Err  string
}

// Collector accumulates per-task terminal outcomes over the lifetime of
// one build. The zero value is not usable; use NewCollector.
type Collector struct {
	mu       sync.Mutex
	counts   map[domain.TaskState]int
	failures []Failure
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{counts: make(map[domain.TaskState]int)}
}

// Record registers name's terminal state. err is non-nil only when
// state is domain.StateFailed.
func (c *Collector) Record(name string, state domain.TaskState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[state]++
	if err != nil {
		c.failures = append(c.failures, Failure{Task: name, Err: err.Error()})
	}
}

// Snapshot is a point-in-time read of the accumulated counts.
type Snapshot struct {
	Succeeded int
	UpToDate  int
	Restored  int
	Failed    int
	Skipped   int
	Failures  []Failure
}

// Snapshot returns the counts and failures recorded so far.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Succeeded: c.counts[domain.StateSucceeded],
		UpToDate:  c.counts[domain.StateUpToDate],
		Restored:  c.counts[domain.StateRestored],
		Failed:    c.counts[domain.StateFailed],
		Skipped:   c.counts[domain.StateSkipped],
		Failures:  append([]Failure(nil), c.failures...),
	}
}

// Report is a build's full statistics summary: per-task outcome counts
// alongside the Shared Artifact Store's own hit/miss/time-saved
// counters.
type Report struct {
	Succeeded int
	UpToDate  int
	Restored  int
	Failed    int
	Skipped   int
	Failures  []Failure
	Cache     ports.ArtifactStoreStats
}

// Report merges this Collector's snapshot with the given cache-tier
// statistics into one build report.
func (c *Collector) Report(cacheStats ports.ArtifactStoreStats) Report {
	snap := c.Snapshot()
	return Report{
		Succeeded: snap.Succeeded,
		UpToDate:  snap.UpToDate,
		Restored:  snap.Restored,
		Failed:    snap.Failed,
		Skipped:   snap.Skipped,
		Failures:  snap.Failures,
		Cache:     cacheStats,
	}
}
