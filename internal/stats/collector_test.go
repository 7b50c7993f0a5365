package stats_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"go.taskgraph.dev/core/internal/stats"
)

func TestCollector_Snapshot_CountsByState(t *testing.T) {
	c := stats.NewCollector()
	c.Record("a", domain.StateSucceeded, nil)
	c.Record("b", domain.StateUpToDate, nil)
	c.Record("c", domain.StateRestored, nil)
	c.Record("d", domain.StateFailed, errors.New("boom"))
	c.Record("e", domain.StateSkipped, nil)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Succeeded)
	assert.Equal(t, 1, snap.UpToDate)
	assert.Equal(t, 1, snap.Restored)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, []stats.Failure{{Task: "d", Err: "boom"}}, snap.Failures)
}

func TestCollector_Report_MergesCacheStats(t *testing.T) {
	c := stats.NewCollector()
	c.Record("a", domain.StateRestored, nil)

	report := c.Report(ports.ArtifactStoreStats{Hits: 4, Misses: 1, TimeSavedMillis: 8200})

	assert.Equal(t, 1, report.Restored)
	assert.Equal(t, int64(4), report.Cache.Hits)
	assert.Equal(t, int64(8200), report.Cache.TimeSavedMillis)
}

func TestCollector_Snapshot_IsIndependentOfInternalState(t *testing.T) {
	c := stats.NewCollector()
	c.Record("a", domain.StateFailed, errors.New("first"))

	snap := c.Snapshot()
	snap.Failures[0].Err = "mutated"

	fresh := c.Snapshot()
	assert.Equal(t, "first", fresh.Failures[0].Err)
}
