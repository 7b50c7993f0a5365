// Package cache implements the Cache Integration Layer (C8): the
// 4-step decision procedure that sits between the scheduler and the
// two cache tiers (the local Done-Marker Store and the Shared Artifact
// Store).
//
// Lookup follows a multiplexed-fetch backfill pattern: try the fast
// tier, then the slow tier, and repopulate the fast tier on a
// slow-tier hit.
package cache

import (
	"time"

	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"golang.org/x/sync/singleflight"
)

// Decision is the outcome of consulting the cache for one task.
type Decision string

const (
	// DecisionUpToDate means the local done-marker already matches the
	// task's current fingerprint; nothing was restored or executed.
	DecisionUpToDate Decision = "up-to-date"

	// DecisionRestored means the shared artifact store held a matching
	// entry and its outputs were copied into place.
	DecisionRestored Decision = "restored"

	// DecisionMiss means neither tier had a usable entry; the task must
	// be executed.
	DecisionMiss Decision = "miss"
)

// Result is what Check returns: whether the task can be skipped, and if
// so, how.
type Result struct {
	Decision    Decision
	Fingerprint string
}

// Integration is the Cache Integration Layer. One Integration is shared
// by every worker goroutine in a build.
type Integration struct {
	fingerprints ports.FingerprintEngine
	doneMarkers  ports.DoneMarkerStore
	artifacts    ports.ArtifactStore

	group singleflight.Group
}

// New creates an Integration layer over the given components.
func New(fingerprints ports.FingerprintEngine, doneMarkers ports.DoneMarkerStore, artifacts ports.ArtifactStore) *Integration {
	return &Integration{fingerprints: fingerprints, doneMarkers: doneMarkers, artifacts: artifacts}
}

// Check runs the cache decision procedure: compute the task's
// fingerprint, check the local done-marker, then the shared store. On a
// shared-store hit it restores into packageDir and writes a fresh
// done-marker; a local done-marker hit writes nothing. A shared-store
// entry that cannot be read or restored is reported as a miss.
//
// Fingerprint computation is deduplicated via singleflight keyed by
// package#task: concurrent calls for the same task collapse into a
// single Fingerprint call. The done-marker and shared-store lookups are
// not deduplicated, and two different tasks with identical fingerprints
// are not serialized against each other.
func (c *Integration) Check(task *domain.Task, packageDir string, dependencyFingerprints map[string]string) (Result, error) {
	fp, err := c.computeFingerprint(task, dependencyFingerprints)
	if err != nil {
		return Result{}, err
	}

	if marker, err := c.doneMarkers.Get(packageDir, task.Name.String()); err != nil {
		return Result{}, err
	} else if marker != nil && marker.Fingerprint == fp {
		return Result{Decision: DecisionUpToDate, Fingerprint: fp}, nil
	}

	entry, err := c.artifacts.Get(fp)
	switch {
	case err == nil:
		if restoreErr := c.artifacts.Restore(entry, packageDir); restoreErr != nil {
			return Result{Decision: DecisionMiss, Fingerprint: fp}, nil
		}
		if markerErr := c.writeMarker(packageDir, task.Name.String(), fp, entry.Manifest.Outputs); markerErr != nil {
			return Result{}, markerErr
		}
		return Result{Decision: DecisionRestored, Fingerprint: fp}, nil
	default:
		return Result{Decision: DecisionMiss, Fingerprint: fp}, nil
	}
}

// Publish runs on a successful execution: it publishes the task's
// outputs to the shared store (best-effort — a publish failure is
// returned after the done-marker is written and does not change the
// task's own Succeeded outcome) and writes the local done-marker.
func (c *Integration) Publish(task *domain.Task, packageDir, fingerprint string, outputs []domain.OutputFile, outputFiles map[string]string, runtime time.Duration) error {
	manifest := domain.Manifest{
		Fingerprint:       fingerprint,
		PackageName:       task.Package.String(),
		TaskName:          task.Name.String(),
		Outputs:           outputs,
		OriginalRuntimeMs: runtime.Milliseconds(),
	}

	publishErr := c.artifacts.Put(fingerprint, manifest, outputFiles)

	if markerErr := c.writeMarker(packageDir, task.Name.String(), fingerprint, outputs); markerErr != nil {
		return markerErr
	}
	return publishErr
}

// Fingerprint exposes the deduplicated fingerprint computation alone,
// without consulting either cache tier. The scheduler uses this for a
// task whose RebuildStrategy is RebuildAlways, or when the caller asked
// to bypass the cache entirely: the task still needs a fingerprint
// value so its dependents can fold it into their own.
func (c *Integration) Fingerprint(task *domain.Task, dependencyFingerprints map[string]string) (string, error) {
	return c.computeFingerprint(task, dependencyFingerprints)
}

func (c *Integration) computeFingerprint(task *domain.Task, dependencyFingerprints map[string]string) (string, error) {
	key := task.Package.String() + "#" + task.Name.String()
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fingerprints.Fingerprint(task, dependencyFingerprints)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Integration) writeMarker(packageDir, taskName, fingerprint string, outputs []domain.OutputFile) error {
	return c.doneMarkers.Put(packageDir, domain.DoneMarker{
		TaskName:    taskName,
		Fingerprint: fingerprint,
		Outputs:     outputs,
		RecordedAt:  time.Now(),
	})
}
