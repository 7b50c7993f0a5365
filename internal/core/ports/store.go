package ports

import "go.taskgraph.dev/core/internal/core/domain"

// DoneMarkerStore is the Done-Marker Store component (C2): a per-task
// local record of the last successful fingerprint and its output file
// list. Get returns (nil, nil) on a missing marker, never an error.
type DoneMarkerStore interface {
	Get(packageDir, taskName string) (*domain.DoneMarker, error)
	Put(packageDir string, marker domain.DoneMarker) error
}

// ArtifactStore is the Shared Artifact Store component (C3): a
// content-addressed store of task outputs keyed by fingerprint.
type ArtifactStore interface {
	// Put publishes outputFiles under fingerprint, atomically. outputFiles
	// maps each output's path (relative to packageDir) to its absolute
	// on-disk location to copy from.
	Put(fingerprint string, manifest domain.Manifest, outputFiles map[string]string) error

	// Get returns the parsed entry for fingerprint. It returns
	// (nil, domain.ErrCacheMiss) if no entry exists, and
	// (nil, domain.ErrCacheCorrupt) if the entry's manifest cannot be
	// read or parsed or names a different fingerprint. Get does not check
	// the declared output files; Restore reports a missing or
	// size-mismatched file as domain.ErrCacheCorrupt.
	Get(fingerprint string) (*domain.CacheEntry, error)

	// Restore copies (or hard-links) every output file listed in entry's
	// manifest into packageDir, preserving each file's recorded mtime.
	Restore(entry *domain.CacheEntry, packageDir string) error

	// Stats returns the store's cumulative hit/miss/bytes/time-saved
	// counters.
	Stats() ArtifactStoreStats
}

// ArtifactStoreStats are the Shared Artifact Store's exposed counters.
type ArtifactStoreStats struct {
	Hits             int64
	Misses           int64
	BytesRestored    int64
	TimeSavedMillis  int64
	CorruptionEvents int64
}
