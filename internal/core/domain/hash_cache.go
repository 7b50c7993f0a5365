package domain

import "time"

// TaskHashEntry records a previously computed fingerprint for a task
// within the lifetime of a single build invocation, together with the
// resolved input paths it was computed over (resolved paths can change
// between requests if glob expansion picks up new files).
type TaskHashEntry struct {
	Fingerprint    string
	ResolvedInputs []InternedString
	ComputedAt     time.Time
}

// Package describes a workspace unit: a unique name, its directory, the
// named scripts it exposes, its resolved task definitions, and the
// dependency package names (with the version range each was declared
// against) it requires to be present for its `^`-prefixed task
// references to expand.
type Package struct {
	Name         string
	Dir          string
	Version      string
	Scripts      map[string]string
	Tasks        map[string]TaskDefinition
	Dependencies []PackageDependency
}

// PackageDependency names another package this one depends on, along
// with the version range it was declared against. If the named package
// does not satisfy VersionRange, edges from this package's tasks into
// the dependency's tasks are dropped (version skew).
type PackageDependency struct {
	Name         string
	VersionRange string
}
