package domain

import "go.trai.ch/zerr"

// ErrorKind classifies a taskgraph error into the reporting channel
// defined for it: fatal-before-any-task-runs, non-fatal per task, or
// cache-layer (never fatal).
type ErrorKind string

const (
	// ErrKindConfiguration covers malformed documents, unresolvable task
	// references, and missing lockfiles. Aborts before any task runs.
	ErrKindConfiguration ErrorKind = "configuration"

	// ErrKindGraph covers cycles and "no task materialized" failures.
	// Aborts before any task runs.
	ErrKindGraph ErrorKind = "graph"

	// ErrKindTaskExecution covers non-zero exit, timeout, or signal.
	// Non-fatal: the task transitions to Failed.
	ErrKindTaskExecution ErrorKind = "task-execution"

	// ErrKindCacheCorruption covers malformed manifests and hash
	// mismatches on retrieval. Never fatal; treated as a miss.
	ErrKindCacheCorruption ErrorKind = "cache-corruption"

	// ErrKindCachePublication covers a put failure after a successful
	// run. The task is still Succeeded; publication is best-effort.
	ErrKindCachePublication ErrorKind = "cache-publication"
)

var (
	// ErrTaskAlreadyExists is returned when adding a task whose name
	// already exists in the graph.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrMissingDependency is returned when a task references a
	// dependency absent from the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle exists in the task
	// dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested task is absent from
	// the graph.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrNoTaskMaterialized is returned when graph construction produced
	// no leaf task for any requested name in any package.
	ErrNoTaskMaterialized = zerr.New("no leaf task materialized for requested names")

	// ErrInvalidTaskReference is returned when a dependency reference
	// (e.g. @pkg#T) cannot be resolved to a package or task.
	ErrInvalidTaskReference = zerr.New("invalid task reference")

	// ErrOverlappingOutputs is returned when two scheduled tasks declare
	// overlapping output paths.
	ErrOverlappingOutputs = zerr.New("overlapping output paths between scheduled tasks")

	// ErrMissingProjectName is returned when a package document is
	// missing its name.
	ErrMissingProjectName = zerr.New("missing project name")

	// ErrInvalidProjectName is returned when a project name contains
	// characters outside [a-zA-Z0-9_-].
	ErrInvalidProjectName = zerr.New("project name can only contain alphanumeric characters, hyphens and underscores")

	// ErrDuplicateProjectName is returned when two packages in the same
	// workspace share a name.
	ErrDuplicateProjectName = zerr.New("duplicate project name")

	// ErrInvalidTaskName is returned when a task name is malformed.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrConfigReadFailed is returned when a configuration document
	// cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read configuration document")

	// ErrConfigParseFailed is returned when a configuration document
	// cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse configuration document")

	// ErrConfigNotFound is returned when no workspace or package
	// configuration document could be found.
	ErrConfigNotFound = zerr.New("could not find workspace or package configuration")

	// ErrNoTargetsSpecified is returned when a build is requested with
	// no target task names.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrLockfileMissing is returned when the workspace's declared
	// lockfile does not exist.
	ErrLockfileMissing = zerr.New("workspace lockfile missing")

	// ErrTaskExecutionFailed is returned when a task's subprocess exits
	// non-zero, times out, or is signaled.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrInputHashComputationFailed is returned when hashing a task's
	// declared inputs fails.
	ErrInputHashComputationFailed = zerr.New("failed to compute input hash")

	// ErrOutputHashComputationFailed is returned when hashing a task's
	// declared outputs fails.
	ErrOutputHashComputationFailed = zerr.New("failed to compute output hash")

	// ErrDoneMarkerReadFailed is returned when a done-marker cannot be
	// read.
	ErrDoneMarkerReadFailed = zerr.New("failed to read done marker")

	// ErrDoneMarkerWriteFailed is returned when a done-marker cannot be
	// written.
	ErrDoneMarkerWriteFailed = zerr.New("failed to write done marker")

	// ErrCacheMiss is returned when a requested fingerprint is not
	// present in the shared artifact store.
	ErrCacheMiss = zerr.New("cache miss")

	// ErrCacheCorrupt is returned when a shared-store entry's manifest
	// is malformed or disagrees with its output files.
	ErrCacheCorrupt = zerr.New("cache entry corrupt")

	// ErrCachePublishFailed is returned when publishing a successful
	// task's outputs to the shared store fails.
	ErrCachePublishFailed = zerr.New("failed to publish cache entry")

	// ErrOutputPathOutsideRoot is returned when a declared output path
	// escapes its package directory.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside package root")

	// ErrInputNotFound is returned when a declared input glob matches no
	// file under the package directory.
	ErrInputNotFound = zerr.New("input pattern matched no files")

	// ErrReservedTaskName is returned when a task definition uses the
	// "all" name, reserved for the run-everything target.
	ErrReservedTaskName = zerr.New("task name is reserved")

	// ErrMissingTool is returned when a task references a tool alias
	// absent from its package's or the workspace's tool map.
	ErrMissingTool = zerr.New("tool alias not declared")

	// ErrInvalidRebuildStrategy is returned when a task's rebuild
	// strategy value is neither "on-change" nor "always".
	ErrInvalidRebuildStrategy = zerr.New("invalid rebuild strategy")

	// ErrInvalidTaskDefinition is returned when a package's task
	// definition block is malformed (e.g. a nil entry).
	ErrInvalidTaskDefinition = zerr.New("invalid task definition")
)

// Configuration document file names, discovered by walking upward from
// the current directory.
const (
	// WorkFileName is the workspace-level configuration document.
	WorkFileName = "taskgraph.work.yaml"

	// PackageFileName is a single package's configuration document.
	PackageFileName = "taskgraph.yaml"
)
