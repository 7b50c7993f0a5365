package ports

import "go.taskgraph.dev/core/internal/core/domain"

// Workspace is the Configuration Loader's top-level output (C10): the
// global task definitions, the lockfile path used by the Fingerprint
// Engine, and every package in the workspace.
type Workspace struct {
	Root            string
	LockfilePath    string
	GlobalTasks     map[string]domain.TaskDefinition
	Packages        map[string]domain.Package
	AllowedTaskRefs map[string]bool // nil means "no allow-list filter"
}

// ConfigLoader is the Configuration Loader component (C10): it reads
// the workspace configuration document and, per package, an optional
// task-definition block, and validates both.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads and validates the full workspace configuration rooted
	// at cwd (or an ancestor of cwd holding the workspace document).
	Load(cwd string) (*Workspace, error)

	// DiscoverRoot walks up from cwd to find the workspace root.
	DiscoverRoot(cwd string) (string, error)
}
