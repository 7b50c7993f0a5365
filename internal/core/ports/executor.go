// Package ports defines the seams between the taskgraph core and its
// external collaborators: the task executor, the two cache tiers, the
// fingerprint engine, input resolution, configuration loading, and
// statistics/tracing.
package ports

import (
	"context"
	"io"

	"go.taskgraph.dev/core/internal/core/domain"
)

// Executor is the task-executor seam: a function (command, cwd, env)
// -> exitStatus, stdout, stderr. The scheduler
// invokes it once per leaf task on a cache miss; implementations may
// shell out directly or delegate to a package manager.
type Executor interface {
	// Execute runs task's command with the given environment ("KEY=VALUE"
	// entries), streaming combined output to stdout/stderr, and returns a
	// non-nil error on non-zero exit, timeout, or signal.
	Execute(ctx context.Context, task *domain.Task, env []string, stdout, stderr io.Writer) error
}
