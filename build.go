// Package taskgraph implements the top-level Build entry point: it
// wires the Configuration Loader, Task Definition Resolver, Graph
// Builder, Cache Integration Layer, and Scheduler into one call that
// returns a structured build result instead of printing one.
//
// Collaborators are constructed and injected in one place, the same
// way App wires its collaborators in the CLI package this module grew
// out of, minus the TUI/daemon/renderer concurrency that package needs
// and this library does not.
package taskgraph

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cespare/xxhash/v2"
	"go.taskgraph.dev/core/internal/adapters/fs"
	"go.taskgraph.dev/core/internal/adapters/logger"
	"go.taskgraph.dev/core/internal/adapters/shell"
	"go.taskgraph.dev/core/internal/adapters/telemetry"
	"go.taskgraph.dev/core/internal/cache"
	"go.taskgraph.dev/core/internal/cache/artifactstore"
	"go.taskgraph.dev/core/internal/cache/donemarker"
	"go.taskgraph.dev/core/internal/config"
	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"go.taskgraph.dev/core/internal/engine/scheduler"
	"go.taskgraph.dev/core/internal/fingerprint"
	"go.taskgraph.dev/core/internal/graph"
	"go.taskgraph.dev/core/internal/resolver"
	"go.taskgraph.dev/core/internal/stats"
	"go.trai.ch/zerr"
)

// Status is a build's summary outcome.
type Status string

const (
	// StatusUpToDate means no task in the run executed or restored;
	// every task's local done-marker already matched.
	StatusUpToDate Status = "up-to-date"

	// StatusSuccess means at least one task ran or restored, and none
	// failed.
	StatusSuccess Status = "success"

	// StatusFailed means at least one task failed.
	StatusFailed Status = "failed"
)

// Result is the structured build result Build returns: status and
// statistics collapsed into one Go value, since a library must return
// data rather than print it.
type Result struct {
	Status Status
	Stats  stats.Report
}

// Options configures one Build call.
type Options struct {
	// Dir is the directory to discover the workspace from. Defaults to
	// the process's current working directory.
	Dir string

	// Targets is the requested task list. Required.
	Targets []string

	// Parallelism bounds the number of concurrently running tasks.
	// Defaults to runtime.NumCPU().
	Parallelism int

	// NoCache bypasses both cache tiers for every task in the run.
	NoCache bool

	// CancelMode controls propagation on the first task failure.
	// Defaults to scheduler.CancelCooperative.
	CancelMode scheduler.CancelMode

	// StoreRoot is the shared artifact store's root directory. Defaults
	// to "<workspace root>/.taskgraph/cache".
	StoreRoot string

	// JSON switches the default logger to JSON output. Ignored if
	// Logger is set.
	JSON bool

	// Logger receives build progress and task output. Defaults to a
	// new pretty-printing logger.Logger writing to stderr.
	Logger ports.Logger

	// Tracer receives per-task spans and the materialized build plan.
	// Defaults to an OpenTelemetry tracer using the global provider
	// (a no-op provider unless the caller has configured one).
	Tracer ports.Tracer
}

// Build runs the full pipeline: discover and load the workspace
// configuration, resolve task definitions, materialize the requested
// task graph, then schedule and execute it to completion.
func Build(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}

	log := opts.Logger
	if log == nil {
		defaultLogger := logger.New().(*logger.Logger) //nolint:forcetypeassert // logger.New always returns *logger.Logger
		if opts.JSON {
			defaultLogger.SetJSON(true)
		}
		log = defaultLogger
	}

	dir := opts.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get current working directory")
		}
		dir = cwd
	}

	// 1. Load the workspace configuration (C10).
	loader := config.NewLoader(log)
	ws, err := loader.Load(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	// 2. Resolve each package's concrete task definitions (C4).
	res := resolver.New()
	resolved := make(map[string]domain.Package, len(ws.Packages))
	for name, pkg := range ws.Packages {
		pkg.Tasks = res.Resolve(name, ws.GlobalTasks, pkg, false, ws.AllowedTaskRefs)
		resolved[name] = pkg
	}

	// 3. Materialize the requested task graph (C5).
	g, err := graph.New(resolved).Build(opts.Targets)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build task graph")
	}

	// 4. Wire the Fingerprint Engine (C1) and the two cache tiers (C2,
	// C3) behind the Cache Integration Layer (C8).
	lockfileHash, err := hashLockfile(ws.LockfilePath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to hash lockfile")
	}
	fpEngine := fingerprint.New(fs.NewResolver(), fingerprint.NewRegistry(), lockfileHash)
	doneMarkers := donemarker.New()

	storeRoot := opts.StoreRoot
	if storeRoot == "" {
		storeRoot = filepath.Join(ws.Root, ".taskgraph", "cache")
	}
	artifacts := artifactstore.New(storeRoot)
	cacheIntegration := cache.New(fpEngine, doneMarkers, artifacts)

	// 5. Wire the Scheduler (C6/C7) and Statistics & Reporting (C9).
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewOTelTracer("taskgraph")
	}
	collector := stats.NewCollector()
	sched := scheduler.NewScheduler(shell.NewExecutor(log), cacheIntegration, fs.NewResolver(), tracer, log, collector)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	// 6. Run. Scheduling errors (a bad target name, a cycle) are
	// returned before any task starts and abort the build with no
	// result. Once the run loop starts, its only error is
	// domain.ErrTaskExecutionFailed joined per failed task; those are
	// recorded in the statistics and surface as StatusFailed, not as a
	// returned error.
	runErr := sched.Run(ctx, g, []string{"all"}, parallelism, opts.CancelMode, opts.NoCache)
	if runErr != nil && !errors.Is(runErr, domain.ErrTaskExecutionFailed) {
		return nil, zerr.Wrap(runErr, "build failed")
	}

	report := collector.Report(artifacts.Stats())
	return &Result{Status: statusOf(report), Stats: report}, nil
}

// statusOf computes a build's summary status from its statistics: any
// failure wins, otherwise any completed work means success, otherwise
// nothing needed to run.
func statusOf(report stats.Report) Status {
	switch {
	case report.Failed > 0:
		return StatusFailed
	case report.Succeeded > 0 || report.Restored > 0:
		return StatusSuccess
	default:
		return StatusUpToDate
	}
}

// hashLockfile content-hashes the workspace's package-manager lockfile
// the same way the Fingerprint Engine hashes a task's input files, so a
// lockfile edit invalidates every previously cached entry. An empty
// path (no lockfile declared) hashes to the empty string.
func hashLockfile(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	//nolint:gosec // path comes from the workspace configuration the caller trusts
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return "", err
	}

	sum := h.Sum64()
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		b := byte(sum >> (56 - 8*i))
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out), nil
}
