// Package scheduler implements the Task Scheduler (C6) and Execution
// Engine (C7): it walks a domain.Graph in dependency order, consults
// the Cache Integration Layer before running each leaf task, and
// propagates failure as Skipped to every transitive dependent.
//
// Dispatch is an in-degree-driven ready queue feeding a
// results-channel worker loop, with a container/heap priority queue
// ordering ready tasks by Level/Weight rather than plain FIFO order.
// A task's Tools only feed the fingerprint's toolchain-identity
// component (domain.GenerateEnvID); the scheduler itself builds no
// environment before running a task.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.taskgraph.dev/core/internal/cache"
	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"go.taskgraph.dev/core/internal/stats"
	"go.trai.ch/zerr"
)

// CancelMode controls how the scheduler reacts to the first task
// failure during a run.
type CancelMode int

const (
	// CancelCooperative lets every already-running task finish and keeps
	// dispatching ready tasks from branches unaffected by the failure.
	// Only the failed task's transitive dependents are marked Skipped.
	CancelCooperative CancelMode = iota

	// CancelForceful cancels the run's context on the first failure, in
	// addition to the Skipped propagation CancelCooperative performs.
	// In-flight executions are expected to observe ctx.Done and stop
	// early; no further tasks are dispatched once the context is
	// canceled, and whatever remains unscheduled is marked Skipped.
	CancelForceful
)

// Scheduler runs a domain.Graph to completion.
type Scheduler struct {
	executor ports.Executor
	cache    *cache.Integration
	resolver ports.InputResolver
	tracer   ports.Tracer
	logger   ports.Logger
	stats    *stats.Collector

	mu          sync.RWMutex
	state       map[domain.InternedString]domain.TaskState
	fingerprint map[domain.InternedString]string
}

// NewScheduler creates a Scheduler over the given collaborators. logger
// may be nil; it is only consulted for best-effort warnings (a cache
// publish failure after a successful run, for instance) that must never
// fail the build. collector may be nil if the caller doesn't need a
// Statistics & Reporting summary for this run.
func NewScheduler(executor ports.Executor, cacheIntegration *cache.Integration, resolver ports.InputResolver, tracer ports.Tracer, logger ports.Logger, collector *stats.Collector) *Scheduler {
	return &Scheduler{
		executor:    executor,
		cache:       cacheIntegration,
		resolver:    resolver,
		tracer:      tracer,
		logger:      logger,
		stats:       collector,
		state:       make(map[domain.InternedString]domain.TaskState),
		fingerprint: make(map[domain.InternedString]string),
	}
}

// State returns name's current state, domain.StatePending if the
// scheduler has no record of it (it was never part of the requested
// run, or Run has not been called yet).
func (s *Scheduler) State(name domain.InternedString) domain.TaskState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.state[name]; ok {
		return st
	}
	return domain.StatePending
}

func (s *Scheduler) setState(name domain.InternedString, state domain.TaskState) {
	s.mu.Lock()
	s.state[name] = state
	s.mu.Unlock()
}

// terminal transitions name to one of domain.TaskState's terminal
// states and records it in the Statistics & Reporting collector, if
// one is attached to this Scheduler.
func (s *Scheduler) terminal(name domain.InternedString, state domain.TaskState, err error) {
	s.setState(name, state)
	if s.stats != nil {
		s.stats.Record(name.String(), state, err)
	}
}

func (s *Scheduler) setFingerprint(name domain.InternedString, fingerprint string) {
	s.mu.Lock()
	s.fingerprint[name] = fingerprint
	s.mu.Unlock()
}

func (s *Scheduler) dependencyFingerprints(task domain.Task) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(task.Dependencies))
	for _, dep := range task.Dependencies {
		if fp, ok := s.fingerprint[dep]; ok {
			out[dep.String()] = fp
		}
	}
	return out
}

// Run executes every task reachable from targetNames (or every task in
// graph if targetNames contains "all") with up to parallelism workers,
// honoring mode's failure-propagation policy. noCache bypasses both
// cache tiers for every task in this run, as if each had
// domain.RebuildAlways.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, targetNames []string, parallelism int, mode CancelMode, noCache bool) error {
	if err := graph.Validate(); err != nil {
		return err
	}

	tasksToRun, allTasks, err := resolveTasksToRun(graph, targetNames)
	if err != nil {
		return err
	}

	s.emitPlan(ctx, graph, allTasks, tasksToRun, targetNames)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		scheduler:   s,
		graph:       graph,
		tasksToRun:  tasksToRun,
		inDegree:    make(map[domain.InternedString]int, len(tasksToRun)),
		queue:       &priorityQueue{},
		results:     make(chan taskResult, parallelism),
		parallelism: parallelism,
		noCache:     noCache,
		mode:        mode,
		ctx:         runCtx,
		cancel:      cancel,
	}

	for name := range tasksToRun {
		task, _ := graph.GetTask(name)
		degree := 0
		for _, dep := range task.Dependencies {
			if tasksToRun[dep] {
				degree++
			}
		}
		r.inDegree[name] = degree
		s.setState(name, domain.StatePending)
	}

	for name, degree := range r.inDegree {
		if degree == 0 {
			r.push(name)
		}
	}

	return r.loop()
}

func (s *Scheduler) emitPlan(ctx context.Context, graph *domain.Graph, allTasks []domain.InternedString, tasksToRun map[domain.InternedString]bool, targetNames []string) {
	plannedTasks := make([]string, 0, len(allTasks))
	depMap := make(map[string][]string, len(allTasks))
	for task := range graph.Walk() {
		if !tasksToRun[task.Name] {
			continue
		}
		plannedTasks = append(plannedTasks, task.Name.String())
		deps := make([]string, 0, len(task.Dependencies))
		for _, d := range task.Dependencies {
			deps = append(deps, d.String())
		}
		depMap[task.Name.String()] = deps
	}
	s.tracer.EmitPlan(ctx, plannedTasks, depMap, targetNames)
}

// taskResult is what a worker goroutine reports back to the run loop.
type taskResult struct {
	name domain.InternedString
	err  error
}

// run holds the mutable state of a single Scheduler.Run invocation.
type run struct {
	scheduler   *Scheduler
	graph       *domain.Graph
	tasksToRun  map[domain.InternedString]bool
	inDegree    map[domain.InternedString]int
	queue       *priorityQueue
	seq         int
	active      int
	results     chan taskResult
	parallelism int
	noCache     bool
	mode        CancelMode
	ctx         context.Context
	cancel      context.CancelFunc
	firstErr    error
}

func (r *run) push(name domain.InternedString) {
	task, _ := r.graph.GetTask(name)
	heap.Push(r.queue, pqItem{name: name, level: task.Level, weight: task.Weight, seq: r.seq})
	r.seq++
}

func (r *run) loop() error {
	for {
		r.dispatch()
		if r.active == 0 {
			if r.queue.Len() > 0 {
				r.drainSkipped()
			}
			break
		}
		res := <-r.results
		r.active--
		r.handleResult(res)
	}
	return r.firstErr
}

func (r *run) dispatch() {
	for r.queue.Len() > 0 && r.active < r.parallelism {
		if r.mode == CancelForceful && r.ctx.Err() != nil {
			return
		}
		item := heap.Pop(r.queue).(pqItem)
		task, _ := r.graph.GetTask(item.name)
		r.active++
		r.scheduler.setState(item.name, domain.StateRunning)
		go r.execute(task)
	}
}

func (r *run) execute(task domain.Task) {
	err := r.scheduler.runOne(r.ctx, &task, r.noCache)
	r.results <- taskResult{name: task.Name, err: err}
}

func (r *run) handleResult(res taskResult) {
	if res.err != nil {
		r.scheduler.terminal(res.name, domain.StateFailed, res.err)
		enhanced := zerr.With(zerr.Wrap(res.err, domain.ErrTaskExecutionFailed.Error()), "task", res.name.String())
		r.firstErr = errors.Join(r.firstErr, enhanced)
		if r.mode == CancelForceful {
			r.cancel()
		}
		r.skipDependents(res.name)
		return
	}

	for _, dep := range r.graph.Dependents(res.name) {
		if !r.tasksToRun[dep] {
			continue
		}
		r.inDegree[dep]--
		if r.inDegree[dep] == 0 {
			r.push(dep)
		}
	}
}

func (r *run) skipDependents(name domain.InternedString) {
	for _, dep := range r.graph.TransitiveDependents(name) {
		if !r.tasksToRun[dep] {
			continue
		}
		if r.scheduler.State(dep).IsTerminal() {
			continue
		}
		r.scheduler.terminal(dep, domain.StateSkipped, nil)
	}
}

func (r *run) drainSkipped() {
	for r.queue.Len() > 0 {
		item := heap.Pop(r.queue).(pqItem)
		r.scheduler.terminal(item.name, domain.StateSkipped, nil)
	}
}

// runOne is the Cache Integration Layer consult-then-execute-then-publish
// sequence for a single leaf task.
func (s *Scheduler) runOne(ctx context.Context, task *domain.Task, noCache bool) error {
	packageDir := task.WorkingDir.String()
	depFingerprints := s.dependencyFingerprints(*task)

	bypassCache := noCache || task.RebuildStrategy == domain.RebuildAlways
	if !bypassCache {
		result, err := s.cache.Check(task, packageDir, depFingerprints)
		if err != nil {
			return err
		}
		s.setFingerprint(task.Name, result.Fingerprint)

		switch result.Decision {
		case cache.DecisionUpToDate:
			s.terminal(task.Name, domain.StateUpToDate, nil)
			return nil
		case cache.DecisionRestored:
			s.terminal(task.Name, domain.StateRestored, nil)
			return nil
		}

		return s.executeAndPublish(ctx, task, packageDir, result.Fingerprint)
	}

	fingerprint, err := s.cache.Fingerprint(task, depFingerprints)
	if err != nil {
		return err
	}
	s.setFingerprint(task.Name, fingerprint)
	return s.executeAndPublish(ctx, task, packageDir, fingerprint)
}

func (s *Scheduler) executeAndPublish(ctx context.Context, task *domain.Task, packageDir, fingerprint string) error {
	if err := s.cleanOutputs(task, packageDir); err != nil {
		return err
	}

	runCtx := ctx
	if task.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	spanCtx, span := s.tracer.Start(runCtx, task.Name.String())
	defer span.End()

	start := time.Now()
	err := s.executor.Execute(spanCtx, task, envSlice(task.Environment), span, span)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.terminal(task.Name, domain.StateSucceeded, nil)

	outputs, outputFiles, err := s.collectOutputs(task, packageDir)
	if err != nil {
		span.RecordError(err)
		s.warn(zerr.Wrap(err, "failed to collect task outputs for publish"))
		return nil
	}

	if err := s.cache.Publish(task, packageDir, fingerprint, outputs, outputFiles, elapsed); err != nil {
		s.warn(zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "task", task.Name.String()))
	}
	return nil
}

func (s *Scheduler) warn(err error) {
	if s.logger != nil {
		s.logger.Warn(err.Error())
	}
}

// cleanOutputs removes every currently-existing file matched by task's
// declared output globs before execution, so a run never mixes stale
// artifacts with freshly produced ones.
func (s *Scheduler) cleanOutputs(task *domain.Task, packageDir string) error {
	if len(task.Outputs) == 0 {
		return nil
	}

	existing, err := s.resolver.ResolveOutputs(stringsOf(task.Outputs), packageDir)
	if err != nil {
		return zerr.Wrap(err, "failed to resolve declared outputs")
	}

	rootAbs, err := filepath.Abs(packageDir)
	if err != nil {
		return zerr.Wrap(err, "failed to resolve package directory")
	}

	for _, out := range existing {
		outAbs, err := filepath.Abs(out)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to resolve output path"), "file", out)
		}
		rel, err := filepath.Rel(rootAbs, outAbs)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to compute relative output path"), "file", out)
		}
		if strings.HasPrefix(rel, "..") {
			return zerr.With(domain.ErrOutputPathOutsideRoot, "file", out)
		}
		if err := os.RemoveAll(outAbs); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to clean stale output"), "file", out)
		}
	}
	return nil
}

// collectOutputs resolves a successfully run task's declared output
// globs against what is now on disk and builds the manifest records and
// path map the Cache Integration Layer's Publish needs.
func (s *Scheduler) collectOutputs(task *domain.Task, packageDir string) ([]domain.OutputFile, map[string]string, error) {
	if len(task.Outputs) == 0 {
		return nil, nil, nil
	}

	paths, err := s.resolver.ResolveOutputs(stringsOf(task.Outputs), packageDir)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to resolve produced outputs")
	}

	outputs := make([]domain.OutputFile, 0, len(paths))
	files := make(map[string]string, len(paths))
	for _, abs := range paths {
		info, err := os.Stat(abs)
		if err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, "failed to stat output"), "file", abs)
		}
		hash, err := hashOutputFile(abs)
		if err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, "failed to hash output"), "file", abs)
		}
		rel, err := filepath.Rel(packageDir, abs)
		if err != nil {
			rel = abs
		}
		outputs = append(outputs, domain.OutputFile{Path: rel, Size: info.Size(), Hash: hash, ModTime: info.ModTime()})
		files[rel] = abs
	}
	return outputs, files, nil
}

func resolveTasksToRun(graph *domain.Graph, targetNames []string) (map[domain.InternedString]bool, []domain.InternedString, error) {
	if slices.Contains(targetNames, "all") {
		tasksToRun := make(map[domain.InternedString]bool, graph.TaskCount())
		allTasks := make([]domain.InternedString, 0, graph.TaskCount())
		for task := range graph.Walk() {
			tasksToRun[task.Name] = true
			allTasks = append(allTasks, task.Name)
		}
		return tasksToRun, allTasks, nil
	}

	targets := make([]domain.InternedString, 0, len(targetNames))
	for _, nameStr := range targetNames {
		name := domain.NewInternedString(nameStr)
		if _, ok := graph.GetTask(name); !ok {
			return nil, nil, zerr.With(domain.ErrTaskNotFound, "task", name.String())
		}
		targets = append(targets, name)
	}
	return collectDependencies(graph, targets)
}

func collectDependencies(graph *domain.Graph, targets []domain.InternedString) (map[domain.InternedString]bool, []domain.InternedString, error) {
	tasksToRun := make(map[domain.InternedString]bool)
	var allTasks []domain.InternedString

	queue := make([]domain.InternedString, len(targets))
	copy(queue, targets)
	visited := make(map[domain.InternedString]bool, len(targets))
	for _, t := range targets {
		visited[t] = true
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if !tasksToRun[name] {
			tasksToRun[name] = true
			allTasks = append(allTasks, name)
		}
		task, _ := graph.GetTask(name)
		for _, dep := range task.Dependencies {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return tasksToRun, allTasks, nil
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, k := range names {
		out = append(out, k+"="+env[k])
	}
	return out
}

func stringsOf(is []domain.InternedString) []string {
	out := make([]string, len(is))
	for i, s := range is {
		out[i] = s.String()
	}
	return out
}
