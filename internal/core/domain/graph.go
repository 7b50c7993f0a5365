// Package domain contains the core domain models for the build graph:
// packages, tasks, the materialized graph, and the state machine that
// drives a leaf task from Pending to a terminal state.
package domain

import (
	"iter"
	"slices"

	"go.trai.ch/zerr"
)

// Graph is the materialized BuildGraph: nodes are leaf Tasks, edges are
// strong-dependency relationships recorded in Task.Dependencies.
type Graph struct {
	tasks          map[InternedString]Task
	executionOrder []InternedString
	dependents     map[InternedString][]InternedString
	root           string
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		tasks: make(map[InternedString]Task),
	}
}

// AddTask adds a task to the graph. It returns an error if a task with
// the same name already exists.
func (g *Graph) AddTask(t *Task) error {
	if _, exists := g.tasks[t.Name]; exists {
		return zerr.With(ErrTaskAlreadyExists, "task_name", t.Name.String())
	}
	g.tasks[t.Name] = *t
	return nil
}

// Validate checks for cycles in the graph using a three-color DFS and,
// on success, populates the execution order, the dependents map, and
// each task's Level (one plus the maximum level of its predecessors)
// and Weight (longest remaining critical path through its successors).
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.tasks))
	g.dependents = g.buildDependentsMap()
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		task, exists := g.tasks[u]
		if !exists {
			return zerr.With(ErrMissingDependency, "dependency", u.String())
		}

		for _, dep := range task.Dependencies {
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	// Iterate over all tasks, sorted, to cover disconnected components
	// with a deterministic order.
	sortedNames := g.getSortedTaskNames()

	for _, name := range sortedNames {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	g.computeLevels()
	g.computeWeights()

	return nil
}

// computeLevels assigns each task's Level as one plus the maximum level
// of its predecessors; roots (no dependencies) get level 0. Relies on
// executionOrder already being a valid topological order (predecessors
// before successors).
func (g *Graph) computeLevels() {
	for _, name := range g.executionOrder {
		task := g.tasks[name]
		level := 0
		for _, dep := range task.Dependencies {
			if depLevel := g.tasks[dep].Level + 1; depLevel > level {
				level = depLevel
			}
		}
		task.Level = level
		g.tasks[name] = task
	}
}

// computeWeights assigns each task's Weight as the longest remaining
// critical path through its successors: a task with no dependents has
// weight 0; otherwise weight is one plus the maximum weight among its
// dependents. Processed in reverse execution order so every dependent
// is finalized before its predecessors are visited.
func (g *Graph) computeWeights() {
	for i := len(g.executionOrder) - 1; i >= 0; i-- {
		name := g.executionOrder[i]
		weight := 0
		for _, dependent := range g.dependents[name] {
			if w := g.tasks[dependent].Weight + 1; w > weight {
				weight = w
			}
		}
		task := g.tasks[name]
		task.Weight = weight
		g.tasks[name] = task
	}
}

// buildDependentsMap creates a reverse adjacency list (dependents map).
func (g *Graph) buildDependentsMap() map[InternedString][]InternedString {
	dependents := make(map[InternedString][]InternedString)
	for taskName := range g.tasks {
		task := g.tasks[taskName]
		for _, dep := range task.Dependencies {
			dependents[dep] = append(dependents[dep], task.Name)
		}
	}
	return dependents
}

// getSortedTaskNames returns all task names sorted alphabetically.
func (g *Graph) getSortedTaskNames() []InternedString {
	sortedNames := make([]InternedString, 0, len(g.tasks))
	for name := range g.tasks {
		sortedNames = append(sortedNames, name)
	}
	slices.SortFunc(sortedNames, func(a, b InternedString) int {
		if a.String() < b.String() {
			return -1
		}
		if a.String() > b.String() {
			return 1
		}
		return 0
	})
	return sortedNames
}

// buildCycleError constructs an error carrying the offending cycle path.
func (g *Graph) buildCycleError(path []InternedString, dep InternedString) error {
	cyclePath := ""
	startIdx := -1
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return zerr.With(ErrCycleDetected, "cycle", cyclePath)
}

// Walk returns an iterator that yields tasks in topological execution
// order. It assumes Validate has already returned nil.
func (g *Graph) Walk() iter.Seq[Task] {
	return func(yield func(Task) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.tasks[name]) {
				return
			}
		}
	}
}

// Dependents returns the tasks that depend on the given task, empty if
// none.
func (g *Graph) Dependents(task InternedString) []InternedString {
	return g.dependents[task]
}

// TransitiveDependents returns every task reachable by following
// Dependents edges from task, used by the scheduler to mark the full
// successor set Skipped on failure (spec: failure containment).
func (g *Graph) TransitiveDependents(task InternedString) []InternedString {
	seen := make(map[InternedString]bool)
	var out []InternedString
	var walk func(InternedString)
	walk = func(n InternedString) {
		for _, d := range g.dependents[n] {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				walk(d)
			}
		}
	}
	walk(task)
	return out
}

// TaskCount returns the total number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// GetTask retrieves a task by its name.
func (g *Graph) GetTask(name InternedString) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// SetTask replaces an existing task's record, used by the scheduler to
// persist state transitions (Level/Weight are set during Validate, but
// the scheduler also needs a way to look tasks up by value consistently;
// this keeps Graph as the single source of truth for task records).
func (g *Graph) SetTask(t Task) {
	g.tasks[t.Name] = t
}

// Root returns the root directory of the build.
func (g *Graph) Root() string {
	return g.root
}

// SetRoot sets the root directory of the build.
func (g *Graph) SetRoot(path string) {
	g.root = path
}
