// Package graph implements the Graph Builder (C5): it expands resolved
// task definitions and a caller-supplied list of requested task names
// into the executable leaf-task DAG.
//
// Materialization is a Prepare/topoDeps-style fan-out traversal,
// paired with a cycle detector and the level/weight passes
// internal/core/domain runs once materialization is complete.
package graph

import (
	"strings"

	"github.com/Masterminds/semver"
	"go.taskgraph.dev/core/internal/core/domain"
)

// Builder materializes a domain.Graph from a workspace's resolved
// packages and a set of requested task names.
type Builder struct {
	packages map[string]domain.Package
}

// New creates a Builder over the given resolved packages (keyed by
// package name; each Package.Tasks must already be the Task Definition
// Resolver's output, not raw per-package overrides).
func New(packages map[string]domain.Package) *Builder {
	return &Builder{packages: packages}
}

// materializer tracks the leaf tasks created so far during one Build
// call, keyed by "package#task", so the strong-dependency fan-out can
// recursively materialize a task's own dependencies without creating
// duplicates.
type materializer struct {
	packages map[string]domain.Package
	graph    *domain.Graph
	done     map[string]bool
}

// Build materializes every requested task across every package that
// defines it, recursively materializes strong-dependency closures and
// grouping-task children, then validates the result (cycle detection
// plus the level/weight passes).
func (b *Builder) Build(requestedNames []string) (*domain.Graph, error) {
	g := domain.NewGraph()
	m := &materializer{packages: b.packages, graph: g, done: make(map[string]bool)}

	materializedAny := false
	for pkgName, pkg := range b.packages {
		for _, name := range requestedNames {
			if _, ok := pkg.Tasks[name]; !ok {
				continue
			}
			if err := m.materialize(pkgName, name); err != nil {
				return nil, err
			}
			materializedAny = true
		}
	}

	if !materializedAny {
		return nil, domain.ErrNoTaskMaterialized
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// materialize walks a grouping task's children down to script-backed
// leaves, creating a LeafTask for each, and recursively materializes
// every strong dependency so its predecessors exist in the graph before
// edges are added.
func (m *materializer) materialize(pkgName, taskName string) error {
	pkg, ok := m.packages[pkgName]
	if !ok {
		return nil
	}
	def, ok := pkg.Tasks[taskName]
	if !ok {
		return nil
	}

	qualified := qualify(pkgName, taskName)
	if m.done[qualified] {
		return nil
	}
	m.done[qualified] = true

	if !def.Script {
		for _, child := range def.Children {
			if err := m.materialize(pkgName, child); err != nil {
				return err
			}
		}
		return nil
	}

	deps, err := m.expandStrongDeps(pkg, def)
	if err != nil {
		return err
	}

	// pkg.Scripts holds a shell command string per task, not argv.
	task := domain.Task{
		Name:            domain.NewInternedString(qualified),
		Package:         domain.NewInternedString(pkgName),
		Command:         []string{"sh", "-c", pkg.Scripts[taskName]},
		Inputs:          domain.NewInternedStrings(def.Inputs),
		Outputs:         domain.NewInternedStrings(def.Outputs),
		Tools:           def.Tools,
		Environment:     def.Environment,
		WorkingDir:      domain.NewInternedString(pkg.Dir),
		RebuildStrategy: def.RebuildStrategy,
		TimeoutSeconds:  def.TimeoutSeconds,
		Dependencies:    domain.NewInternedStrings(deps),
	}
	if err := m.graph.AddTask(&task); err != nil {
		return err
	}
	return nil
}

// expandStrongDeps expands a task's dependsOn list into concrete
// qualified leaf-task names, materializing each predecessor along the
// way. Edges into a package that does not satisfy the declaring
// package's version constraint on it are silently dropped.
func (m *materializer) expandStrongDeps(pkg domain.Package, def domain.TaskDefinition) ([]string, error) {
	var out []string
	for _, ref := range def.DependsOn {
		switch {
		case ref == "":
			continue
		case strings.HasPrefix(ref, "^"):
			taskName := strings.TrimPrefix(ref, "^")
			for _, depPkgName := range m.dependencyPackageNames(pkg) {
				if !m.versionSatisfied(pkg, depPkgName) {
					continue
				}
				depPkg := m.packages[depPkgName]
				if _, ok := depPkg.Tasks[taskName]; !ok {
					continue
				}
				if err := m.materialize(depPkgName, taskName); err != nil {
					return nil, err
				}
				out = append(out, m.leafNamesFor(depPkgName, taskName)...)
			}
		case strings.HasPrefix(ref, "@"):
			rest := strings.TrimPrefix(ref, "@")
			parts := strings.SplitN(rest, "#", 2)
			if len(parts) != 2 {
				return nil, domain.ErrInvalidTaskReference
			}
			depPkgName, taskName := parts[0], parts[1]
			if _, ok := m.packages[depPkgName]; !ok {
				return nil, domain.ErrInvalidTaskReference
			}
			if err := m.materialize(depPkgName, taskName); err != nil {
				return nil, err
			}
			out = append(out, m.leafNamesFor(depPkgName, taskName)...)
		default:
			if err := m.materialize(pkg.Name, ref); err != nil {
				return nil, err
			}
			out = append(out, m.leafNamesFor(pkg.Name, ref)...)
		}
	}
	return out, nil
}

// leafNamesFor returns the qualified leaf-task names a (possibly
// grouping) task name expands to within pkgName.
func (m *materializer) leafNamesFor(pkgName, taskName string) []string {
	pkg, ok := m.packages[pkgName]
	if !ok {
		return nil
	}
	def, ok := pkg.Tasks[taskName]
	if !ok {
		return nil
	}
	if def.Script {
		return []string{qualify(pkgName, taskName)}
	}
	var out []string
	for _, child := range def.Children {
		out = append(out, m.leafNamesFor(pkgName, child)...)
	}
	return out
}

func (m *materializer) dependencyPackageNames(pkg domain.Package) []string {
	names := make([]string, 0, len(pkg.Dependencies))
	for _, dep := range pkg.Dependencies {
		names = append(names, dep.Name)
	}
	return names
}

// versionSatisfied reports whether depPkgName's declared version
// satisfies the version range pkg declared it against. An unparsable
// constraint or version is treated as unsatisfied — silently dropping
// the edge rather than aborting the build over it.
func (m *materializer) versionSatisfied(pkg domain.Package, depPkgName string) bool {
	var constraintStr string
	for _, dep := range pkg.Dependencies {
		if dep.Name == depPkgName {
			constraintStr = dep.VersionRange
			break
		}
	}
	if constraintStr == "" {
		return true
	}

	constraint, err := semver.NewConstraint(constraintStr)
	if err != nil {
		return false
	}
	depPkg, ok := m.packages[depPkgName]
	if !ok {
		return false
	}
	version, err := semver.NewVersion(depPkg.Version)
	if err != nil {
		return false
	}
	return constraint.Check(version)
}

func qualify(pkgName, taskName string) string {
	return pkgName + "#" + taskName
}
