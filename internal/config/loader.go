// Package config implements the Configuration Loader (C10): it reads
// the workspace's taskgraph.work.yaml (or a standalone package's
// taskgraph.yaml) and produces a ports.Workspace — the global task
// definitions plus every package's raw, unresolved task overrides —
// for the Task Definition Resolver to merge.
//
// Discovery walks upward from the given directory and dispatches into
// workspace or standalone mode depending on which document it finds.
// The workspace and package document shapes carry the full
// TaskDefinition grammar (before/after/children/script) the Task
// Definition Resolver's merge procedure requires, and per-package
// project discovery resolves glob patterns against the workspace root.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"

	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader by reading YAML documents off a
// FileSystem.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
}

// NewLoader creates a Loader reading from the real filesystem.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS()}
}

// NewLoaderWithFS creates a Loader over a caller-supplied FileSystem,
// for tests.
func NewLoaderWithFS(logger ports.Logger, filesystem FileSystem) *Loader {
	return &Loader{Logger: logger, FS: filesystem}
}

// mode is the configuration shape found at the discovered root.
type mode string

const (
	modeWorkspace  mode = "workspace"
	modeStandalone mode = "standalone"
)

var validProjectName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// DiscoverRoot walks up from cwd looking for a workspace document
// first; a standalone package document is only returned if no
// ancestor carries a workspace document.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	dir := cwd
	var standalone string

	for {
		if _, err := l.FS.Stat(filepath.Join(dir, domain.WorkFileName)); err == nil {
			return dir, nil
		}
		if standalone == "" {
			if _, err := l.FS.Stat(filepath.Join(dir, domain.PackageFileName)); err == nil {
				standalone = dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if standalone != "" {
		return standalone, nil
	}
	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

// Load reads and validates the full workspace configuration rooted at
// cwd or an ancestor of cwd.
func (l *Loader) Load(cwd string) (*ports.Workspace, error) {
	root, err := l.DiscoverRoot(cwd)
	if err != nil {
		return nil, err
	}

	if _, err := l.FS.Stat(filepath.Join(root, domain.WorkFileName)); err == nil {
		return l.loadWorkspace(root)
	}
	if _, err := l.FS.Stat(filepath.Join(root, domain.PackageFileName)); err == nil {
		return l.loadStandalone(root)
	}
	return nil, zerr.With(domain.ErrConfigNotFound, "root", root)
}

func (l *Loader) loadWorkspace(root string) (*ports.Workspace, error) {
	var wf Workfile
	if err := l.readYAML(filepath.Join(root, domain.WorkFileName), &wf); err != nil {
		return nil, err
	}

	workspaceRoot := resolveRootDir(root, wf.Root)
	globalTasks, err := convertTaskDefs(wf.Tasks, wf.Tools)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve workspace task definitions")
	}

	projectPaths, err := l.resolveProjectPaths(workspaceRoot, wf.Packages)
	if err != nil {
		return nil, err
	}

	packages := make(map[string]domain.Package, len(projectPaths))
	for _, projectPath := range projectPaths {
		pkg, skip, err := l.loadPackage(workspaceRoot, projectPath, wf.Tools)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		if existing, ok := packages[pkg.Name]; ok {
			err := zerr.With(domain.ErrDuplicateProjectName, "project_name", pkg.Name)
			err = zerr.With(err, "first_occurrence", existing.Dir)
			err = zerr.With(err, "duplicate_at", pkg.Dir)
			return nil, err
		}
		packages[pkg.Name] = pkg
	}

	lockfilePath := ""
	if wf.Lockfile != "" {
		lockfilePath = filepath.Clean(filepath.Join(workspaceRoot, wf.Lockfile))
		if _, err := l.FS.Stat(lockfilePath); err != nil {
			return nil, zerr.With(domain.ErrLockfileMissing, "lockfile", lockfilePath)
		}
	}

	return &ports.Workspace{
		Root:         workspaceRoot,
		LockfilePath: lockfilePath,
		GlobalTasks:  globalTasks,
		Packages:     packages,
	}, nil
}

func (l *Loader) loadStandalone(root string) (*ports.Workspace, error) {
	pkg, skip, err := l.loadPackage(root, root, nil)
	if err != nil {
		return nil, err
	}
	if skip {
		return nil, zerr.With(domain.ErrConfigNotFound, "root", root)
	}

	return &ports.Workspace{
		Root:        root,
		GlobalTasks: map[string]domain.TaskDefinition{},
		Packages:    map[string]domain.Package{pkg.Name: pkg},
	}, nil
}

// resolveProjectPaths expands the workspace's glob patterns into a
// deduplicated, sorted list of candidate package directories.
func (l *Loader) resolveProjectPaths(workspaceRoot string, patterns []string) ([]string, error) {
	found := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := l.FS.Glob(filepath.Join(workspaceRoot, pattern))
		if err != nil {
			return nil, zerr.Wrap(err, "glob pattern failed: "+pattern)
		}
		for _, m := range matches {
			found[m] = struct{}{}
		}
	}
	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths, nil
}

// loadPackage reads one package's taskgraph.yaml. skip is true when the
// candidate directory has no such document and should be silently
// dropped from workspace discovery (e.g. a glob match that isn't a
// project).
func (l *Loader) loadPackage(workspaceRoot, projectPath string, workspaceTools map[string]string) (domain.Package, bool, error) {
	isDir, err := l.FS.IsDir(projectPath)
	if err != nil {
		return domain.Package{}, false, err
	}
	if !isDir {
		return domain.Package{}, true, nil
	}

	packagePath := filepath.Join(projectPath, domain.PackageFileName)
	if _, err := l.FS.Stat(packagePath); errors.Is(err, fs.ErrNotExist) {
		relPath, _ := filepath.Rel(workspaceRoot, projectPath)
		if l.Logger != nil {
			l.Logger.Warn(fmt.Sprintf("%s missing in %s, skipping", domain.PackageFileName, relPath))
		}
		return domain.Package{}, true, nil
	}

	var pf PackageFile
	if err := l.readYAML(packagePath, &pf); err != nil {
		return domain.Package{}, false, err
	}

	relPath, _ := filepath.Rel(workspaceRoot, projectPath)
	if pf.Project == "" {
		return domain.Package{}, false, zerr.With(domain.ErrMissingProjectName, "directory", relPath)
	}
	if !validProjectName.MatchString(pf.Project) {
		err := zerr.With(domain.ErrInvalidProjectName, "project_name", pf.Project)
		return domain.Package{}, false, zerr.With(err, "directory", relPath)
	}

	mergedTools := mergeTools(workspaceTools, pf.Tools)
	tasks, err := convertTaskDefs(pf.Tasks, mergedTools)
	if err != nil {
		return domain.Package{}, false, zerr.With(err, "project", pf.Project)
	}

	return domain.Package{
		Name:         pf.Project,
		Dir:          resolveRoot(packagePath, pf.Root),
		Version:      pf.Version,
		Scripts:      scriptsOf(pf.Tasks),
		Tasks:        tasks,
		Dependencies: dependenciesOf(pf.Dependencies),
	}, false, nil
}

func scriptsOf(tasks map[string]*TaskDTO) map[string]string {
	out := make(map[string]string, len(tasks))
	for name, dto := range tasks {
		if dto.Cmd != "" {
			out[name] = dto.Cmd
		}
	}
	return out
}

func dependenciesOf(deps map[string]string) []domain.PackageDependency {
	if len(deps) == 0 {
		return nil
	}
	out := make([]domain.PackageDependency, 0, len(deps))
	for name, versionRange := range deps {
		out = append(out, domain.PackageDependency{Name: name, VersionRange: versionRange})
	}
	slices.SortFunc(out, func(a, b domain.PackageDependency) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// convertTaskDefs turns a document's raw task DTOs into
// domain.TaskDefinitions, resolving each task's tool aliases against
// toolSet.
func convertTaskDefs(dtos map[string]*TaskDTO, toolSet map[string]string) (map[string]domain.TaskDefinition, error) {
	out := make(map[string]domain.TaskDefinition, len(dtos))
	for name, dto := range dtos {
		if dto == nil {
			return nil, zerr.With(domain.ErrInvalidTaskDefinition, "task", name)
		}
		if err := validateTaskName(name); err != nil {
			return nil, err
		}

		rebuild, err := parseRebuildStrategy(dto.Rebuild)
		if err != nil {
			return nil, zerr.With(err, "task", name)
		}

		tools, err := resolveTools(dto.Tools, toolSet)
		if err != nil {
			return nil, zerr.With(err, "task", name)
		}

		out[name] = domain.TaskDefinition{
			Name:            name,
			DependsOn:       dto.DependsOn,
			Before:          dto.Before,
			After:           dto.After,
			Children:        dto.Children,
			Script:          dto.Cmd != "",
			Inputs:          dto.Input,
			Outputs:         dto.Output,
			Tools:           tools,
			RebuildStrategy: rebuild,
			Environment:     dto.Environment,
			TimeoutSeconds:  dto.TimeoutSecs,
		}
	}
	return out, nil
}

func resolveTools(aliases []string, toolSet map[string]string) (map[string]string, error) {
	if len(aliases) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(aliases))
	for _, alias := range aliases {
		version, ok := toolSet[alias]
		if !ok {
			return nil, zerr.With(domain.ErrMissingTool, "tool_alias", alias)
		}
		out[alias] = version
	}
	return out, nil
}

func mergeTools(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func validateTaskName(name string) error {
	if name == "all" {
		return zerr.With(domain.ErrReservedTaskName, "task_name", name)
	}
	for _, r := range name {
		if r == '#' || r == '^' || r == '@' {
			return zerr.With(domain.ErrInvalidTaskName, "task_name", name)
		}
	}
	return nil
}

func parseRebuildStrategy(value string) (domain.RebuildStrategy, error) {
	switch value {
	case "", "on-change":
		return domain.RebuildOnChange, nil
	case "always":
		return domain.RebuildAlways, nil
	default:
		return "", domain.ErrInvalidRebuildStrategy
	}
}

// resolveRoot resolves a "root" override declared in the document at
// configPath, relative to configPath's own directory.
func resolveRoot(configPath, configuredRoot string) string {
	return resolveRootDir(filepath.Dir(configPath), configuredRoot)
}

// resolveRootDir resolves a "root" override relative to baseDir.
func resolveRootDir(baseDir, configuredRoot string) string {
	if configuredRoot == "" {
		return filepath.Clean(baseDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(baseDir, configuredRoot))
}

func (l *Loader) readYAML(path string, target any) error {
	data, err := l.FS.ReadFile(path)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}
	return nil
}
