package config

// Workfile is the workspace-level configuration document
// (taskgraph.work.yaml): package layout, workspace-wide tool aliases,
// and the global task definitions every package inherits from.
type Workfile struct {
	Root     string              `yaml:"root"`
	Lockfile string              `yaml:"lockfile"`
	Tools    map[string]string   `yaml:"tools"`
	Packages []string            `yaml:"packages"`
	Tasks    map[string]*TaskDTO `yaml:"tasks"`
}

// PackageFile is a single package's configuration document
// (taskgraph.yaml): its own manifest, task overrides, and declared
// dependencies on other workspace packages.
type PackageFile struct {
	Project      string              `yaml:"project"`
	Version      string              `yaml:"version"`
	Root         string              `yaml:"root"`
	Tools        map[string]string   `yaml:"tools"`
	Dependencies map[string]string   `yaml:"dependencies"`
	Tasks        map[string]*TaskDTO `yaml:"tasks"`
}

// TaskDTO is one task's raw, unresolved definition as written in either
// document. It mirrors domain.TaskDefinition's grammar directly: list
// fields may contain the "..." inheritance sentinel, "^T"/"@pkg#T"/"*"
// references, prior to the Task Definition Resolver's merge pass.
type TaskDTO struct {
	DependsOn   []string          `yaml:"dependsOn"`
	Before      []string          `yaml:"before"`
	After       []string          `yaml:"after"`
	Children    []string          `yaml:"children"`
	Cmd         string            `yaml:"cmd"`
	Input       []string          `yaml:"input"`
	Output      []string          `yaml:"output"`
	Tools       []string          `yaml:"tools"`
	Environment map[string]string `yaml:"environment"`
	WorkingDir  string            `yaml:"workingDir"`
	Rebuild     string            `yaml:"rebuild"`
	TimeoutSecs int               `yaml:"timeoutSeconds"`
}
