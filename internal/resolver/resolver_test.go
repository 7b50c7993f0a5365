package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/resolver"
)

func TestResolver_InheritsGlobalByDefault(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"build": {Script: true, DependsOn: []string{"^build"}},
	}
	pkg := domain.Package{Name: "web", Scripts: map[string]string{"build": "go build ./..."}}

	resolved := r.Resolve("web", global, pkg, false, nil)

	buildDef := resolved["build"]
	assert.Equal(t, []string{"^build"}, buildDef.DependsOn)
}

func TestResolver_PerPackageOverrideReplacesWholesale(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"build": {Script: true, DependsOn: []string{"^build"}},
	}
	pkg := domain.Package{
		Name:    "web",
		Scripts: map[string]string{"build": "go build ./..."},
		Tasks: map[string]domain.TaskDefinition{
			"build": {Script: true, DependsOn: []string{"@shared#generate"}},
		},
	}

	resolved := r.Resolve("web", global, pkg, false, nil)

	assert.Equal(t, []string{"@shared#generate"}, resolved["build"].DependsOn)
}

func TestResolver_SentinelInheritsGlobalList(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"build": {Script: true, DependsOn: []string{"^build", "^lint"}},
	}
	pkg := domain.Package{
		Name:    "web",
		Scripts: map[string]string{"build": "go build ./..."},
		Tasks: map[string]domain.TaskDefinition{
			"build": {Script: true, DependsOn: []string{"@shared#generate", "..."}},
		},
	}

	resolved := r.Resolve("web", global, pkg, false, nil)

	assert.Equal(t, []string{"@shared#generate", "^build", "^lint"}, resolved["build"].DependsOn)
}

func TestResolver_ScriptBackedTaskDroppedWithoutScript(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"test": {Script: true},
	}
	pkg := domain.Package{Name: "docs", Scripts: map[string]string{}}

	resolved := r.Resolve("docs", global, pkg, false, nil)

	_, exists := resolved["test"]
	assert.False(t, exists)
}

func TestResolver_GroupingTaskRetainedWithoutScript(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"release": {Script: false},
	}
	pkg := domain.Package{Name: "docs", Scripts: map[string]string{}}

	resolved := r.Resolve("docs", global, pkg, false, nil)

	_, exists := resolved["release"]
	assert.True(t, exists)
}

func TestResolver_AllowListDropsForbiddenReferences(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"build": {Script: true, DependsOn: []string{"^build", "@internal-tool#secret"}},
	}
	pkg := domain.Package{Name: "web", Scripts: map[string]string{"build": "go build ./..."}}

	resolved := r.Resolve("web", global, pkg, false, map[string]bool{"^build": true})

	assert.Equal(t, []string{"^build"}, resolved["build"].DependsOn)
}

func TestResolver_CacheKeyDistinguishesEmptyScriptsFromPopulated(t *testing.T) {
	r := resolver.New()
	global := map[string]domain.TaskDefinition{
		"release": {Script: false},
		"build":   {Script: true},
	}

	root := domain.Package{Name: "root", Scripts: map[string]string{}}
	resolvedRoot := r.Resolve("root", global, root, true, nil)
	_, rootHasBuild := resolvedRoot["build"]
	assert.False(t, rootHasBuild, "a scriptless workspace root must not retain a script-backed task")

	pkg := domain.Package{Name: "web", Scripts: map[string]string{"build": "go build ./..."}}
	resolvedPkg := r.Resolve("web", global, pkg, false, nil)
	_, pkgHasBuild := resolvedPkg["build"]
	assert.True(t, pkgHasBuild, "a cache collision between the root and a real package must not occur")
}
