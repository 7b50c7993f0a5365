// Package resolver implements the Task Definition Resolver (C4): it
// merges a workspace's global task definitions with each package's own
// overrides into one concrete definition map per package.
//
// Resolution walks a getTaskDefinition-style merge chain: global
// definition, package override, and the "..." inherit sentinel are
// combined field by field into the final concrete definition.
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.taskgraph.dev/core/internal/core/domain"
)

const sentinelInherit = "..."

// Resolver merges global and per-package task definitions.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]map[string]domain.TaskDefinition
}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{cache: make(map[string]map[string]domain.TaskDefinition)}
}

// Resolve produces the concrete task-definition map for one package by
// running the five-step merge procedure over every task name visible
// to it. allowedRefs implements the optional allow-list filter; nil
// means "no filter".
func (r *Resolver) Resolve(packageName string, global map[string]domain.TaskDefinition, pkg domain.Package, isReleaseGroupRoot bool, allowedRefs map[string]bool) map[string]domain.TaskDefinition {
	key := cacheKey(packageName, pkg.Scripts, global, isReleaseGroupRoot)

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	merged := make(map[string]domain.TaskDefinition, len(global))
	for name, def := range global {
		if override, ok := pkg.Tasks[name]; ok {
			merged[name] = mergeDefinition(def, override)
			continue
		}
		merged[name] = def
	}
	for name, def := range pkg.Tasks {
		if _, alreadyMerged := merged[name]; !alreadyMerged {
			merged[name] = def
		}
	}

	for name, def := range merged {
		if def.Script && !hasScript(pkg, name) {
			delete(merged, name)
		}
	}

	if allowedRefs != nil {
		for name, def := range merged {
			merged[name] = filterReferences(def, allowedRefs)
		}
	}

	r.mu.Lock()
	r.cache[key] = merged
	r.mu.Unlock()
	return merged
}

// mergeDefinition applies a per-package override onto a global
// definition: each list field either inherits the global list wholesale
// (via the "..." sentinel, which is replaced by the global field's
// contents) or replaces it outright.
func mergeDefinition(global, override domain.TaskDefinition) domain.TaskDefinition {
	merged := override
	merged.DependsOn = mergeList(global.DependsOn, override.DependsOn)
	merged.Before = mergeList(global.Before, override.Before)
	merged.After = mergeList(global.After, override.After)
	merged.Children = mergeList(global.Children, override.Children)
	return merged
}

func mergeList(globalList, overrideList []string) []string {
	if overrideList == nil {
		return globalList
	}
	out := make([]string, 0, len(overrideList)+len(globalList))
	for _, entry := range overrideList {
		if entry == sentinelInherit {
			out = append(out, globalList...)
			continue
		}
		out = append(out, entry)
	}
	return out
}

func hasScript(pkg domain.Package, taskName string) bool {
	_, ok := pkg.Scripts[taskName]
	return ok
}

func filterReferences(def domain.TaskDefinition, allowed map[string]bool) domain.TaskDefinition {
	def.DependsOn = filterList(def.DependsOn, allowed)
	def.Before = filterList(def.Before, allowed)
	def.After = filterList(def.After, allowed)
	return def
}

func filterList(list []string, allowed map[string]bool) []string {
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, ref := range list {
		if isSentinelOrWildcard(ref) || allowed[ref] {
			out = append(out, ref)
		}
	}
	return out
}

func isSentinelOrWildcard(ref string) bool {
	return ref == sentinelInherit || ref == "*" || ref == "^*"
}

func cacheKey(packageName string, scripts map[string]string, global map[string]domain.TaskDefinition, isReleaseGroupRoot bool) string {
	h := sha256.New()
	h.Write([]byte(packageName))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(isReleaseGroupRoot)))
	h.Write([]byte{0})
	h.Write([]byte(sortedJoin(scriptNames(scripts))))
	h.Write([]byte{0})
	h.Write([]byte(sortedJoin(definitionNames(global))))
	return hex.EncodeToString(h.Sum(nil))
}

func scriptNames(scripts map[string]string) []string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	return names
}

func definitionNames(defs map[string]domain.TaskDefinition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

func sortedJoin(names []string) string {
	sort.Strings(names)
	return strings.Join(names, ",")
}
