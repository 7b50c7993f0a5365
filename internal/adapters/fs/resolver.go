package fs

import (
	"path/filepath"
	"sort"

	"go.taskgraph.dev/core/internal/core/domain"
	"go.trai.ch/zerr"
)

// Resolver implements ports.InputResolver by expanding glob patterns
// relative to a package directory.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// ResolveInputs expands globs into sorted, deduplicated absolute paths.
// Every pattern must match at least one file.
func (r *Resolver) ResolveInputs(globs []string, packageDir string) ([]string, error) {
	return resolveGlobs(globs, packageDir, true)
}

// ResolveOutputs expands globs the same way as ResolveInputs, but a
// pattern matching nothing is not an error: declared outputs need not
// exist yet when a task has never run.
func (r *Resolver) ResolveOutputs(globs []string, packageDir string) ([]string, error) {
	return resolveGlobs(globs, packageDir, false)
}

func resolveGlobs(globs []string, packageDir string, requireMatch bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range globs {
		matches, err := filepath.Glob(filepath.Join(packageDir, pattern))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrInputNotFound.Error()), "pattern", pattern)
		}
		if len(matches) == 0 && requireMatch {
			return nil, zerr.With(zerr.New(domain.ErrInputNotFound.Error()), "pattern", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}
