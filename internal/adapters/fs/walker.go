// Package fs provides filesystem adapters for the Fingerprint Engine:
// a directory walker and a glob-based input/output resolver.
package fs

import (
	iofs "io/fs"
	"iter"
	"path/filepath"
)

var defaultSkipDirs = map[string]bool{".git": true, ".jj": true}

// Walker walks a directory tree, skipping version-control metadata
// directories by default.
type Walker struct{}

// NewWalker creates a Walker.
func NewWalker() *Walker { return &Walker{} }

// WalkFiles yields every regular file under root, skipping .git, .jj,
// and any directory named in ignoreDirs.
func (w *Walker) WalkFiles(root string, ignoreDirs []string) iter.Seq[string] {
	skip := make(map[string]bool, len(defaultSkipDirs)+len(ignoreDirs))
	for name := range defaultSkipDirs {
		skip[name] = true
	}
	for _, name := range ignoreDirs {
		skip[name] = true
	}

	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skip[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}
