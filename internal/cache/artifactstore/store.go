// Package artifactstore implements the Shared Artifact Store (C3): a
// content-addressed store of task output files, keyed by fingerprint.
//
// One entry per key lives under a root cache directory as a plain
// directory of files, with a sidecar manifest recording execution
// duration for time-saved reporting.
package artifactstore

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"go.trai.ch/zerr"
)

const manifestFileName = "manifest.json"
const filesDirName = "files"

// Store implements ports.ArtifactStore as one directory per fingerprint
// under root, each holding a manifest.json and a files/ subtree mirroring
// the task's declared output paths.
type Store struct {
	root string

	hits             atomic.Int64
	misses           atomic.Int64
	bytesRestored    atomic.Int64
	timeSavedMillis  atomic.Int64
	corruptionEvents atomic.Int64
}

// New creates a Store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

// Put publishes outputFiles under fingerprint. outputFiles maps each
// output's declared path to the absolute file to copy from. Publication
// happens into a temporary sibling directory, then is made visible with
// a single rename, so a concurrent Get never observes a partial entry.
func (s *Store) Put(fingerprint string, manifest domain.Manifest, outputFiles map[string]string) error {
	entryDir := s.entryDir(fingerprint)
	tmpDir := entryDir + ".tmp"

	if err := os.RemoveAll(tmpDir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
	}
	filesDir := filepath.Join(tmpDir, filesDirName)
	if err := os.MkdirAll(filesDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
	}

	for _, out := range manifest.Outputs {
		src, ok := outputFiles[out.Path]
		if !ok {
			return zerr.With(zerr.New(domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint, "missing-output", out.Path)
		}
		dst := filepath.Join(filesDir, out.Path)
		if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
		}
		if err := copyFile(src, dst); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint, "output", out.Path)
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, manifestFileName), data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
	}

	if err := os.RemoveAll(entryDir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
	}
	if err := os.Rename(tmpDir, entryDir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCachePublishFailed.Error()), "fingerprint", fingerprint)
	}
	return nil
}

// Get returns the parsed entry for fingerprint.
func (s *Store) Get(fingerprint string) (*domain.CacheEntry, error) {
	entryDir := s.entryDir(fingerprint)
	manifestPath := filepath.Join(entryDir, manifestFileName)

	//nolint:gosec // path is derived from a trusted store root and a content-addressed key
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.misses.Add(1)
			return nil, domain.ErrCacheMiss
		}
		s.corruptionEvents.Add(1)
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheCorrupt.Error()), "fingerprint", fingerprint)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		s.corruptionEvents.Add(1)
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheCorrupt.Error()), "fingerprint", fingerprint)
	}
	if manifest.Fingerprint != fingerprint {
		s.corruptionEvents.Add(1)
		return nil, zerr.With(zerr.New(domain.ErrCacheCorrupt.Error()), "fingerprint", fingerprint, "manifest-fingerprint", manifest.Fingerprint)
	}

	s.hits.Add(1)
	s.timeSavedMillis.Add(manifest.OriginalRuntimeMs)
	return &domain.CacheEntry{Manifest: manifest, Dir: entryDir}, nil
}

// Restore copies every output file recorded in entry's manifest into
// packageDir, preserving each file's recorded modification time so
// downstream tools that compare sidecar timestamps against output
// timestamps are not confused by a fresh restore time.
func (s *Store) Restore(entry *domain.CacheEntry, packageDir string) error {
	filesDir := filepath.Join(entry.Dir, filesDirName)

	for _, out := range entry.Manifest.Outputs {
		src := filepath.Join(filesDir, out.Path)
		dst := filepath.Join(packageDir, out.Path)

		info, err := os.Stat(src)
		if err != nil {
			s.corruptionEvents.Add(1)
			return zerr.With(zerr.Wrap(err, domain.ErrCacheCorrupt.Error()), "fingerprint", entry.Manifest.Fingerprint, "output", out.Path)
		}
		if info.Size() != out.Size {
			s.corruptionEvents.Add(1)
			return zerr.With(zerr.New(domain.ErrCacheCorrupt.Error()), "fingerprint", entry.Manifest.Fingerprint, "output", out.Path)
		}

		if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
			return zerr.Wrap(err, domain.ErrCacheCorrupt.Error())
		}
		if err := copyFile(src, dst); err != nil {
			return zerr.Wrap(err, domain.ErrCacheCorrupt.Error())
		}
		if err := os.Chtimes(dst, out.ModTime, out.ModTime); err != nil {
			return zerr.Wrap(err, domain.ErrCacheCorrupt.Error())
		}
		s.bytesRestored.Add(out.Size)
	}
	return nil
}

// Stats returns the store's cumulative counters.
func (s *Store) Stats() ports.ArtifactStoreStats {
	return ports.ArtifactStoreStats{
		Hits:             s.hits.Load(),
		Misses:           s.misses.Load(),
		BytesRestored:    s.bytesRestored.Load(),
		TimeSavedMillis:  s.timeSavedMillis.Load(),
		CorruptionEvents: s.corruptionEvents.Load(),
	}
}

func (s *Store) entryDir(fingerprint string) string {
	return filepath.Join(s.root, fingerprint)
}

func copyFile(src, dst string) error {
	//nolint:gosec // src is resolved from declared, trusted output globs
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	//nolint:gosec // dst is derived from a trusted store root and a content-addressed key
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, domain.FilePerm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
