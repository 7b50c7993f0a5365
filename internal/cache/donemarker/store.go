// Package donemarker implements the Done-Marker Store (C2): the local,
// per-package record of a task's last successful fingerprint and the
// output files it produced.
package donemarker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.taskgraph.dev/core/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.DoneMarkerStore using one JSON file per task,
// named by the hex SHA-256 of the task name.
type Store struct{}

// New creates a Store.
func New() *Store {
	return &Store{}
}

// Get returns the recorded done-marker for taskName under packageDir, or
// (nil, nil) if none exists.
func (s *Store) Get(packageDir, taskName string) (*domain.DoneMarker, error) {
	path := markerPath(packageDir, taskName)

	//nolint:gosec // path is derived from a trusted package directory and a content hash
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerReadFailed.Error()), "task", taskName)
	}

	var marker domain.DoneMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerReadFailed.Error()), "task", taskName)
	}
	return &marker, nil
}

// Put writes marker for its TaskName under packageDir, atomically.
func (s *Store) Put(packageDir string, marker domain.DoneMarker) error {
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}

	path := markerPath(packageDir, marker.TaskName)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}

	tmp, err := os.CreateTemp(dir, "marker-*.tmp")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}
	if err := os.Chmod(tmp.Name(), domain.PrivateFilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrDoneMarkerWriteFailed.Error()), "task", marker.TaskName)
	}
	return nil
}

func markerPath(packageDir, taskName string) string {
	sum := sha256.Sum256([]byte(taskName))
	return filepath.Join(domain.DefaultDoneMarkerPath(packageDir), hex.EncodeToString(sum[:])+".json")
}
