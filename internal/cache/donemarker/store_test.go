package donemarker_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.taskgraph.dev/core/internal/cache/donemarker"
	"go.taskgraph.dev/core/internal/core/domain"
)

func TestStore_GetMissing(t *testing.T) {
	store := donemarker.New()

	got, err := store.Get(t.TempDir(), "build")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PutAndGet(t *testing.T) {
	store := donemarker.New()
	dir := t.TempDir()

	marker := domain.DoneMarker{
		TaskName:    "build",
		Fingerprint: "abc123",
		Outputs: []domain.OutputFile{
			{Path: "bin/web", Size: 1024, Hash: "deadbeef", ModTime: time.Now().Truncate(time.Second)},
		},
		RecordedAt: time.Now().Truncate(time.Second),
	}

	require.NoError(t, store.Put(dir, marker))

	got, err := store.Get(dir, "build")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, marker.TaskName, got.TaskName)
	assert.Equal(t, marker.Fingerprint, got.Fingerprint)
	require.Len(t, got.Outputs, 1)
	assert.Equal(t, marker.Outputs[0].Path, got.Outputs[0].Path)
}

func TestStore_PutOverwrites(t *testing.T) {
	store := donemarker.New()
	dir := t.TempDir()

	require.NoError(t, store.Put(dir, domain.DoneMarker{TaskName: "build", Fingerprint: "first"}))
	require.NoError(t, store.Put(dir, domain.DoneMarker{TaskName: "build", Fingerprint: "second"}))

	got, err := store.Get(dir, "build")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Fingerprint)
}

func TestStore_GetCorruptJSON(t *testing.T) {
	store := donemarker.New()
	dir := t.TempDir()

	require.NoError(t, store.Put(dir, domain.DoneMarker{TaskName: "build", Fingerprint: "first"}))

	markers, err := filepath.Glob(filepath.Join(domain.DefaultDoneMarkerPath(dir), "*.json"))
	require.NoError(t, err)
	require.Len(t, markers, 1)
	require.NoError(t, os.WriteFile(markers[0], []byte("{not json"), domain.PrivateFilePerm))

	_, err = store.Get(dir, "build")
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrDoneMarkerReadFailed.Error())
}

func TestStore_DistinguishesTasksByName(t *testing.T) {
	store := donemarker.New()
	dir := t.TempDir()

	require.NoError(t, store.Put(dir, domain.DoneMarker{TaskName: "build", Fingerprint: "build-fp"}))
	require.NoError(t, store.Put(dir, domain.DoneMarker{TaskName: "test", Fingerprint: "test-fp"}))

	build, err := store.Get(dir, "build")
	require.NoError(t, err)
	test, err := store.Get(dir, "test")
	require.NoError(t, err)

	assert.Equal(t, "build-fp", build.Fingerprint)
	assert.Equal(t, "test-fp", test.Fingerprint)
}
