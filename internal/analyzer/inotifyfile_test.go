package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkganalysis/wheelbarrow/internal/fswatch"
	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// TestInotifyFileDiffEmitsAddForNewlyWatchedPaths exercises spec section
// 8 scenario 4's shape: a path with no prior counter gains one once a
// later trigger's snapshot observes activity on it, and the diff record
// is an ADD carrying that drained count. fsnotify's event surface
// (Write/Create/Remove/Rename/Chmod) differs from the original's raw
// inotify mask, so this drives real writes rather than reproducing the
// scenario's literal open+read+close counts.
func TestInotifyFileDiffEmitsAddForNewlyWatchedPaths(t *testing.T) {
	facility, err := fswatch.New()
	require.NoError(t, err)
	defer facility.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "watched")
	require.NoError(t, os.WriteFile(path, []byte("seed"), 0o644))

	f := NewInotifyFile(facility)

	// EXTRACT: first snapshot starts the watch; no activity yet.
	require.NoError(t, f.RunAnalysis(context.Background(), message.Extract, []message.PathPair{{Absolute: path}}, nil))

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	// INSTALL: drains the write that happened since EXTRACT.
	require.NoError(t, f.RunAnalysis(context.Background(), message.Install, []message.PathPair{{Absolute: path}}, nil))

	out := &message.InnerResult{}
	require.NoError(t, f.AddDiffResults(message.DiffPair{Before: message.Extract, After: message.Install}, out))

	require.Len(t, out.FileSystemResults, 1)
	assert.Equal(t, path, out.FileSystemResults[0].Path)
	assert.Equal(t, message.Add, out.FileSystemResults[0].Type)
	assert.Greater(t, out.FileSystemResults[0].States[0].EventCount, 0)
}

func TestInotifyFileDiffMissingSnapshotIsEmpty(t *testing.T) {
	facility, err := fswatch.New()
	require.NoError(t, err)
	defer facility.Close()

	f := NewInotifyFile(facility)
	out := &message.InnerResult{}
	require.NoError(t, f.AddDiffResults(message.DiffPair{Before: message.Extract, After: message.Install}, out))
	assert.Empty(t, out.FileSystemResults)
}

func TestInotifyFileHasNoDescriptiveRecord(t *testing.T) {
	facility, err := fswatch.New()
	require.NoError(t, err)
	defer facility.Close()

	f := NewInotifyFile(facility)
	out := &message.InnerResult{}
	require.NoError(t, f.AddDescriptiveResults(message.Extract, out))
	assert.True(t, out.Empty())
}

func TestFacilityWatchDedupesRepeatedPath(t *testing.T) {
	facility, err := fswatch.New()
	require.NoError(t, err)
	defer facility.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "watched")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, facility.Watch(path))
	require.NoError(t, facility.Watch(path), "a repeat watch on the same path must be a no-op, not an error")
}
