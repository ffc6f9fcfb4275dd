package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// TestPermissionDiffScenario reproduces spec section 8 scenario 3 exactly.
func TestPermissionDiffScenario(t *testing.T) {
	p := NewPermission(nil)
	p.byTrg[message.Extract] = map[string]permState{
		"file1": {perm: "0444"},
		"file2": {perm: "0644"},
	}
	p.byTrg[message.Install] = map[string]permState{
		"file2": {perm: "0666"},
		"file3": {perm: "0444"},
	}

	out := &message.InnerResult{}
	require.NoError(t, p.AddDiffResults(message.DiffPair{Before: message.Extract, After: message.Install}, out))

	byPath := map[string]*message.FileResult{}
	for _, fr := range out.FileSystemResults {
		byPath[fr.Path] = fr
	}
	require.Len(t, byPath, 3)

	add := byPath["file3"]
	require.NotNil(t, add)
	assert.Equal(t, message.Add, add.Type)
	require.Len(t, add.States, 1)
	assert.Equal(t, "0444", add.States[0].Permissions)
	assert.Equal(t, message.Install, add.States[0].Trigger)

	del := byPath["file1"]
	require.NotNil(t, del)
	assert.Equal(t, message.Delete, del.Type)
	require.Len(t, del.States, 1)
	assert.Equal(t, "0444", del.States[0].Permissions)
	assert.Equal(t, message.Extract, del.States[0].Trigger)

	change := byPath["file2"]
	require.NotNil(t, change)
	assert.Equal(t, message.Change, change.Type)
	require.Len(t, change.States, 2)
	assert.Equal(t, "0644", change.States[0].Permissions)
	assert.Equal(t, "0666", change.States[1].Permissions)
}

func TestPermissionDiffNoChangeEmitsNothing(t *testing.T) {
	p := NewPermission(nil)
	p.byTrg[message.Extract] = map[string]permState{"file1": {perm: "0444"}}
	p.byTrg[message.Install] = map[string]permState{"file1": {perm: "0444"}}

	out := &message.InnerResult{}
	require.NoError(t, p.AddDiffResults(message.DiffPair{Before: message.Extract, After: message.Install}, out))
	assert.Empty(t, out.FileSystemResults)
}

func TestPermissionRunAnalysisRecordsLastFourOctalDigits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	memo := NewFileTypeMemo(func(ctx context.Context, p string) (message.FileType, error) {
		return message.Other, nil
	})

	p := NewPermission(memo)
	require.NoError(t, p.RunAnalysis(context.Background(), message.Extract, []message.PathPair{{Absolute: path, Relative: "file"}}, nil))

	out := &message.InnerResult{}
	require.NoError(t, p.AddDescriptiveResults(message.Extract, out))

	require.Len(t, out.FileSystemResults, 1)
	assert.Equal(t, "file", out.FileSystemResults[0].Path, "reported path is the relative path, not the temp-dir absolute path")
	assert.Equal(t, "0644", out.FileSystemResults[0].States[0].Permissions)
}
