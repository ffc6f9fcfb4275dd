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

func TestChecksumFileWriteDiffAddDeleteChange(t *testing.T) {
	dir := t.TempDir()
	unchanged := filepath.Join(dir, "unchanged")
	changed := filepath.Join(dir, "changed")
	removed := filepath.Join(dir, "removed")
	added := filepath.Join(dir, "added")

	require.NoError(t, os.WriteFile(unchanged, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(changed, []byte("before"), 0o644))
	require.NoError(t, os.WriteFile(removed, []byte("gone"), 0o644))

	c := NewChecksumFileWrite(false, fixedMemo(message.Text))
	require.NoError(t, c.RunAnalysis(context.Background(), message.Extract,
		[]message.PathPair{
			{Absolute: unchanged, Relative: "unchanged"},
			{Absolute: changed, Relative: "changed"},
			{Absolute: removed, Relative: "removed"},
		}, nil))

	require.NoError(t, os.WriteFile(changed, []byte("after"), 0o644))
	require.NoError(t, os.WriteFile(added, []byte("new"), 0o644))
	require.NoError(t, c.RunAnalysis(context.Background(), message.Install,
		[]message.PathPair{
			{Absolute: unchanged, Relative: "unchanged"},
			{Absolute: changed, Relative: "changed"},
			{Absolute: added, Relative: "added"},
		}, nil))

	out := &message.InnerResult{}
	require.NoError(t, c.AddDiffResults(message.DiffPair{Before: message.Extract, After: message.Install}, out))

	byPath := map[string]*message.FileResult{}
	for _, fr := range out.FileSystemResults {
		byPath[fr.Path] = fr
	}

	require.Contains(t, byPath, "added")
	assert.Equal(t, message.Add, byPath["added"].Type)

	require.Contains(t, byPath, "removed")
	assert.Equal(t, message.Delete, byPath["removed"].Type)

	require.Contains(t, byPath, "changed")
	assert.Equal(t, message.Change, byPath["changed"].Type)
	assert.NotEqual(t, byPath["changed"].States[0].SHA256, byPath["changed"].States[1].SHA256)

	assert.NotContains(t, byPath, "unchanged", "a path whose sha256 is unchanged must not be emitted")
}

func TestChecksumFileWriteAttachesContentsOnlyWhenRecording(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	c := NewChecksumFileWrite(true, fixedMemo(message.Text))
	require.NoError(t, c.RunAnalysis(context.Background(), message.Extract, []message.PathPair{{Absolute: path, Relative: "file"}}, nil))

	out := &message.InnerResult{}
	require.NoError(t, c.AddDescriptiveResults(message.Extract, out))

	require.Len(t, out.FileSystemResults, 1)
	assert.Equal(t, "file", out.FileSystemResults[0].Path)
	assert.Equal(t, []byte("payload"), out.FileSystemResults[0].States[0].Contents)
}

func TestChecksumFileWriteOmitsContentsWhenNotRecording(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	c := NewChecksumFileWrite(false, fixedMemo(message.Text))
	require.NoError(t, c.RunAnalysis(context.Background(), message.Extract, []message.PathPair{{Absolute: path, Relative: "file"}}, nil))

	out := &message.InnerResult{}
	require.NoError(t, c.AddDescriptiveResults(message.Extract, out))

	require.Len(t, out.FileSystemResults, 1)
	assert.Nil(t, out.FileSystemResults[0].States[0].Contents)
}
