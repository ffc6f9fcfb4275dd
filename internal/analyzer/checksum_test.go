package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

func fixedMemo(ft message.FileType) *FileTypeMemo {
	return NewFileTypeMemo(func(ctx context.Context, p string) (message.FileType, error) {
		return ft, nil
	})
}

func TestChecksumRunAnalysisComputesAllThreeDigests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	c := NewChecksum(fixedMemo(message.Text))
	require.NoError(t, c.RunAnalysis(context.Background(), message.Extract, []message.PathPair{{Absolute: path, Relative: "file"}}, nil))

	out := &message.InnerResult{}
	require.NoError(t, c.AddDescriptiveResults(message.Extract, out))

	require.Len(t, out.FileSystemResults, 1)
	state := out.FileSystemResults[0].States[0]

	assert.Equal(t, "file", out.FileSystemResults[0].Path, "reported path is the relative path, not the temp-dir absolute path")
	wantSHA256 := sha256.Sum256([]byte("hello world"))
	assert.Equal(t, hex.EncodeToString(wantSHA256[:]), state.SHA256)
	assert.NotEmpty(t, state.MD5)
	assert.NotEmpty(t, state.SHA1)
	assert.Equal(t, message.Text, out.FileSystemResults[0].FileType)
}

func TestChecksumRunAnalysisDropsUnreadablePath(t *testing.T) {
	c := NewChecksum(fixedMemo(message.Other))
	require.NoError(t, c.RunAnalysis(context.Background(), message.Extract, []message.PathPair{
		{Absolute: filepath.Join(t.TempDir(), "missing"), Relative: "missing"},
	}, nil))

	out := &message.InnerResult{}
	require.NoError(t, c.AddDescriptiveResults(message.Extract, out))
	assert.Empty(t, out.FileSystemResults, "a read failure is recoverable: the path is dropped for that trigger")
}

func TestChecksumHasNoDiffRecord(t *testing.T) {
	c := NewChecksum(fixedMemo(message.Text))
	out := &message.InnerResult{}
	require.NoError(t, c.AddDiffResults(message.DiffPair{Before: message.Extract, After: message.Install}, out))
	assert.True(t, out.Empty())
}
