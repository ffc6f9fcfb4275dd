package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/pkgmanager"
	"github.com/pkganalysis/wheelbarrow/internal/vmrunner"
)

type fakeRunner struct {
	mu      sync.Mutex
	starts  int32
	maxConc int32
	cur     int32
	err     error
}

func (r *fakeRunner) Start(ctx context.Context, opts vmrunner.Options) error {
	atomic.AddInt32(&r.starts, 1)
	n := atomic.AddInt32(&r.cur, 1)
	defer atomic.AddInt32(&r.cur, -1)

	r.mu.Lock()
	if n > r.maxConc {
		r.maxConc = n
	}
	r.mu.Unlock()

	return r.err
}

func baseOpts(t *testing.T, nameRegex, arch string, maxCount, processes int) Options {
	t.Helper()
	root := t.TempDir()
	return Options{
		Image:     "test-image",
		Processes: processes,
		Timeout:   120,
		NameRegex: nameRegex,
		Arch:      arch,
		MaxCount:  maxCount,
		NFSHost:   root,
		NFSGuest:  "/mnt/broker",
	}
}

func TestRunWritesOneDescriptorPerMatchedCandidate(t *testing.T) {
	pm := &pkgmanager.Fake{Candidates: []pkgmanager.Candidate{
		{Name: "curl", Version: "7.0", Architecture: "amd64"},
		{Name: "wget", Version: "1.0", Architecture: "amd64"},
		{Name: "curl-doc", Version: "7.0", Architecture: "arm64"},
		{Name: "libfoo", Version: "1.0", Architecture: "amd64", Virtual: true},
	}}
	runner := &fakeRunner{}
	opts := baseOpts(t, "^curl$", "amd64", 0, 2)

	d := New(pm, runner, zap.NewNop())
	count, err := d.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.EqualValues(t, 1, runner.starts)

	entries, err := os.ReadDir(filepath.Join(opts.NFSHost, "in"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var pkg message.Package
	require.NoError(t, message.ReadMessage(filepath.Join(opts.NFSHost, "in", entries[0].Name()), &pkg))
	assert.Equal(t, "curl", pkg.Name)
	assert.Equal(t, message.Available, pkg.Status)
}

func TestRunFiltersVirtualPackages(t *testing.T) {
	pm := &pkgmanager.Fake{Candidates: []pkgmanager.Candidate{
		{Name: "curl", Version: "7.0", Architecture: "amd64", Virtual: true},
	}}
	opts := baseOpts(t, ".*", "amd64", 0, 1)

	d := New(pm, &fakeRunner{}, zap.NewNop())
	_, err := d.Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrNoMatches)
}

func TestRunStopsEarlyAtMaxCount(t *testing.T) {
	pm := &pkgmanager.Fake{Candidates: []pkgmanager.Candidate{
		{Name: "a", Version: "1", Architecture: "amd64"},
		{Name: "b", Version: "1", Architecture: "amd64"},
		{Name: "c", Version: "1", Architecture: "amd64"},
	}}
	opts := baseOpts(t, ".*", "amd64", 2, 2)

	d := New(pm, &fakeRunner{}, zap.NewNop())
	count, err := d.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunReturnsErrNoMatchesOnEmptySelection(t *testing.T) {
	pm := &pkgmanager.Fake{}
	opts := baseOpts(t, ".*", "amd64", 0, 1)

	d := New(pm, &fakeRunner{}, zap.NewNop())
	_, err := d.Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrNoMatches)
}

func TestRunBoundsWorkerConcurrencyByProcesses(t *testing.T) {
	var candidates []pkgmanager.Candidate
	for i := 0; i < 6; i++ {
		candidates = append(candidates, pkgmanager.Candidate{Name: "pkg", Version: "1", Architecture: "amd64"})
	}
	pm := &pkgmanager.Fake{Candidates: candidates}
	runner := &fakeRunner{}
	opts := baseOpts(t, "^pkg$", "amd64", 0, 2)

	d := New(pm, runner, zap.NewNop())
	count, err := d.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
	assert.EqualValues(t, 6, runner.starts)
	assert.LessOrEqual(t, runner.maxConc, int32(2), "worker pool never exceeds Processes concurrent VMs")
}

func TestRunWritesAnalysisConfigWithGuestPaths(t *testing.T) {
	pm := &pkgmanager.Fake{Candidates: []pkgmanager.Candidate{{Name: "curl", Version: "7.0", Architecture: "amd64"}}}
	opts := baseOpts(t, "^curl$", "amd64", 0, 1)
	opts.Timeout = 180
	opts.TextOutput = true

	d := New(pm, &fakeRunner{}, zap.NewNop())
	_, err := d.Run(context.Background(), opts)
	require.NoError(t, err)

	var cfg message.AnalysisConfig
	require.NoError(t, message.ReadMessage(filepath.Join(opts.NFSHost, "analysis.config"), &cfg))
	assert.Equal(t, "/mnt/broker/in", cfg.InDir)
	assert.Equal(t, "/mnt/broker/out", cfg.OutDir)
	assert.Equal(t, "/mnt/broker/log", cfg.LogDir)
	assert.True(t, cfg.TextOutput)
	assert.EqualValues(t, 120, cfg.TimeoutSeconds, "guest timeout reserves 60s for teardown")
}

func TestSyncBrokerBundleCopiesFilesPreservingRelativePaths(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "analyzers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "broker"), []byte("binary"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "analyzers", "permission.txt"), []byte("descriptor"), 0o644))

	nfsHost := t.TempDir()
	require.NoError(t, SyncBrokerBundle(src, nfsHost))

	got, err := os.ReadFile(filepath.Join(nfsHost, "broker-bundle", "broker"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(got))

	got, err = os.ReadFile(filepath.Join(nfsHost, "broker-bundle", "analyzers", "permission.txt"))
	require.NoError(t, err)
	assert.Equal(t, "descriptor", string(got))
}

func TestRunInstallsLauncherScriptExecutable(t *testing.T) {
	pm := &pkgmanager.Fake{Candidates: []pkgmanager.Candidate{{Name: "curl", Version: "7.0", Architecture: "amd64"}}}
	opts := baseOpts(t, "^curl$", "amd64", 0, 1)

	d := New(pm, &fakeRunner{}, zap.NewNop())
	_, err := d.Run(context.Background(), opts)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(opts.NFSHost, "nfs_launcher.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o500), info.Mode().Perm())
}
