// Package dispatcher implements the host-side Dispatcher (spec section
// 4.1): it enumerates package candidates, publishes work items and the
// batch's analysis.config into the shared directory, and launches a
// bounded pool of VM workers. Scoring the results is left to the caller
// (cmd/dispatcher runs the Scorer once Run returns).
package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/pkgmanager"
	"github.com/pkganalysis/wheelbarrow/internal/telemetry"
	"github.com/pkganalysis/wheelbarrow/internal/vmrunner"
)

// launcherScript is installed at the shared root with owner-executable
// permission (spec section 4.1 step 2); it boots the in-guest Broker
// against the NFS-mounted analysis.config.
const launcherScript = `#!/bin/sh
exec /usr/local/bin/wheelbarrow-broker --nfs /mnt/broker/analysis.config
`

// Options configures one Dispatcher run (spec section 4.1's Inputs).
type Options struct {
	Image      string
	MemoryMB   int
	Timeout    int // seconds
	Processes  int
	Snapshot   bool
	NameRegex  string
	Arch       string
	MaxCount   int
	NFSHost    string
	NFSGuest   string
	TextOutput bool
}

// ErrNoMatches is returned when batch enumeration selects zero package
// candidates (spec section 6: "non-zero on setup failure or empty
// match set").
var ErrNoMatches = errors.New("no package candidates matched the batch descriptor")

// Dispatcher runs one batch (spec section 4.1).
type Dispatcher struct {
	PkgManager pkgmanager.Manager
	Runner     vmrunner.Runner
	Logger     *zap.Logger
}

func New(pm pkgmanager.Manager, runner vmrunner.Runner, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{PkgManager: pm, Runner: runner, Logger: logger}
}

// Run executes the full dispatcher lifecycle against opts, returning
// the number of packages dispatched.
func (d *Dispatcher) Run(ctx context.Context, opts Options) (int, error) {
	inDir := filepath.Join(opts.NFSHost, "in")
	outDir := filepath.Join(opts.NFSHost, "out")
	logDir := filepath.Join(opts.NFSHost, "log")

	for _, dir := range []string{inDir, outDir, logDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, errors.Wrapf(err, "ensuring %s", dir)
		}
	}

	launcherPath := filepath.Join(opts.NFSHost, "nfs_launcher.sh")
	if err := os.WriteFile(launcherPath, []byte(launcherScript), 0o500); err != nil {
		return 0, errors.Wrap(err, "installing launcher script")
	}

	count, err := d.enumerate(ctx, inDir, opts)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNoMatches
	}

	cfg := message.AnalysisConfig{
		InDir:           filepath.Join(opts.NFSGuest, "in"),
		OutDir:          filepath.Join(opts.NFSGuest, "out"),
		LogDir:          filepath.Join(opts.NFSGuest, "log"),
		TextOutput:      opts.TextOutput,
		TimeoutSeconds:  opts.Timeout - 60,
		DescriptorRoots: []string{filepath.Join(opts.NFSGuest, "descriptors")},
		DescriptorGlob:  "*.txt",
	}
	configPath := filepath.Join(opts.NFSHost, "analysis.config")
	if err := message.WriteMessage(configPath, &cfg); err != nil {
		return 0, errors.Wrap(err, "writing analysis.config")
	}

	workers := opts.Processes
	if count < workers {
		workers = count
	}

	if err := d.launchWorkers(ctx, workers, count, opts); err != nil {
		return 0, err
	}

	return count, nil
}

// SyncBrokerBundle copies every regular file under srcDir into
// nfsHost/broker-bundle, preserving its relative path (spec.md CLI
// surface names --updatebroker without describing its effect;
// SPEC_FULL.md section 4's supplement follows nfs_analysis_setup_agent.py's
// update_broker_image step: refresh the shared broker/analyzer bundle
// before workers boot against it).
func SyncBrokerBundle(srcDir, nfsHost string) error {
	destRoot := filepath.Join(nfsHost, "broker-bundle")

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destRoot, rel)

		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading broker bundle file %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dest, data, info.Mode().Perm())
	})
}

// enumerate filters package-manager candidates by name regex and
// architecture, stopping at MaxCount, and writes one AVAILABLE Package
// descriptor per kept candidate (spec section 4.1 step 3).
func (d *Dispatcher) enumerate(ctx context.Context, inDir string, opts Options) (int, error) {
	nameRe, err := regexp.Compile(opts.NameRegex)
	if err != nil {
		return 0, errors.Wrap(err, "compiling name_regex")
	}

	candidates, err := d.PkgManager.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing package candidates")
	}

	count := 0
	for _, c := range candidates {
		if c.Virtual {
			continue
		}
		if !nameRe.MatchString(c.Name) {
			continue
		}
		if c.Architecture != opts.Arch {
			continue
		}

		pkg := &message.Package{
			Name:         c.Name,
			Version:      c.Version,
			Architecture: c.Architecture,
			Status:       message.Available,
		}

		descPath := filepath.Join(inDir, pkg.Basename())
		if err := message.WriteMessage(descPath, pkg); err != nil {
			return count, errors.Wrapf(err, "writing descriptor for %s", pkg.Basename())
		}

		count++
		if opts.MaxCount > 0 && count >= opts.MaxCount {
			break
		}
	}

	return count, nil
}

// launchWorkers starts one VM per job, jobCount in all, with at most
// workers (min(P, job_count)) running at once, all running the same VM
// command, and waits for them all (spec section 4.1 step 5). Worker termination errors are logged but do not abort
// the batch.
func (d *Dispatcher) launchWorkers(ctx context.Context, workers, jobCount int, opts Options) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i := 0; i < jobCount; i++ {
		group.Go(func() error {
			telemetry.IncrUpDown(gctx, telemetry.ActiveWorkersGauge, 1)
			defer telemetry.IncrUpDown(gctx, telemetry.ActiveWorkersGauge, -1)

			runOpts := vmrunner.Options{
				Image:    opts.Image,
				MemoryMB: opts.MemoryMB,
				Timeout:  time.Duration(opts.Timeout) * time.Second,
				Snapshot: opts.Snapshot,
				Command:  []string{"wheelbarrow-vm-launch", "--image", opts.Image},
			}
			if err := d.Runner.Start(gctx, runOpts); err != nil {
				d.Logger.Warn("VM worker terminated with error", zap.Error(err))
			}
			return nil
		})
	}

	return group.Wait()
}
