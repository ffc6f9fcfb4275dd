// Command wheelbarrow-dispatcher is the host-side launcher (spec
// section 4.1, section 6): it enumerates package candidates, publishes
// work items into the shared NFS directory, launches VM workers, and
// invokes the Scorer once they finish.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pkganalysis/wheelbarrow/internal/cfg"
	"github.com/pkganalysis/wheelbarrow/internal/dispatcher"
	"github.com/pkganalysis/wheelbarrow/internal/logging"
	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/pkgmanager"
	"github.com/pkganalysis/wheelbarrow/internal/score"
	"github.com/pkganalysis/wheelbarrow/internal/telemetry"
	"github.com/pkganalysis/wheelbarrow/internal/vmrunner"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		image        = flag.String("image", "", "VM image path (required)")
		memory       = flag.Int("memory", 4096, "VM memory size in MB")
		timeout      = flag.Int("timeout", 120, "per-VM timeout in seconds")
		batchfile    = flag.String("batchfile", "", "path to a BatchDescriptor")
		nfshost      = flag.String("nfshost", "", "host-side view of the shared NFS mount")
		nfsguest     = flag.String("nfsguest", "", "guest-side view of the shared NFS mount")
		textout      = flag.Bool("textout", false, "write results as text instead of binary")
		processes    = flag.Int("processes", 1, "maximum concurrent VM workers")
		snapshot     = flag.Bool("snapshot", true, "boot VM workers from a disk snapshot")
		updatebroker = flag.Bool("updatebroker", false, "refresh the broker snapshot before dispatch")
		brokerbundle = flag.String("brokerbundle", "", "source directory for the broker/analyzer bundle synced by --updatebroker")
	)
	flag.Parse()

	logger := logging.New("dispatcher")
	defer logger.Sync()

	if *image == "" {
		logger.Error("--image is required")
		return 1
	}
	if *batchfile != "" && (*nfshost == "" || *nfsguest == "") {
		logger.Error("--batchfile requires both --nfshost and --nfsguest")
		return 1
	}

	registerCounters(logger)

	config, err := cfg.Parse()
	if err != nil {
		logger.Error("parsing configuration", zap.Error(err))
		return 1
	}

	var batch message.BatchDescriptor
	if *batchfile != "" {
		if err := message.ReadMessage(*batchfile, &batch); err != nil {
			logger.Error("reading batch descriptor", zap.Error(err))
			return 1
		}
	}

	pm := pkgmanager.NewAptManager(config.PackageManagerBin, config.DpkgBin)
	runner := vmrunner.ProcessRunner{}

	if *updatebroker {
		if *brokerbundle == "" {
			logger.Error("--updatebroker requires --brokerbundle")
			return 1
		}
		logger.Info("refreshing broker bundle before dispatch", zap.String("source", *brokerbundle))
		if err := dispatcher.SyncBrokerBundle(*brokerbundle, *nfshost); err != nil {
			logger.Error("syncing broker bundle", zap.Error(err))
			return 1
		}
	}

	d := dispatcher.New(pm, runner, logger)

	ctx := context.Background()
	count, err := d.Run(ctx, dispatcher.Options{
		Image:      *image,
		MemoryMB:   *memory,
		Timeout:    *timeout,
		Processes:  *processes,
		Snapshot:   *snapshot,
		NameRegex:  batch.NameRegex,
		Arch:       batch.Architecture,
		MaxCount:   batch.MaxCount,
		NFSHost:    *nfshost,
		NFSGuest:   *nfsguest,
		TextOutput: *textout,
	})
	if err != nil {
		logger.Error("dispatch failed", zap.Error(err))
		return 1
	}

	logger.Info("dispatched workers", zap.Int("package_count", count))

	if err := runScorer(*nfshost); err != nil {
		logger.Error("scoring failed", zap.Error(err))
		return 1
	}

	return 0
}

func runScorer(nfsHost string) error {
	outDir := filepath.Join(nfsHost, "out")
	scoreDir := filepath.Join(nfsHost, "scores")
	if err := os.MkdirAll(scoreDir, 0o755); err != nil {
		return err
	}

	dict, err := score.LoadDictionary(
		filepath.Join(nfsHost, "dictionaries", "filesystem"),
		filepath.Join(nfsHost, "dictionaries", "package"),
	)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		resultPath := filepath.Join(outDir, e.Name())
		detail, err := dict.Score(resultPath)
		if err != nil {
			continue // not DONE, or unreadable -- skip per spec section 4.7 step 1
		}

		scorePath := filepath.Join(scoreDir, e.Name()+".score")
		if err := message.WriteMessage(scorePath, detail); err != nil {
			return fmt.Errorf("writing score for %s: %w", e.Name(), err)
		}
	}

	return nil
}

func registerCounters(logger *zap.Logger) {
	for _, name := range []string{
		telemetry.PackagesClaimedCounter,
		telemetry.PackagesDoneCounter,
		telemetry.PackagesFailedCounter,
		telemetry.PackagesTimedOutCounter,
		telemetry.AnalyzerFailuresCounter,
	} {
		if err := telemetry.CreateCounter(name, name, "1"); err != nil {
			logger.Debug("counter already registered", zap.String("name", name))
		}
	}
	if err := telemetry.CreateUpDownCounter(telemetry.ActiveWorkersGauge, telemetry.ActiveWorkersGauge, "1"); err != nil {
		logger.Debug("gauge already registered")
	}
}
