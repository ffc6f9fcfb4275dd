// Package broker implements the in-guest Broker: claims one package via
// the work queue, drives it through the Trigger Manager, feeds every
// loaded analysis each observed trigger, and finalizes the
// ApplicationResult (spec section 4.3).
package broker

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pkganalysis/wheelbarrow/internal/analyzer"
	"github.com/pkganalysis/wheelbarrow/internal/cfg"
	"github.com/pkganalysis/wheelbarrow/internal/fswatch"
	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/pkgmanager"
	"github.com/pkganalysis/wheelbarrow/internal/probe"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
	"github.com/pkganalysis/wheelbarrow/internal/telemetry"
	"github.com/pkganalysis/wheelbarrow/internal/trigger"
	"github.com/pkganalysis/wheelbarrow/internal/workqueue"
)

// Broker runs exactly one package through one analysis cycle (spec
// section 4.3). A fresh Broker is created per claimed package; the
// analyzer state, suite deduper and file-type memo it owns are
// per-process (spec section 5's "Shared resources").
type Broker struct {
	Config     cfg.Config
	PkgManager pkgmanager.Manager
	Logger     *zap.Logger

	memo     *analyzer.FileTypeMemo
	facility *fswatch.Facility
	deduper  *suite.Deduper
	mgr      *trigger.Manager

	pkg         *message.Package
	base        string
	outDir      string
	textOutput  bool

	analyses []*Analysis
	result   *message.ApplicationResult

	timedOut bool
}

func New(config cfg.Config, pm pkgmanager.Manager, logger *zap.Logger) *Broker {
	b := &Broker{Config: config, PkgManager: pm, Logger: logger}

	b.memo = analyzer.NewFileTypeMemo(func(ctx context.Context, path string) (message.FileType, error) {
		out, err := probe.ClassifyFile(ctx, path)
		if err != nil {
			return message.Unclassified, err
		}
		return classifyOutput(out), nil
	})

	return b
}

// classifyOutput matches file(1)'s textual output against ELF > shell
// script > text (in that precedence), else OTHER (spec section 4.5).
func classifyOutput(out string) message.FileType {
	switch {
	case strings.Contains(out, "ELF"):
		return message.Binary
	case strings.Contains(out, "shell script"):
		return message.Script
	case strings.Contains(out, "text"):
		return message.Text
	default:
		return message.Other
	}
}

// Initialize claims one package via the work queue and captures the
// descriptor (spec section 4.3 step 1). When singlePackage is non-empty
// (the --package fallback, spec section 6), only that named descriptor
// is claimed instead of scanning all of inDir.
func (b *Broker) Initialize(inDir, outDir string, textOutput bool, singlePackage string) error {
	var (
		pkg  *message.Package
		base string
		err  error
	)
	if singlePackage != "" {
		pkg, base, _, err = workqueue.ClaimNamed(inDir, outDir, singlePackage)
	} else {
		pkg, base, _, err = workqueue.Claim(inDir, outDir)
	}
	if err != nil {
		return err
	}

	b.pkg = pkg
	b.base = base
	b.outDir = outDir
	b.textOutput = textOutput
	b.result = &message.ApplicationResult{Package: pkg}
	telemetry.Incr(context.Background(), telemetry.PackagesClaimedCounter, 1)

	b.deduper = suite.NewDeduper()

	facility, err := fswatch.New()
	if err != nil {
		return Fatal(err)
	}
	b.facility = facility

	b.mgr = trigger.NewManager(b.PkgManager, message.RealClock{})
	b.mgr.BinaryTimeout = time.Duration(b.Config.BinaryRunTimeoutSec) * time.Second
	b.mgr.ServiceTimeout = time.Duration(b.Config.ServiceControlTimeoutSec) * time.Second
	b.mgr.PackageBinaries = b.memo.Binaries
	b.mgr.ExecutedBinaries = func() map[string]bool { return nil }

	return nil
}

// LoadAnalyses expands descriptor roots and instantiates every
// analysis's analyzer (spec section 4.3 step 3).
func (b *Broker) LoadAnalyses(roots []string, glob string) error {
	analyses, err := LoadAnalyses(roots, glob, b.memo, b.facility, b.Logger)
	if err != nil {
		return err
	}
	b.analyses = analyses
	return nil
}

// Run drives the trigger sequence to completion under the given
// deadline, invoking every wired analysis for each observed trigger
// (spec section 4.3 steps 2 and 4). Expiry is surfaced exactly like an
// error path with the message "Analysis timed out." (spec section 4.3
// step 2).
func (b *Broker) Run(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.mgr.Logger = b.Logger

	if err := b.mgr.SetUpTriggersAndMetadata(ctx, b.pkg); err != nil {
		return Fatal(err)
	}

	for {
		trig, ok, err := b.mgr.RunNextTrigger(ctx)
		if ctx.Err() != nil {
			b.timedOut = true
			return Fatal(errors.New("Analysis timed out."))
		}
		if err != nil {
			return Fatal(err)
		}
		if !ok {
			break
		}

		for _, a := range b.analyses {
			if !wantsTrigger(a.Triggers, trig) {
				continue
			}
			args, argErr := analysisArguments(a.Descriptor, b.mgr.ExtractDir())
			if argErr != nil {
				b.Logger.Warn("dropping analysis on argument preprocessing failure",
					zap.String("analysis", a.Descriptor.Name), zap.Error(argErr))
				continue
			}
			if runErr := a.Impl.RunAnalysis(ctx, trig, args, b.deduper); runErr != nil {
				if !IsRecoverable(runErr) {
					return Fatal(runErr)
				}
				b.Logger.Warn("analyzer recoverable failure",
					zap.String("analysis", a.Descriptor.Name), zap.Error(runErr))
			}
		}
	}

	return nil
}

func wantsTrigger(triggers []message.Trigger, trig message.Trigger) bool {
	for _, t := range triggers {
		if t == trig {
			return true
		}
	}
	return false
}

func analysisArguments(desc *message.AnalysisDescriptor, extractDir string) ([]message.PathPair, error) {
	var out []message.PathPair
	for _, arg := range desc.Arguments {
		pairs, err := analyzer.PreprocessArgument(arg, extractDir)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return out, nil
}

// CollectResults asks every analysis for its descriptive and diff
// contributions, merges file-level records sharing a suite through the
// Suite Deduper, rewrites the containing AnalysisResult's name to the
// suite name when one is set, and discards analyses that produced
// nothing (spec section 4.3 step 5, section 4.6).
func (b *Broker) CollectResults() {
	buckets := make(map[string]*message.InnerResult)
	order := make([]string, 0, len(b.analyses))
	seen := make(map[*message.FileResult]bool)

	for _, a := range b.analyses {
		raw := &message.InnerResult{}

		for _, t := range a.Descriptor.DescriptiveTriggers {
			if err := a.Impl.AddDescriptiveResults(t, raw); err != nil {
				b.Logger.Warn("descriptive result error", zap.String("analysis", a.Descriptor.Name), zap.Error(err))
			}
		}
		for _, pair := range a.Descriptor.DiffPairs {
			if !pair.Valid() {
				continue
			}
			if err := a.Impl.AddDiffResults(pair, raw); err != nil {
				b.Logger.Warn("diff result error", zap.String("analysis", a.Descriptor.Name), zap.Error(err))
			}
		}

		name := a.Descriptor.Name
		if a.Descriptor.Suite != "" {
			name = a.Descriptor.Suite
		}

		inner, ok := buckets[name]
		if !ok {
			inner = &message.InnerResult{}
			buckets[name] = inner
			order = append(order, name)
		}

		for _, fr := range raw.FileSystemResults {
			shared := mergeFileResult(b.deduper, a.Descriptor.Suite, fr)
			if !seen[shared] {
				seen[shared] = true
				suite.AppendFileResult(inner, a.Descriptor.Suite, shared)
			}
		}
		for _, fr := range raw.PackageResults {
			shared := mergeFileResult(b.deduper, a.Descriptor.Suite, fr)
			if !seen[shared] {
				seen[shared] = true
				suite.AppendFileResult(inner, "package", shared)
			}
		}
		inner.NetworkResults = append(inner.NetworkResults, raw.NetworkResults...)
	}

	for _, name := range order {
		b.result.AddAnalysisResult(&message.AnalysisResult{
			AnalysisName: name,
			Results:      []*message.InnerResult{buckets[name]},
		})
	}
}

// Finalize sets the package status, closes the filesystem-event
// facility, writes the ApplicationResult, and removes the pending
// sentinel (spec section 4.3 step 6).
func (b *Broker) Finalize(runErr error) error {
	if runErr != nil {
		b.pkg.Status = message.Failed
		b.pkg.Error = runErr.Error()
		telemetry.Incr(context.Background(), telemetry.PackagesFailedCounter, 1)
		if b.timedOut {
			telemetry.Incr(context.Background(), telemetry.PackagesTimedOutCounter, 1)
		}
	} else {
		b.pkg.Status = message.Done
		telemetry.Incr(context.Background(), telemetry.PackagesDoneCounter, 1)
	}
	b.pkg.AnalysisEnd = time.Now()
	b.result.Package = b.pkg

	if b.facility != nil {
		_ = b.facility.Close()
	}

	return workqueue.Finalize(b.outDir, b.base, b.textOutput, b.result)
}

// Base returns the work-item basename this Broker claimed, used for
// the per-package log file (spec section 6).
func (b *Broker) Base() string { return b.base }

// EnsureLogDir creates logDir before the caller constructs the
// per-package logger (spec section 6).
func EnsureLogDir(logDir string) error {
	return os.MkdirAll(logDir, 0o755)
}
