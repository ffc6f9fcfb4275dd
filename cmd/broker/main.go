// Command wheelbarrow-broker is the in-guest Broker (spec section 4.3,
// section 6): it claims one package from the shared work queue, drives
// it through the trigger sequence, and writes back the finalized
// result.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pkganalysis/wheelbarrow/internal/broker"
	"github.com/pkganalysis/wheelbarrow/internal/cfg"
	"github.com/pkganalysis/wheelbarrow/internal/logging"
	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/pkgmanager"
)

const defaultNFSConfig = "/mnt/broker/analysis.config"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		outdir     = flag.String("outdir", "", "output directory fallback (used only without --nfs)")
		textout    = flag.Bool("textout", false, "write results as text instead of binary")
		nfsConfig  = flag.String("nfs", defaultNFSConfig, "path to analysis.config")
		singlePkg  = flag.String("package", "", "single-package fallback, used only when no NFS config")
	)
	flag.Parse()

	config, err := cfg.Parse()
	if err != nil {
		zap.L().Error("parsing configuration", zap.Error(err))
		return 1
	}

	var analysisConfig message.AnalysisConfig
	haveConfig := message.ReadMessage(*nfsConfig, &analysisConfig) == nil
	if !haveConfig {
		analysisConfig = message.AnalysisConfig{
			InDir:      filepath.Join(*outdir, "in"),
			OutDir:     filepath.Join(*outdir, "out"),
			LogDir:     filepath.Join(*outdir, "log"),
			TextOutput: *textout,
		}
	}

	if err := broker.EnsureLogDir(analysisConfig.LogDir); err != nil {
		zap.L().Error("creating log directory", zap.Error(err))
		return 1
	}

	pm := pkgmanager.NewAptManager(config.PackageManagerBin, config.DpkgBin)
	b := broker.New(config, pm, zap.L())

	singlePackage := ""
	if !haveConfig {
		singlePackage = *singlePkg
	}
	if err := b.Initialize(analysisConfig.InDir, analysisConfig.OutDir, analysisConfig.TextOutput, singlePackage); err != nil {
		zap.L().Error("initializing broker", zap.Error(err))
		return 1
	}

	logger, err := logging.NewBrokerLogger(analysisConfig.LogDir, b.Base())
	if err == nil {
		b.Logger = logger
	}

	if err := b.LoadAnalyses(analysisConfig.DescriptorRoots, analysisConfig.DescriptorGlob); err != nil {
		b.Logger.Error("loading analyses", zap.Error(err))
	}

	timeout := time.Duration(analysisConfig.TimeoutSeconds) * time.Second
	runErr := b.Run(context.Background(), timeout)
	b.CollectResults()

	if err := b.Finalize(runErr); err != nil {
		b.Logger.Error("finalizing result", zap.Error(err))
		return 1
	}

	if runErr != nil {
		return 1
	}
	return 0
}
