// Command wheelbarrow-scorer applies the rule dictionary to every
// finalized result under a result directory, producing a
// DetailedPackageScore per package (spec section 4.7, section 6).
package main

import (
	"flag"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pkganalysis/wheelbarrow/internal/logging"
	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/score"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		resultdir = flag.String("resultdir", "", "directory of finalized ApplicationResult files (required)")
		scoredir  = flag.String("scoredir", "", "directory to write DetailedPackageScore files into (required)")
	)
	flag.Parse()

	logger := logging.New("scorer")
	defer logger.Sync()

	if *resultdir == "" || *scoredir == "" {
		logger.Error("--resultdir and --scoredir are both required")
		return 1
	}

	if err := os.MkdirAll(*scoredir, 0o755); err != nil {
		logger.Error("creating score directory", zap.Error(err))
		return 1
	}

	dict, err := score.LoadDictionary(
		filepath.Join(*resultdir, "..", "dictionaries", "filesystem"),
		filepath.Join(*resultdir, "..", "dictionaries", "package"),
	)
	if err != nil {
		logger.Error("loading score dictionary", zap.Error(err))
		return 1
	}

	entries, err := os.ReadDir(*resultdir)
	if err != nil {
		logger.Error("reading result directory", zap.Error(err))
		return 1
	}

	scored := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		resultPath := filepath.Join(*resultdir, e.Name())
		detail, err := dict.Score(resultPath)
		if err != nil {
			logger.Debug("skipping result", zap.String("path", resultPath), zap.Error(err))
			continue
		}

		scorePath := filepath.Join(*scoredir, e.Name()+".score")
		if err := message.WriteMessage(scorePath, detail); err != nil {
			logger.Error("writing score", zap.String("path", scorePath), zap.Error(err))
			return 1
		}
		scored++
	}

	logger.Info("scoring complete", zap.Int("scored", scored))
	return 0
}
