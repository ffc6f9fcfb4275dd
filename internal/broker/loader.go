package broker

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pkganalysis/wheelbarrow/internal/analyzer"
	"github.com/pkganalysis/wheelbarrow/internal/fswatch"
	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// Analysis packages one loaded descriptor with its analyzer instance
// and the trigger set it is wired for (spec section 4.3 step 3).
type Analysis struct {
	Descriptor *message.AnalysisDescriptor
	Triggers   []message.Trigger
	Impl       analyzer.Analyzer
}

// descriptorMaxBytes caps a single descriptor file read (spec section
// 4.3 step 3: "size-capped read, text format").
const descriptorMaxBytes = 1 << 20

// LoadAnalyses expands glob patterns under each descriptor root,
// parses each match into an AnalysisDescriptor, skips malformed
// entries and directories, and instantiates the named analyzer for
// each surviving descriptor (spec section 4.3 step 3, SPEC_FULL.md
// section 4's multi-root glob supplement).
func LoadAnalyses(roots []string, glob string, memo *analyzer.FileTypeMemo, facility *fswatch.Facility, logger *zap.Logger) ([]*Analysis, error) {
	var paths []string
	for _, root := range roots {
		matches, err := filepath.Glob(filepath.Join(root, glob))
		if err != nil {
			return nil, Fatal(err)
		}
		paths = append(paths, matches...)
	}

	var out []*Analysis
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue // directories rejected silently
		}

		data, ok := message.ReadCapped(path, descriptorMaxBytes)
		if !ok {
			logger.Warn("skipping oversized or unreadable descriptor", zap.String("path", path))
			continue
		}

		var desc message.AnalysisDescriptor
		if err := message.UnmarshalText(data, &desc); err != nil {
			logger.Warn("skipping malformed descriptor", zap.String("path", path), zap.Error(err))
			continue
		}

		var impl analyzer.Analyzer
		if desc.Module == "InotifyFile" {
			impl = analyzer.NewInotifyFile(facility)
		} else {
			impl, err = analyzer.New(desc.Module, &desc, memo)
			if err != nil {
				logger.Warn("skipping descriptor with unresolvable analyzer", zap.String("path", path), zap.Error(err))
				continue
			}
		}

		out = append(out, &Analysis{
			Descriptor: &desc,
			Triggers:   desc.Triggers(),
			Impl:       impl,
		})
	}

	return out, nil
}
