// Package analyzer implements the five concrete analyzers of spec
// section 4.5 behind a symbolic-name registry (replacing the original's
// reflection-based instantiation by class name, per SPEC_FULL.md's
// design note).
package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

// Analyzer is the capability set every concrete analyzer satisfies
// (spec section 4.5).
type Analyzer interface {
	// RunAnalysis is invoked once per (analysis, trigger) this analysis
	// is wired for; it records a per-trigger state snapshot.
	RunAnalysis(ctx context.Context, trigger message.Trigger, args []message.PathPair, deduper *suite.Deduper) error

	// AddDescriptiveResults emits records derived from one trigger
	// snapshot into out.
	AddDescriptiveResults(trigger message.Trigger, out *message.InnerResult) error

	// AddDiffResults emits records derived from two trigger snapshots
	// into out.
	AddDiffResults(pair message.DiffPair, out *message.InnerResult) error
}

// Factory builds one analyzer instance for one AnalysisDescriptor.
type Factory func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error)

var registry = map[string]Factory{
	"Checksum": func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
		return NewChecksum(memo), nil
	},
	"ChecksumFileWrite": func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
		return NewChecksumFileWrite(false, memo), nil
	},
	"ChecksumFileWriteRecording": func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
		return NewChecksumFileWrite(true, memo), nil
	},
	"Permission": func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
		return NewPermission(memo), nil
	},
	"InotifyFile": func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
		return nil, fmt.Errorf("InotifyFile requires a facility; use NewInotifyFile directly")
	},
	"NetworkListener": func(desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
		return NewNetworkListener(memo), nil
	},
}

// New instantiates the analyzer named module, confirming a factory is
// registered for it (spec section 4.3 step 3: "instantiate the named
// analyzer by symbolic class name, confirm it satisfies the analyzer
// capability set").
func New(module string, desc *message.AnalysisDescriptor, memo *FileTypeMemo) (Analyzer, error) {
	factory, ok := registry[module]
	if !ok {
		return nil, fmt.Errorf("no analyzer registered for module %q", module)
	}
	return factory(desc, memo)
}

// FileTypeMemo is the per-path file-type cache and process-wide BINARY
// set shared across file analyzers (spec section 4.5).
type FileTypeMemo struct {
	Classify func(ctx context.Context, path string) (message.FileType, error)

	types    cmap.ConcurrentMap[string, message.FileType]
	binaries cmap.ConcurrentMap[string, struct{}]
}

func NewFileTypeMemo(classify func(ctx context.Context, path string) (message.FileType, error)) *FileTypeMemo {
	return &FileTypeMemo{
		Classify: classify,
		types:    cmap.New[message.FileType](),
		binaries: cmap.New[struct{}](),
	}
}

// TypeOf classifies path once, memoizing the result and, when the
// result is BINARY, recording it in the process-wide package binaries
// set that RunBinaries consumes (spec section 4.5, section 4.4).
func (m *FileTypeMemo) TypeOf(ctx context.Context, path string) (message.FileType, error) {
	if t, ok := m.types.Get(path); ok {
		return t, nil
	}

	t, err := m.Classify(ctx, path)
	if err != nil {
		return message.Unclassified, err
	}

	m.types.Set(path, t)
	if t == message.Binary {
		m.binaries.Set(path, struct{}{})
	}
	return t, nil
}

// Binaries returns every path classified BINARY so far, the input to
// the Trigger Manager's RunBinaries state (spec section 4.4).
func (m *FileTypeMemo) Binaries() []string {
	return m.binaries.Keys()
}

// PreprocessArgument converts an Argument into concrete (absolute,
// relative) path pairs (spec section 4.5's "Argument preprocessing").
func PreprocessArgument(arg message.Argument, extractDir string) ([]message.PathPair, error) {
	prefix := ""
	if arg.PrependExtractDir {
		prefix = extractDir
	}

	var excluded *regexp.Regexp
	if len(arg.ExcludedPatterns) > 0 {
		pat := "(?:" + strings.Join(arg.ExcludedPatterns, "|") + ")"
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compiling excluded_patterns: %w", err)
		}
		excluded = re
	}

	var out []message.PathPair
	for _, pattern := range arg.StringArgs {
		globPattern := filepath.Join(prefix, pattern)
		if prefix == "" {
			globPattern = pattern
		}

		matches, err := filepath.Glob(globPattern)
		if err != nil {
			return nil, fmt.Errorf("globbing %q: %w", globPattern, err)
		}

		for _, m := range matches {
			if !arg.RecursiveFileWalk {
				// Otherwise: include the matched path as both absolute
				// and relative (spec section 4.5); excluded_patterns
				// only applies to the recursive-walk branch below
				// (original_source/guest/argument_preprocessor.py).
				out = append(out, message.PathPair{Absolute: m, Relative: m})
				continue
			}

			pairs, err := walkRegularFiles(m, prefix, excluded)
			if err != nil {
				return nil, err
			}
			out = append(out, pairs...)
		}
	}

	return out, nil
}
