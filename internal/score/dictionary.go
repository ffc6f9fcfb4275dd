// Package score implements the Scorer (spec section 4.7): it loads rule
// entries from two dictionary roots into an index keyed by analysis
// name, then scores a finalized ApplicationResult file against them.
package score

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// Dictionary holds the file-system-scope and package-scope rule
// buckets, each indexed by analysis_name (spec section 4.7).
type Dictionary struct {
	FileSystem map[string][]*message.FileResultScoreDictionaryEntry
	Package    map[string][]*message.FileResultScoreDictionaryEntry

	compiled map[*message.FileResultScoreDictionaryEntry]*regexp.Regexp
}

// LoadDictionary reads every *.yaml file under fsRoot into the
// file-system-scope bucket and every *.yaml file under pkgRoot into the
// package-scope bucket (spec section 4.7: "Loads rule entries from two
// dictionary roots").
func LoadDictionary(fsRoot, pkgRoot string) (*Dictionary, error) {
	fsEntries, err := loadRoot(fsRoot)
	if err != nil {
		return nil, errors.Wrap(err, "loading file-system scope dictionary")
	}

	pkgEntries, err := loadRoot(pkgRoot)
	if err != nil {
		return nil, errors.Wrap(err, "loading package scope dictionary")
	}

	d := &Dictionary{
		FileSystem: indexByAnalysis(fsEntries),
		Package:    indexByAnalysis(pkgEntries),
		compiled:   make(map[*message.FileResultScoreDictionaryEntry]*regexp.Regexp),
	}

	for _, e := range append(fsEntries, pkgEntries...) {
		if e.PathRegex == "" {
			continue
		}
		re, err := regexp.Compile(e.PathRegex)
		if err != nil {
			return nil, errors.Wrapf(err, "compiling path_regex %q for analysis %q", e.PathRegex, e.AnalysisName)
		}
		d.compiled[e] = re
	}

	return d, nil
}

func loadRoot(root string) ([]*message.FileResultScoreDictionaryEntry, error) {
	if root == "" {
		return nil, nil
	}

	matches, err := filepath.Glob(filepath.Join(root, "*.yaml"))
	if err != nil {
		return nil, err
	}

	var out []*message.FileResultScoreDictionaryEntry
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}

		var entries []*message.FileResultScoreDictionaryEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}

		out = append(out, entries...)
	}

	return out, nil
}

func indexByAnalysis(entries []*message.FileResultScoreDictionaryEntry) map[string][]*message.FileResultScoreDictionaryEntry {
	idx := make(map[string][]*message.FileResultScoreDictionaryEntry)
	for _, e := range entries {
		idx[e.AnalysisName] = append(idx[e.AnalysisName], e)
	}
	return idx
}
