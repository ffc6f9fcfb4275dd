package analyzer

import (
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// walkRegularFiles walks root, including only regular files, computing
// each relative_path as the path relative to prefix when prefixing was
// applied, else the file path itself, and dropping entries the
// excluded pattern alternation matches (spec section 4.5 step 2).
func walkRegularFiles(root, prefix string, excluded *regexp.Regexp) ([]message.PathPair, error) {
	var out []message.PathPair

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}

		rel := path
		if prefix != "" {
			if r, relErr := filepath.Rel(prefix, path); relErr == nil {
				rel = r
			}
		}

		if excluded != nil && excluded.MatchString(rel) {
			return nil
		}

		out = append(out, message.PathPair{Absolute: path, Relative: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
