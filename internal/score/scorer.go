package score

import (
	"github.com/pkg/errors"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// ErrNotDone is returned when Score is asked to score a package whose
// status is not DONE (spec section 4.7 step 1: "Refuse to score
// anything whose package status is not DONE").
var ErrNotDone = errors.New("package status is not DONE")

// Score parses the ApplicationResult at path and produces its
// DetailedPackageScore (spec section 4.7).
func (d *Dictionary) Score(path string) (*message.DetailedPackageScore, error) {
	var result message.ApplicationResult
	if err := message.ReadMessage(path, &result); err != nil {
		return nil, errors.Wrap(err, "reading application result")
	}

	if result.Package == nil || result.Package.Status != message.Done {
		return nil, ErrNotDone
	}

	detail := &DetailedPackageScore{
		pathScores:     make(map[string]*message.PackageLevelFileScore),
		analysisScores: make(map[string]*message.AnalysisLevelScore),
	}

	for _, ar := range result.AnalysisResults {
		for _, inner := range ar.Results {
			for _, fr := range inner.FileSystemResults {
				d.matchFileResult(d.FileSystem, ar.AnalysisName, fr, detail)
			}
			for _, fr := range inner.PackageResults {
				d.matchFileResult(d.Package, ar.AnalysisName, fr, detail)
			}
		}
	}

	out := &message.DetailedPackageScore{Package: result.Package}
	for _, fs := range detail.pathScores {
		out.FileResultScores = append(out.FileResultScores, fs)
	}
	for _, as := range detail.analysisScores {
		out.OverallResultScores = append(out.OverallResultScores, as)
		out.PackageScore += as.Score
	}

	return out, nil
}

// DetailedPackageScore is the scorer's in-progress aggregation state;
// message.DetailedPackageScore is the flattened output shape written to
// disk (spec section 4.7 step 5).
type DetailedPackageScore struct {
	pathScores     map[string]*message.PackageLevelFileScore
	analysisScores map[string]*message.AnalysisLevelScore
}

// matchFileResult scans bucket[analysisName] in order for the first
// entry matching fr's path and result type, aggregating a hit into
// detail (spec section 4.7 steps 2-4).
func (d *Dictionary) matchFileResult(bucket map[string][]*message.FileResultScoreDictionaryEntry, analysisName string, fr *message.FileResult, detail *DetailedPackageScore) {
	entries := bucket[analysisName]
	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		if re, ok := d.compiled[entry]; ok && !re.MatchString(fr.Path) {
			continue
		}
		if entry.ResultType != nil && *entry.ResultType != fr.Type {
			continue
		}

		resultName := entry.ResultName
		if resultName == "" {
			resultName = entry.AnalysisName
		}

		rs := &message.ResultScore{ResultName: resultName, Score: entry.Score}

		fileScore, ok := detail.pathScores[fr.Path]
		if !ok {
			fileScore = &message.PackageLevelFileScore{Path: fr.Path}
			detail.pathScores[fr.Path] = fileScore
		}
		fileScore.Scores = append(fileScore.Scores, rs)
		fileScore.OverallScore += rs.Score

		as, ok := detail.analysisScores[analysisName]
		if !ok {
			as = &message.AnalysisLevelScore{AnalysisName: analysisName}
			detail.analysisScores[analysisName] = as
		}
		as.Score += rs.Score

		return // first match wins
	}
}
