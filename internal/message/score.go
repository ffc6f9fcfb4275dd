package message

// FileResultScoreDictionaryEntry is one rule in the score dictionary
// (spec section 3, section 4.7).
type FileResultScoreDictionaryEntry struct {
	AnalysisName string      `yaml:"analysis_name" json:"analysis_name" msgpack:"analysis_name"`
	PathRegex    string      `yaml:"path_regex,omitempty" json:"path_regex,omitempty" msgpack:"path_regex,omitempty"`
	ResultType   *ResultType `yaml:"result_type,omitempty" json:"result_type,omitempty" msgpack:"result_type,omitempty"`
	ResultName   string      `yaml:"result_name,omitempty" json:"result_name,omitempty" msgpack:"result_name,omitempty"`
	Score        int         `yaml:"score" json:"score" msgpack:"score"`
}

// ResultScore is produced whenever a record matches a dictionary entry
// (spec section 4.7 step 3).
type ResultScore struct {
	ResultName string `json:"result_name" msgpack:"result_name"`
	Score      int    `json:"score" msgpack:"score"`
}

// PackageLevelFileScore aggregates every ResultScore matched for one
// path (spec section 4.7 step 4).
type PackageLevelFileScore struct {
	Path         string         `json:"path" msgpack:"path"`
	Scores       []*ResultScore `json:"scores" msgpack:"scores"`
	OverallScore int            `json:"overall_score" msgpack:"overall_score"`
}

// AnalysisLevelScore aggregates scores by analysis name, independent of
// path (spec section 4.7 step 4).
type AnalysisLevelScore struct {
	AnalysisName string `json:"analysis_name" msgpack:"analysis_name"`
	Score        int    `json:"score" msgpack:"score"`
}

// DetailedPackageScore is the scorer's per-package output (spec section
// 3, section 4.7 step 5). PackageScore is always the sum of
// OverallResultScores' Score fields (spec section 8 invariant).
type DetailedPackageScore struct {
	Package             *Package                 `json:"package" msgpack:"package"`
	FileResultScores    []*PackageLevelFileScore `json:"file_result_scores" msgpack:"file_result_scores"`
	OverallResultScores []*AnalysisLevelScore    `json:"overall_result_scores" msgpack:"overall_result_scores"`
	PackageScore        int                      `json:"package_score" msgpack:"package_score"`
}
