package message

import "time"

// Status is a Package's lifecycle state (spec section 3).
type Status int

const (
	Available Status = iota
	Processing
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Available:
		return "AVAILABLE"
	case Processing:
		return "PROCESSING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Package is the unit of work dispensed through the work queue and
// finalized into a result file (spec section 3).
type Package struct {
	Name         string `json:"name" msgpack:"name"`
	Version      string `json:"version" msgpack:"version"`
	Architecture string `json:"architecture" msgpack:"architecture"`

	Section     string `json:"section,omitempty" msgpack:"section,omitempty"`
	Description string `json:"description,omitempty" msgpack:"description,omitempty"`

	Status Status `json:"status" msgpack:"status"`
	Error  string `json:"error,omitempty" msgpack:"error,omitempty"`

	AnalysisAttempts int       `json:"analysis_attempts" msgpack:"analysis_attempts"`
	AnalysisStart    time.Time `json:"analysis_start,omitempty" msgpack:"analysis_start,omitempty"`
	AnalysisEnd      time.Time `json:"analysis_end,omitempty" msgpack:"analysis_end,omitempty"`
}

// Basename is the stable work-item identity used for in/out filenames
// (spec section 6): <name>-<version>-<arch>.
func (p *Package) Basename() string {
	return p.Name + "-" + p.Version + "-" + p.Architecture
}
