package message

// Argument describes how to turn a list of glob patterns into concrete
// (absolute, relative) file pairs addressable to an analyzer (spec
// section 4.5).
type Argument struct {
	StringArgs         []string `json:"string_args" msgpack:"string_args"`
	PrependExtractDir  bool     `json:"prepend_extract_dir" msgpack:"prepend_extract_dir"`
	RecursiveFileWalk  bool     `json:"recursive_file_walk" msgpack:"recursive_file_walk"`
	ExcludedPatterns   []string `json:"excluded_patterns,omitempty" msgpack:"excluded_patterns,omitempty"`
}

// PathPair is one preprocessed argument entry.
type PathPair struct {
	Absolute string
	Relative string
}

// AnalysisDescriptor names one analyzer invocation: which module to
// instantiate, which triggers/diff pairs it watches, and its arguments
// (spec section 3). module must name a capability registered in
// internal/analyzer's Registry; the union of DescriptiveTriggers and
// each DiffPair's two members is the trigger set the analyzer is wired
// for (internal/broker wires each loaded analysis to exactly this set,
// computed by Triggers).
type AnalysisDescriptor struct {
	Name        string `json:"name" msgpack:"name"`
	Description string `json:"description,omitempty" msgpack:"description,omitempty"`
	Category    string `json:"category,omitempty" msgpack:"category,omitempty"`
	Module      string `json:"module" msgpack:"module"`

	Arguments          []Argument `json:"arguments,omitempty" msgpack:"arguments,omitempty"`
	DescriptiveTriggers []Trigger `json:"descriptive_triggers,omitempty" msgpack:"descriptive_triggers,omitempty"`
	DiffPairs           []DiffPair `json:"diff_pairs,omitempty" msgpack:"diff_pairs,omitempty"`

	Suite string `json:"suite,omitempty" msgpack:"suite,omitempty"`
}

// Triggers returns the deduplicated union of descriptive triggers and
// diff-pair members this descriptor is wired for (spec section 3's
// invariant, spec section 9's "dedupe defensively" open question).
func (d *AnalysisDescriptor) Triggers() []Trigger {
	seen := make(map[Trigger]bool)
	var out []Trigger
	add := func(t Trigger) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range d.DescriptiveTriggers {
		add(t)
	}
	for _, p := range d.DiffPairs {
		add(p.Before)
		add(p.After)
	}
	return out
}
