package message

// BatchDescriptor selects the packages a Dispatcher run materializes
// work items for (spec section 6).
type BatchDescriptor struct {
	NameRegex    string `json:"name_regex" msgpack:"name_regex"`
	Architecture string `json:"architecture" msgpack:"architecture"`
	MaxCount     int    `json:"max_count" msgpack:"max_count"`
}

// AnalysisConfig is written once per batch at the shared root and read
// by every Broker (spec section 4.1 step 4, section 6).
type AnalysisConfig struct {
	InDir  string `json:"in_dir" msgpack:"in_dir"`
	OutDir string `json:"out_dir" msgpack:"out_dir"`
	LogDir string `json:"log_dir" msgpack:"log_dir"`

	TextOutput bool `json:"text_output" msgpack:"text_output"`

	// TimeoutSeconds is the per-analysis timeout, set by the dispatcher
	// to VM_timeout - 60 (spec section 4.1 step 4).
	TimeoutSeconds int `json:"timeout_seconds" msgpack:"timeout_seconds"`

	// DescriptorRoots are the directories the Broker globs for analysis
	// descriptors (spec section 4.3 step 3). Multiple roots support the
	// original's multi-root glob expansion (SPEC_FULL.md section 4).
	DescriptorRoots []string `json:"descriptor_roots" msgpack:"descriptor_roots"`
	DescriptorGlob  string   `json:"descriptor_glob" msgpack:"descriptor_glob"`
}
