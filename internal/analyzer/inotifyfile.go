package analyzer

import (
	"context"
	"sync"

	"github.com/pkganalysis/wheelbarrow/internal/fswatch"
	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

// InotifyFile watches a set of paths and records a one-shot drained
// event-counter snapshot per trigger; the first RunAnalysis call for a
// given path also starts its watch. No descriptive record is defined;
// the diff record is an ADD for every path that gained a non-zero
// counter between two snapshots (spec section 4.5 InotifyFile row).
type InotifyFile struct {
	Facility *fswatch.Facility

	mu    sync.Mutex
	byTrg map[message.Trigger]map[string]int
}

func NewInotifyFile(facility *fswatch.Facility) *InotifyFile {
	return &InotifyFile{
		Facility: facility,
		byTrg:    make(map[message.Trigger]map[string]int),
	}
}

func (f *InotifyFile) RunAnalysis(ctx context.Context, trigger message.Trigger, args []message.PathPair, deduper *suite.Deduper) error {
	for _, pair := range args {
		if err := f.Facility.Watch(pair.Absolute); err != nil {
			// Recoverable: this path just won't accrue counts.
			continue
		}
	}

	snapshot := f.Facility.Drain()

	f.mu.Lock()
	f.byTrg[trigger] = snapshot
	f.mu.Unlock()

	return nil
}

func (f *InotifyFile) AddDescriptiveResults(trigger message.Trigger, out *message.InnerResult) error {
	return nil
}

// AddDiffResults emits ADD for every path in after \ before of the
// counter key-sets (spec section 4.5).
func (f *InotifyFile) AddDiffResults(pair message.DiffPair, out *message.InnerResult) error {
	f.mu.Lock()
	before := f.byTrg[pair.Before]
	after := f.byTrg[pair.After]
	f.mu.Unlock()

	if before == nil || after == nil {
		return nil
	}

	for path, count := range after {
		if _, ok := before[path]; ok {
			continue
		}
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path: path,
			Type: message.Add,
			States: []message.FileState{
				{Trigger: pair.After, EventCount: count},
			},
		})
	}

	return nil
}
