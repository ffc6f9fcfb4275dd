package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

type fileWriteState struct {
	sha256   string
	contents []byte
	fileType message.FileType
}

// ChecksumFileWrite records path -> (sha256, contents?) per trigger,
// emitting ADD/DELETE/CHANGE on sha256 inequality, attaching contents
// only when recording is enabled (spec section 4.5 ChecksumFileWrite
// row).
type ChecksumFileWrite struct {
	RecordContents bool

	memo *FileTypeMemo

	mu    sync.Mutex
	byTrg map[message.Trigger]map[string]fileWriteState
}

func NewChecksumFileWrite(recordContents bool, memo *FileTypeMemo) *ChecksumFileWrite {
	return &ChecksumFileWrite{
		RecordContents: recordContents,
		memo:           memo,
		byTrg:          make(map[message.Trigger]map[string]fileWriteState),
	}
}

func (c *ChecksumFileWrite) RunAnalysis(ctx context.Context, trigger message.Trigger, args []message.PathPair, deduper *suite.Deduper) error {
	snapshot := make(map[string]fileWriteState, len(args))

	for _, pair := range args {
		data, err := os.ReadFile(pair.Absolute)
		if err != nil {
			continue
		}

		sum := sha256.Sum256(data)
		fileType, _ := c.memo.TypeOf(ctx, pair.Absolute)
		state := fileWriteState{sha256: hex.EncodeToString(sum[:]), fileType: fileType}
		if c.RecordContents {
			state.contents = data
		}
		snapshot[pair.Relative] = state
	}

	c.mu.Lock()
	c.byTrg[trigger] = snapshot
	c.mu.Unlock()

	return nil
}

func (c *ChecksumFileWrite) AddDescriptiveResults(trigger message.Trigger, out *message.InnerResult) error {
	c.mu.Lock()
	snapshot := c.byTrg[trigger]
	c.mu.Unlock()

	if !c.RecordContents {
		zap.L().Warn("contents requested but not recorded", zap.String("analyzer", "ChecksumFileWrite"))
	}

	for path, state := range snapshot {
		fs := message.FileState{Trigger: trigger, SHA256: state.sha256}
		if c.RecordContents {
			fs.Contents = state.contents
		}
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Descriptive,
			FileType: state.fileType,
			States:   []message.FileState{fs},
		})
	}
	return nil
}

func (c *ChecksumFileWrite) AddDiffResults(pair message.DiffPair, out *message.InnerResult) error {
	c.mu.Lock()
	before := c.byTrg[pair.Before]
	after := c.byTrg[pair.After]
	c.mu.Unlock()

	common, added, removed := diffTuple(before, after)

	stateFor := func(trig message.Trigger, state fileWriteState) message.FileState {
		fs := message.FileState{Trigger: trig, SHA256: state.sha256}
		if c.RecordContents {
			fs.Contents = state.contents
		}
		return fs
	}

	for _, path := range added {
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Add,
			FileType: after[path].fileType,
			States:   []message.FileState{stateFor(pair.After, after[path])},
		})
	}
	for _, path := range removed {
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Delete,
			FileType: before[path].fileType,
			States:   []message.FileState{stateFor(pair.Before, before[path])},
		})
	}
	for _, path := range common {
		b, a := before[path], after[path]
		if b.sha256 == a.sha256 {
			continue
		}
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Change,
			FileType: a.fileType,
			States: []message.FileState{
				stateFor(pair.Before, b),
				stateFor(pair.After, a),
			},
		})
	}

	return nil
}
