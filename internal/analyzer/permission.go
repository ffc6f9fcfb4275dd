package analyzer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

type permState struct {
	perm     string
	fileType message.FileType
}

// Permission records path -> "0ppp" (last 4 octal digits of mode) per
// trigger, emitting ADD/DELETE/CHANGE on string inequality across a
// diff pair (spec section 4.5 Permission row).
type Permission struct {
	memo *FileTypeMemo

	mu    sync.Mutex
	byTrg map[message.Trigger]map[string]permState
}

func NewPermission(memo *FileTypeMemo) *Permission {
	return &Permission{memo: memo, byTrg: make(map[message.Trigger]map[string]permState)}
}

func (p *Permission) RunAnalysis(ctx context.Context, trigger message.Trigger, args []message.PathPair, deduper *suite.Deduper) error {
	snapshot := make(map[string]permState, len(args))

	for _, pair := range args {
		info, err := os.Stat(pair.Absolute)
		if err != nil {
			continue
		}
		fileType, _ := p.memo.TypeOf(ctx, pair.Absolute)
		mode := info.Mode()
		bits := uint32(mode.Perm())
		if mode&os.ModeSetuid != 0 {
			bits |= 0o4000
		}
		if mode&os.ModeSetgid != 0 {
			bits |= 0o2000
		}
		if mode&os.ModeSticky != 0 {
			bits |= 0o1000
		}
		snapshot[pair.Relative] = permState{
			perm:     fmt.Sprintf("%04o", bits),
			fileType: fileType,
		}
	}

	p.mu.Lock()
	p.byTrg[trigger] = snapshot
	p.mu.Unlock()

	return nil
}

func (p *Permission) AddDescriptiveResults(trigger message.Trigger, out *message.InnerResult) error {
	p.mu.Lock()
	snapshot := p.byTrg[trigger]
	p.mu.Unlock()

	for path, state := range snapshot {
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Descriptive,
			FileType: state.fileType,
			States: []message.FileState{{
				Trigger:     trigger,
				Permissions: state.perm,
			}},
		})
	}
	return nil
}

// AddDiffResults emits ADD(added), DELETE(removed), and CHANGE for any
// common path whose permission string differs (spec section 4.5).
func (p *Permission) AddDiffResults(pair message.DiffPair, out *message.InnerResult) error {
	p.mu.Lock()
	before := p.byTrg[pair.Before]
	after := p.byTrg[pair.After]
	p.mu.Unlock()

	common, added, removed := diffTuple(before, after)

	for _, path := range added {
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Add,
			FileType: after[path].fileType,
			States: []message.FileState{
				{Trigger: pair.After, Permissions: after[path].perm},
			},
		})
	}
	for _, path := range removed {
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Delete,
			FileType: before[path].fileType,
			States: []message.FileState{
				{Trigger: pair.Before, Permissions: before[path].perm},
			},
		})
	}
	for _, path := range common {
		if before[path].perm == after[path].perm {
			continue
		}
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Change,
			FileType: after[path].fileType,
			States: []message.FileState{
				{Trigger: pair.Before, Permissions: before[path].perm},
				{Trigger: pair.After, Permissions: after[path].perm},
			},
		})
	}

	return nil
}
