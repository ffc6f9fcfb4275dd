package analyzer

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

type checksums struct {
	md5, sha1, sha256 string
	fileType          message.FileType
}

// Checksum computes md5/sha1/sha256 over file contents per trigger
// (spec section 4.5's Checksum row). A read failure is recoverable: the
// path is dropped for that trigger and the broker continues.
type Checksum struct {
	memo *FileTypeMemo

	mu    sync.Mutex
	byTrg map[message.Trigger]map[string]checksums
}

func NewChecksum(memo *FileTypeMemo) *Checksum {
	return &Checksum{memo: memo, byTrg: make(map[message.Trigger]map[string]checksums)}
}

func (c *Checksum) RunAnalysis(ctx context.Context, trigger message.Trigger, args []message.PathPair, deduper *suite.Deduper) error {
	snapshot := make(map[string]checksums, len(args))

	for _, pair := range args {
		data, err := os.ReadFile(pair.Absolute)
		if err != nil {
			// Recoverable: drop this path for this trigger.
			continue
		}

		m := md5.Sum(data)
		s1 := sha1.Sum(data)
		s256 := sha256.Sum256(data)

		fileType, _ := c.memo.TypeOf(ctx, pair.Absolute)

		snapshot[pair.Relative] = checksums{
			md5:      hex.EncodeToString(m[:]),
			sha1:     hex.EncodeToString(s1[:]),
			sha256:   hex.EncodeToString(s256[:]),
			fileType: fileType,
		}
	}

	c.mu.Lock()
	c.byTrg[trigger] = snapshot
	c.mu.Unlock()

	return nil
}

// AddDescriptiveResults emits states[0].{md5,sha1,sha256} for the given
// trigger (spec section 4.5 Checksum row). No diff record is defined.
func (c *Checksum) AddDescriptiveResults(trigger message.Trigger, out *message.InnerResult) error {
	c.mu.Lock()
	snapshot := c.byTrg[trigger]
	c.mu.Unlock()

	for path, sums := range snapshot {
		out.FileSystemResults = append(out.FileSystemResults, &message.FileResult{
			Path:     path,
			Type:     message.Descriptive,
			FileType: sums.fileType,
			States: []message.FileState{{
				Trigger: trigger,
				MD5:     sums.md5,
				SHA1:    sums.sha1,
				SHA256:  sums.sha256,
			}},
		})
	}
	return nil
}

func (c *Checksum) AddDiffResults(pair message.DiffPair, out *message.InnerResult) error {
	return nil
}
