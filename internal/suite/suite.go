// Package suite implements the Suite Deduper (spec section 4.6):
// several analyzers may contribute overlapping fields to one file
// result, and the deduper guarantees a single shared FileResult object
// across every analyzer naming the same suite.
package suite

import (
	"fmt"
	"sync"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// Key identifies one shared record: (suite, str(trigger or diffPair), path).
type Key struct {
	Suite       string
	TriggerPart string
	Path        string
}

func TriggerKey(suiteName string, trigger message.Trigger, path string) Key {
	return Key{Suite: suiteName, TriggerPart: trigger.String(), Path: path}
}

func DiffKey(suiteName string, pair message.DiffPair, path string) Key {
	return Key{Suite: suiteName, TriggerPart: pair.String(), Path: path}
}

// Deduper is per-process (spec section 5's "Shared resources"): one
// instance backs one broker run.
type Deduper struct {
	mu      sync.Mutex
	records map[Key]*message.FileResult
}

func NewDeduper() *Deduper {
	return &Deduper{records: make(map[Key]*message.FileResult)}
}

// Get returns the shared record for key, or nil if none has been
// allocated yet.
func (d *Deduper) Get(key Key) *message.FileResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records[key]
}

// Put attaches rec as the shared record for key. Callers call Get
// first; if absent, allocate and Put (spec section 4.6).
func (d *Deduper) Put(key Key, rec *message.FileResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[key] = rec
}

// AppendFileResult routes rec into inner.PackageResults when
// suiteName == "package", else inner.FileSystemResults (spec section
// 4.6).
func AppendFileResult(inner *message.InnerResult, suiteName string, rec *message.FileResult) {
	if suiteName == "package" {
		inner.PackageResults = append(inner.PackageResults, rec)
		return
	}
	inner.FileSystemResults = append(inner.FileSystemResults, rec)
}

// String renders a Key for debugging/logging.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Suite, k.TriggerPart, k.Path)
}
