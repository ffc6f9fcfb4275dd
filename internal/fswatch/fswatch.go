// Package fswatch contracts the kernel filesystem-event facility named
// in spec section 1 as out of scope: watch(path, eventMask) and
// drain() -> counter of (event, path) -> count. It backs the InotifyFile
// analyzer's per-trigger snapshot (spec section 4.5, scenario 4).
package fswatch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SettleDelay is the short interval drain() sleeps before reading the
// accumulated counters, letting the background drainer absorb pending
// deliveries (spec section 5).
const SettleDelay = 100 * time.Millisecond

// Key identifies one (event, path) counter bucket.
type Key struct {
	Event string
	Path  string
}

// Facility runs one fsnotify watcher and coalesces deliveries into
// counters, draining them only on request (spec section 4.3 step 6:
// "close the filesystem-event facility" at finalize).
type Facility struct {
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	counts  map[Key]int
	watched map[string]bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New() (*Facility, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	f := &Facility{
		watcher: w,
		counts:  make(map[Key]int),
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}

	f.wg.Add(1)
	go f.run()

	return f, nil
}

func (f *Facility) run() {
	defer f.wg.Done()
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.mu.Lock()
			f.counts[Key{Event: ev.Op.String(), Path: ev.Name}]++
			f.mu.Unlock()
		case _, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
		case <-f.done:
			return
		}
	}
}

// Watch registers path with the underlying watcher. It takes no event
// mask: every event fsnotify reports for path is counted. The first call
// per path starts the underlying watch; a repeat call for the same path
// is a no-op.
func (f *Facility) Watch(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.watched[path] {
		return nil
	}

	if err := f.watcher.Add(path); err != nil {
		return err
	}
	f.watched[path] = true
	return nil
}

// Drain sleeps SettleDelay to let the background goroutine absorb
// pending deliveries, then returns a snapshot of the accumulated
// counters keyed by path (collapsed across event names, since analyzers
// only care about per-path activity) (spec section 4.5, section 5).
func (f *Facility) Drain() map[string]int {
	time.Sleep(SettleDelay)

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]int, len(f.counts))
	for k, v := range f.counts {
		out[k.Path] += v
	}
	return out
}

// Close stops the background drainer and the underlying watcher (spec
// section 4.3 step 6).
func (f *Facility) Close() error {
	close(f.done)
	f.wg.Wait()
	return f.watcher.Close()
}
