package fs

import (
	"math"
	"math/rand"
	"sync"

	"github.com/winfsp/cgofuse/fuse"
)

// invalidHandle is the value cgofuse passes when an operation arrives
// without an open handle. Zero is reserved for the same purpose on the
// wire, so the tables never issue either.
const invalidHandle = ^uint64(0)

// handleEntry binds an open handle to the path and attributes observed at
// open time.
type handleEntry struct {
	path string
	stat fuse.Stat_t
}

// handleTable issues and tracks handles for one kind of object (directories
// or files). The counter and the entry map have separate locks; allocation
// takes the counter lock, then the table lock, never both at once, so the
// lock order is fixed and two concurrent opens cannot share a handle.
type handleTable struct {
	counterMu sync.Mutex
	counter   uint64

	mu      sync.Mutex
	entries map[uint64]handleEntry
}

func newHandleTable() *handleTable {
	return &handleTable{
		counter: seedHandleCounter(),
		entries: make(map[uint64]handleEntry),
	}
}

// seedHandleCounter picks a starting point well away from the small
// integers other layers use for special meanings. Uniqueness comes from
// monotonic allocation, not from the randomness.
func seedHandleCounter() uint64 {
	return 0xaaaa + rand.Uint64()%(math.MaxUint64/2-0xaaaa)
}

// alloc registers e and returns its new handle. Wraparound skips the
// reserved values.
func (t *handleTable) alloc(e handleEntry) uint64 {
	t.counterMu.Lock()
	t.counter++
	if t.counter == 0 || t.counter == invalidHandle {
		t.counter = 1
	}
	fh := t.counter
	t.counterMu.Unlock()

	t.mu.Lock()
	t.entries[fh] = e
	t.mu.Unlock()
	return fh
}

// lookup reports the entry for fh, if it is currently open.
func (t *handleTable) lookup(fh uint64) (handleEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fh]
	return e, ok
}

// release closes fh. Releasing a handle that is not open is a no-op; the
// return value reports whether anything was removed.
func (t *handleTable) release(fh uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[fh]; !ok {
		return false
	}
	delete(t.entries, fh)
	return true
}

// open reports the number of currently open handles.
func (t *handleTable) open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
