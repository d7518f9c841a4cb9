package fs

import (
	"math"
	"sync"
	"testing"
)

func TestHandleTableAlloc(t *testing.T) {
	table := newHandleTable()

	fh := table.alloc(handleEntry{path: "/org"})
	if fh == 0 || fh == invalidHandle {
		t.Fatalf("alloc returned a reserved value: %#x", fh)
	}

	entry, ok := table.lookup(fh)
	if !ok {
		t.Fatal("expected handle to be open after alloc")
	}
	if entry.path != "/org" {
		t.Errorf("expected path /org, got %q", entry.path)
	}
	if table.open() != 1 {
		t.Errorf("expected 1 open handle, got %d", table.open())
	}
}

func TestHandleTableSeedRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		seed := seedHandleCounter()
		if seed < 0xaaaa || seed >= math.MaxUint64/2 {
			t.Fatalf("seed %#x outside expected range", seed)
		}
	}
}

func TestHandleTableConcurrentAlloc(t *testing.T) {
	const workers = 8
	const perWorker = 64

	table := newHandleTable()
	handles := make(chan uint64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				handles <- table.alloc(handleEntry{path: "/x"})
			}
		}()
	}
	wg.Wait()
	close(handles)

	seen := make(map[uint64]bool)
	for fh := range handles {
		if seen[fh] {
			t.Fatalf("handle %#x issued twice", fh)
		}
		seen[fh] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("expected %d handles, got %d", workers*perWorker, len(seen))
	}
	if table.open() != workers*perWorker {
		t.Errorf("expected %d open handles, got %d", workers*perWorker, table.open())
	}
}

func TestHandleTableRelease(t *testing.T) {
	table := newHandleTable()
	fh := table.alloc(handleEntry{path: "/org"})

	if !table.release(fh) {
		t.Error("expected release of open handle to report removal")
	}
	if _, ok := table.lookup(fh); ok {
		t.Error("expected handle to be gone after release")
	}
	if table.release(fh) {
		t.Error("expected second release to be a no-op")
	}
	if table.release(12345) {
		t.Error("expected release of unknown handle to be a no-op")
	}
}

func TestHandleTableWraparound(t *testing.T) {
	table := newHandleTable()

	table.counter = math.MaxUint64 - 1
	if fh := table.alloc(handleEntry{}); fh != 1 {
		t.Errorf("expected counter to skip the invalid-handle value, got %#x", fh)
	}

	table.counter = math.MaxUint64
	if fh := table.alloc(handleEntry{}); fh != 1 {
		t.Errorf("expected counter to skip zero after wraparound, got %#x", fh)
	}
}
