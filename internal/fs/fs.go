// Package fs adapts a remote artifact store to the FUSE operation set. The
// mount is read-only: every stat, listing, and read turns into one HTTP
// round trip against the store, and the only state kept between calls is
// the open-handle bookkeeping and the download locators observed by stat.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/sztomi/rtfs/internal/artifactory"
	"github.com/sztomi/rtfs/internal/logging"
	"github.com/sztomi/rtfs/internal/metrics"
)

// Default permission bits for a read-only mount.
const (
	DefaultFileMode = 0o440
	DefaultDirMode  = 0o550
)

// Repository is the remote store surface the filesystem needs.
type Repository interface {
	Storage(ctx context.Context, path string) (*artifactory.Listing, error)
	ReadRange(ctx context.Context, locator string, offset uint64, length uint32) ([]byte, error)
}

// Config carries mount-time tunables.
type Config struct {
	FileMode uint32
	DirMode  uint32
}

// Filesystem serves one repository of the store as a read-only tree. All
// mutable state lives on the instance: the directory and file handle
// tables and the locator cache, each behind its own lock.
type Filesystem struct {
	fuse.FileSystemBase

	client Repository
	repo   string

	fileMode uint32
	dirMode  uint32

	ctx    context.Context
	cancel context.CancelFunc

	dirs  *handleTable
	files *handleTable

	locatorMu sync.Mutex
	locators  map[string]string

	// getcontext reports the uid/gid/pid of the calling process. Replaced
	// in tests, where no FUSE request is in flight.
	getcontext func() (uint32, uint32, int)
}

// New returns a filesystem serving repo through client.
func New(client Repository, repo string, cfg Config) *Filesystem {
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultFileMode
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = DefaultDirMode
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Filesystem{
		client:     client,
		repo:       repo,
		fileMode:   cfg.FileMode,
		dirMode:    cfg.DirMode,
		ctx:        ctx,
		cancel:     cancel,
		dirs:       newHandleTable(),
		files:      newHandleTable(),
		locators:   make(map[string]string),
		getcontext: fuse.Getcontext,
	}
}

// Init is called by the host once the filesystem is mounted.
func (f *Filesystem) Init() {
	logging.Info("filesystem mounted", logging.String("repo", f.repo))
}

// Destroy is called by the host when the filesystem is unmounted.
func (f *Filesystem) Destroy() {
	f.cancel()
	logging.Info("filesystem unmounted",
		logging.String("repo", f.repo),
		logging.Int("open_dirs", f.dirs.open()),
		logging.Int("open_files", f.files.open()),
	)
}

// Getattr resolves path attributes from the remote store.
func (f *Filesystem) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	if err := f.statPath("getattr", path, stat); err != nil {
		return f.fail("getattr", path, err)
	}
	logging.Debug("getattr", logging.String("path", path))
	return f.done("getattr")
}

// Opendir opens path as a directory, verifying its type before a handle is
// allocated.
func (f *Filesystem) Opendir(path string) (int, uint64) {
	var stat fuse.Stat_t
	if err := f.statPath("opendir", path, &stat); err != nil {
		return f.fail("opendir", path, err), invalidHandle
	}
	if stat.Mode&fuse.S_IFMT != fuse.S_IFDIR {
		return f.fail("opendir", path, opErr("opendir", path, ErrNotDirectory)), invalidHandle
	}

	fh := f.dirs.alloc(handleEntry{path: path, stat: stat})
	metrics.HandleOpened("dir")
	logging.Debug("opendir", logging.String("path", path), logging.Uint64("fh", fh))
	return f.done("opendir"), fh
}

// Readdir lists the children of an open directory handle.
func (f *Filesystem) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64,
	fh uint64) int {
	if fh == 0 || fh == invalidHandle {
		return f.fail("readdir", path, opErr("readdir", path, ErrInvalidHandle))
	}
	if _, ok := f.dirs.lookup(fh); !ok {
		return f.fail("readdir", path, opErr("readdir", path, ErrInvalidHandle))
	}

	listing, err := f.client.Storage(f.ctx, f.remotePath(path))
	if err != nil {
		return f.fail("readdir", path, opErr("readdir", path, classifyRemote(err)))
	}
	switch {
	case listing.Err != nil:
		return f.fail("readdir", path, opErr("readdir", path, classifyListing(listing.Err)))
	case listing.File != nil:
		return f.fail("readdir", path, opErr("readdir", path, ErrNotDirectory))
	case listing.Dir == nil:
		return f.fail("readdir", path, opErr("readdir", path,
			fmt.Errorf("%w: empty listing", ErrMalformedMetadata)))
	}

	for i := range listing.Dir.Children {
		child := &listing.Dir.Children[i]
		mode := fuse.S_IFREG | f.fileMode
		if child.Folder {
			mode = fuse.S_IFDIR | f.dirMode
		}
		if !fill(child.Name(), &fuse.Stat_t{Mode: mode}, 0) {
			break
		}
	}
	logging.Debug("readdir",
		logging.String("path", path),
		logging.Int("children", len(listing.Dir.Children)),
	)
	return f.done("readdir")
}

// Releasedir closes a directory handle. Unknown handles are ignored.
func (f *Filesystem) Releasedir(path string, fh uint64) int {
	if f.dirs.release(fh) {
		metrics.HandleClosed("dir")
	}
	logging.Debug("releasedir", logging.String("path", path), logging.Uint64("fh", fh))
	return f.done("releasedir")
}

// Open opens path as a regular file, verifying its type before a handle is
// allocated. Write intent is refused; the mount is read-only.
func (f *Filesystem) Open(path string, flags int) (int, uint64) {
	if flags&(os.O_WRONLY|os.O_RDWR) != 0 {
		return f.fail("open", path, opErr("open", path, ErrReadOnly)), invalidHandle
	}

	var stat fuse.Stat_t
	if err := f.statPath("open", path, &stat); err != nil {
		return f.fail("open", path, err), invalidHandle
	}
	if stat.Mode&fuse.S_IFMT == fuse.S_IFDIR {
		return f.fail("open", path, opErr("open", path, ErrIsDirectory)), invalidHandle
	}

	fh := f.files.alloc(handleEntry{path: path, stat: stat})
	metrics.HandleOpened("file")
	logging.Debug("open", logging.String("path", path), logging.Uint64("fh", fh))
	return f.done("open"), fh
}

// Read fetches a byte range of an open file from the remote store. A short
// result means the range ran past the end of the content.
func (f *Filesystem) Read(path string, buff []byte, ofst int64, fh uint64) int {
	locator, ok := f.locatorFor(path)
	if !ok {
		return f.fail("read", path, opErr("read", path, ErrStaleHandle))
	}

	data, err := f.client.ReadRange(f.ctx, locator, uint64(ofst), uint32(len(buff)))
	if err != nil {
		return f.fail("read", path, opErr("read", path, classifyRemote(err)))
	}

	n := copy(buff, data)
	logging.Debug("read",
		logging.String("path", path),
		logging.Int64("offset", ofst),
		logging.Int("bytes", n),
	)
	f.done("read")
	return n
}

// Release closes a file handle. Unknown handles are ignored.
func (f *Filesystem) Release(path string, fh uint64) int {
	if f.files.release(fh) {
		metrics.HandleClosed("file")
	}
	logging.Debug("release", logging.String("path", path), logging.Uint64("fh", fh))
	return f.done("release")
}

// Statfs reports synthetic filesystem statistics. The store has no notion
// of capacity, so only the shape constants carry information.
func (f *Filesystem) Statfs(path string, stat *fuse.Statfs_t) int {
	stat.Bsize = 4096
	stat.Frsize = 4096
	stat.Namemax = 255
	return f.done("statfs")
}

// done records a successful operation and returns zero.
func (f *Filesystem) done(op string) int {
	metrics.RecordOperation(op, 0)
	return 0
}

// fail logs err and returns its errno. Missing paths stay at debug level;
// the kernel probes nonexistent names constantly.
func (f *Filesystem) fail(op, path string, err error) int {
	errc := ToErrno(err)
	if errors.Is(err, ErrNotFound) {
		logging.Debug(op+" failed", logging.String("path", path), logging.Err(err))
	} else {
		logging.Warn(op+" failed", logging.String("path", path), logging.Err(err))
	}
	metrics.RecordOperation(op, errc)
	return errc
}
