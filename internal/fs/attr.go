package fs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/sztomi/rtfs/internal/artifactory"
	"github.com/sztomi/rtfs/internal/metrics"
)

// timestampLayout is the portion of the store's timestamps that matters.
// The store appends fractional seconds and a zone offset; both are ignored.
const timestampLayout = "2006-01-02T15:04:05"

// dirSize is the fixed size reported for directories. The store has no
// meaningful directory size, so stat reports the conventional block size.
const dirSize = 4096

// remotePath converts a filesystem path into the store-relative query path:
// the leading separator goes away and the remainder is joined under the
// repository name. The root maps to the repository itself.
func (f *Filesystem) remotePath(path string) string {
	return f.repo + "/" + strings.TrimPrefix(path, "/")
}

// statPath resolves path against the remote store and projects the listing
// into stat. File resolutions record the download locator for later reads.
func (f *Filesystem) statPath(op, path string, stat *fuse.Stat_t) error {
	listing, err := f.client.Storage(f.ctx, f.remotePath(path))
	if err != nil {
		return opErr(op, path, classifyRemote(err))
	}

	switch {
	case listing.Err != nil:
		return opErr(op, path, classifyListing(listing.Err))
	case listing.File != nil:
		if err := f.fileStat(listing.File, stat); err != nil {
			return opErr(op, path, err)
		}
		f.cacheLocator(path, listing.File.DownloadURI)
	case listing.Dir != nil:
		if err := f.dirStat(listing.Dir, stat); err != nil {
			return opErr(op, path, err)
		}
	default:
		return opErr(op, path, fmt.Errorf("%w: empty listing", ErrMalformedMetadata))
	}
	return nil
}

// fileStat projects file metadata into stat.
func (f *Filesystem) fileStat(info *artifactory.FileInfo, stat *fuse.Stat_t) error {
	size, err := strconv.ParseUint(info.Size, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: size %q", ErrMalformedMetadata, info.Size)
	}
	if err := fillTimes(info.Created, info.LastModified, info.LastUpdated, stat); err != nil {
		return err
	}
	stat.Mode = fuse.S_IFREG | f.fileMode
	stat.Size = int64(size)
	f.fillOwner(stat)
	return nil
}

// dirStat projects directory metadata into stat.
func (f *Filesystem) dirStat(info *artifactory.DirInfo, stat *fuse.Stat_t) error {
	if err := fillTimes(info.Created, info.LastModified, info.LastUpdated, stat); err != nil {
		return err
	}
	stat.Mode = fuse.S_IFDIR | f.dirMode
	stat.Size = dirSize
	f.fillOwner(stat)
	return nil
}

// fillTimes maps the three remote timestamps onto the stat times: change
// from created, modify from lastModified, access from lastUpdated.
func fillTimes(created, modified, updated string, stat *fuse.Stat_t) error {
	ctim, err := parseTimestamp(created)
	if err != nil {
		return fmt.Errorf("%w: created: %v", ErrMalformedMetadata, err)
	}
	mtim, err := parseTimestamp(modified)
	if err != nil {
		return fmt.Errorf("%w: lastModified: %v", ErrMalformedMetadata, err)
	}
	atim, err := parseTimestamp(updated)
	if err != nil {
		return fmt.Errorf("%w: lastUpdated: %v", ErrMalformedMetadata, err)
	}
	stat.Ctim = ctim
	stat.Mtim = mtim
	stat.Atim = atim
	return nil
}

// parseTimestamp parses the leading date-time portion of a remote
// timestamp.
func parseTimestamp(s string) (fuse.Timespec, error) {
	if len(s) < len(timestampLayout) {
		return fuse.Timespec{}, fmt.Errorf("timestamp %q too short", s)
	}
	t, err := time.Parse(timestampLayout, s[:len(timestampLayout)])
	if err != nil {
		return fuse.Timespec{}, err
	}
	return fuse.NewTimespec(t), nil
}

// fillOwner stamps ownership from the calling process and the fixed link
// count.
func (f *Filesystem) fillOwner(stat *fuse.Stat_t) {
	uid, gid, _ := f.getcontext()
	stat.Uid = uid
	stat.Gid = gid
	stat.Nlink = 1
}

// cacheLocator records the download locator observed for path.
func (f *Filesystem) cacheLocator(path, locator string) {
	f.locatorMu.Lock()
	f.locators[path] = locator
	n := len(f.locators)
	f.locatorMu.Unlock()
	metrics.SetLocatorCacheSize(n)
}

// locatorFor returns the cached download locator for path.
func (f *Filesystem) locatorFor(path string) (string, bool) {
	f.locatorMu.Lock()
	defer f.locatorMu.Unlock()
	locator, ok := f.locators[path]
	return locator, ok
}
