package fs

import (
	"sort"
	"strings"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/sztomi/rtfs/internal/artifactory"
	"github.com/sztomi/rtfs/internal/logging"
)

// xattrPrefix namespaces the remote metadata exposed through extended
// attributes.
const xattrPrefix = "user.rtfs."

// fileXattrs projects the file metadata that has no slot in Stat_t. Empty
// fields are omitted so listxattr only names what getxattr can serve.
func fileXattrs(info *artifactory.FileInfo) map[string]string {
	attrs := map[string]string{
		xattrPrefix + "md5":          info.Checksums.MD5,
		xattrPrefix + "sha1":         info.Checksums.SHA1,
		xattrPrefix + "sha256":       info.Checksums.SHA256,
		xattrPrefix + "mime_type":    info.MimeType,
		xattrPrefix + "download_uri": info.DownloadURI,
		xattrPrefix + "created_by":   info.CreatedBy,
		xattrPrefix + "modified_by":  info.ModifiedBy,
	}
	for name, value := range attrs {
		if value == "" {
			delete(attrs, name)
		}
	}
	return attrs
}

// statFile fetches the file metadata behind path, or nil when path is a
// directory.
func (f *Filesystem) statFile(op, path string) (*artifactory.FileInfo, error) {
	listing, err := f.client.Storage(f.ctx, f.remotePath(path))
	if err != nil {
		return nil, opErr(op, path, classifyRemote(err))
	}
	if listing.Err != nil {
		return nil, opErr(op, path, classifyListing(listing.Err))
	}
	return listing.File, nil
}

// Getxattr serves the named extended attribute of path. Names outside the
// local namespace are answered without a remote round trip; the kernel
// probes attributes like security.capability on every read.
func (f *Filesystem) Getxattr(path string, name string) (int, []byte) {
	if !strings.HasPrefix(name, xattrPrefix) {
		return -fuse.ENODATA, nil
	}

	info, err := f.statFile("getxattr", path)
	if err != nil {
		return f.fail("getxattr", path, err), nil
	}
	if info == nil {
		// Directories expose no attributes.
		return -fuse.ENODATA, nil
	}

	value, ok := fileXattrs(info)[name]
	if !ok {
		return -fuse.ENODATA, nil
	}
	logging.Debug("getxattr", logging.String("path", path), logging.String("name", name))
	f.done("getxattr")
	return 0, []byte(value)
}

// Listxattr enumerates the extended attributes of path.
func (f *Filesystem) Listxattr(path string, fill func(name string) bool) int {
	info, err := f.statFile("listxattr", path)
	if err != nil {
		return f.fail("listxattr", path, err)
	}
	if info == nil {
		return f.done("listxattr")
	}

	attrs := fileXattrs(info)
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !fill(name) {
			break
		}
	}
	return f.done("listxattr")
}

// Setxattr is rejected, the mount is read-only.
func (f *Filesystem) Setxattr(path string, name string, value []byte, flags int) int {
	return -fuse.EROFS
}

// Removexattr is rejected, the mount is read-only.
func (f *Filesystem) Removexattr(path string, name string) int {
	return -fuse.EROFS
}
