package fs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/sztomi/rtfs/internal/artifactory"
)

// Sentinel errors for the failure kinds an operation can hit. Operations
// wrap them in *Error; ToErrno translates them at the FUSE boundary, so a
// remote hiccup surfaces as an errno instead of taking the mount down.
var (
	ErrNotFound          = errors.New("no such entry")
	ErrRemoteFault       = errors.New("remote store fault")
	ErrTransport         = errors.New("remote store unreachable")
	ErrMalformedMetadata = errors.New("malformed remote metadata")
	ErrInvalidHandle     = errors.New("invalid handle")
	ErrStaleHandle       = errors.New("stale file handle")
	ErrNotDirectory      = errors.New("not a directory")
	ErrIsDirectory       = errors.New("is a directory")
	ErrReadOnly          = errors.New("read-only filesystem")
)

// Error records an operation failure with its path context.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// opErr wraps err with operation and path context.
func opErr(op, path string, err error) error {
	return &Error{Op: op, Path: path, Err: err}
}

// classifyRemote maps a Repository Client failure onto the local taxonomy.
// In-band remote errors keep their message and status, undecodable bodies
// count as malformed metadata, and everything else is a transport-level
// failure.
func classifyRemote(err error) error {
	var rerr *artifactory.RemoteError
	if errors.As(err, &rerr) {
		return classifyListing(rerr)
	}
	if errors.Is(err, artifactory.ErrDecode) {
		return fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// classifyListing maps an in-band remote error onto the local taxonomy.
func classifyListing(rerr *artifactory.RemoteError) error {
	if rerr.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrRemoteFault, rerr)
}

// ToErrno translates an error into the negated errno cgofuse expects.
func ToErrno(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return -fuse.ENOENT
	case errors.Is(err, ErrNotDirectory):
		return -fuse.ENOTDIR
	case errors.Is(err, ErrIsDirectory):
		return -fuse.EISDIR
	case errors.Is(err, ErrInvalidHandle):
		return -fuse.EINVAL
	case errors.Is(err, ErrStaleHandle):
		return -fuse.EBADF
	case errors.Is(err, ErrReadOnly):
		return -fuse.EROFS
	default:
		// ErrRemoteFault, ErrTransport, ErrMalformedMetadata and anything
		// unclassified surface as an I/O error.
		return -fuse.EIO
	}
}
