package artifactory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DirEntry is one child reference inside a directory listing.
type DirEntry struct {
	Folder bool   `json:"folder"`
	URI    string `json:"uri"`
}

// Name returns the entry's display name: the reference with its leading
// slash stripped.
func (e DirEntry) Name() string {
	return strings.TrimPrefix(e.URI, "/")
}

// DirInfo describes a folder in the store.
type DirInfo struct {
	Children     []DirEntry `json:"children"`
	Created      string     `json:"created"`
	LastModified string     `json:"lastModified"`
	LastUpdated  string     `json:"lastUpdated"`
	Path         string     `json:"path"`
	Repo         string     `json:"repo"`
	URI          string     `json:"uri"`
}

// Checksums carries the content digests the store records for an artifact.
type Checksums struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// FileInfo describes a single artifact. Size is a decimal string on the
// wire; callers parse it.
type FileInfo struct {
	Checksums         Checksums `json:"checksums"`
	Created           string    `json:"created"`
	CreatedBy         string    `json:"createdBy"`
	DownloadURI       string    `json:"downloadUri"`
	LastModified      string    `json:"lastModified"`
	LastUpdated       string    `json:"lastUpdated"`
	MimeType          string    `json:"mimeType"`
	ModifiedBy        string    `json:"modifiedBy"`
	OriginalChecksums Checksums `json:"originalChecksums"`
	Path              string    `json:"path"`
	Repo              string    `json:"repo"`
	Size              string    `json:"size"`
	URI               string    `json:"uri"`
}

// RemoteError is the structured error payload the store returns.
type RemoteError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store: %s (status %d)", e.Message, e.Status)
}

// Listing is the result of a storage query: a directory, a file, or an
// in-band remote error. Exactly one field is non-nil.
type Listing struct {
	Dir  *DirInfo
	File *FileInfo
	Err  *RemoteError
}

// UnmarshalJSON decodes the store's untagged union by probing for the
// fields that distinguish the variants: an errors array marks an error
// payload, a children array marks a directory, a download URI or size
// marks a file.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var probe struct {
		Errors      []RemoteError   `json:"errors"`
		Children    json.RawMessage `json:"children"`
		DownloadURI string          `json:"downloadUri"`
		Size        string          `json:"size"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.Errors != nil:
		if len(probe.Errors) == 0 {
			l.Err = &RemoteError{Message: "unknown remote error"}
			return nil
		}
		l.Err = &probe.Errors[0]
		return nil
	case probe.Children != nil:
		l.Dir = new(DirInfo)
		return json.Unmarshal(data, l.Dir)
	case probe.DownloadURI != "" || probe.Size != "":
		l.File = new(FileInfo)
		return json.Unmarshal(data, l.File)
	default:
		return fmt.Errorf("listing matches no known shape: %s", compact(data))
	}
}

// compact trims a JSON payload for inclusion in an error message.
func compact(data []byte) string {
	const limit = 120
	s := string(data)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
