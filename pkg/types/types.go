package types

import (
	"time"
)

// Kind distinguishes files from directories.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Visibility is the sharing state of a remote object.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ParseVisibility accepts "public" and "private".
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(s) {
	case VisibilityPublic:
		return VisibilityPublic, true
	case VisibilityPrivate:
		return VisibilityPrivate, true
	}
	return "", false
}

// RemoteObject is a copy of an object held by the remote store. The store
// owns the object; a cached RemoteObject is a hint.
type RemoteObject struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Kind         Kind       `json:"kind"`
	Size         int64      `json:"size"`
	ModifiedTime time.Time  `json:"modified_time"`
	Parents      []string   `json:"parents"`
	Visibility   Visibility `json:"visibility"`
	MimeType     string     `json:"mime_type"`
}

// IsDir reports whether the object is a directory.
func (o *RemoteObject) IsDir() bool {
	return o != nil && o.Kind == KindDirectory
}

// HasParent reports whether id is one of the object's parents.
func (o *RemoteObject) HasParent(id string) bool {
	for _, p := range o.Parents {
		if p == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (o *RemoteObject) Clone() *RemoteObject {
	if o == nil {
		return nil
	}
	c := *o
	c.Parents = append([]string(nil), o.Parents...)
	return &c
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Positive  int64   `json:"positive"`
	Negative  int64   `json:"negative"`
	Complete  int64   `json:"complete"`
	Pinned    int64   `json:"pinned"`
	Renames   uint64  `json:"renames"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}
