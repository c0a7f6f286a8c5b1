// Package filesystem maps a slash-separated path tree onto an ID-addressed
// remote store. The resolver, builder and lister share one path cache; the
// Driver serializes the public verbs over them so that the FUSE layer and the
// CLI operate on the same view of the tree.
package filesystem

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

// FilesystemInterface defines the operations protocol handlers need. Paths
// are slash separated and cleaned before use; "" and "/" name the root.
type FilesystemInterface interface {
	// Metadata operations
	Stat(ctx context.Context, path string) (FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)

	// Directory operations
	ReadDir(ctx context.Context, path string, recursive bool) ([]DirEntry, error)
	Walk(ctx context.Context, path string, recursive bool, fn WalkFunc) error
	Mkdir(ctx context.Context, path string, opts MkdirOptions) (FileInfo, error)
	RemoveAll(ctx context.Context, path string) error

	// File operations
	ReadFile(ctx context.Context, path string) (io.ReadCloser, error)
	WriteFile(ctx context.Context, path string, content io.Reader, opts WriteOptions) (FileInfo, error)
	Remove(ctx context.Context, path string) error
	Copy(ctx context.Context, from, to string) error

	// Rename moves a file over a file or a directory over a directory.
	Rename(ctx context.Context, from, to string) error

	SetVisibility(ctx context.Context, path string, visibility types.Visibility) error
	Visibility(ctx context.Context, path string) (types.Visibility, error)
}

// WalkFunc receives each entry of a walk. Returning fs.SkipAll stops the walk
// without error.
type WalkFunc func(entry DirEntry) error

// MkdirOptions tunes Mkdir.
type MkdirOptions struct {
	// Visibility is applied to the final directory when not empty.
	Visibility types.Visibility
}

// WriteOptions tunes WriteFile.
type WriteOptions struct {
	// MimeType overrides the type guessed from the file name.
	MimeType   string
	Visibility types.Visibility
}

// DirEntry represents a directory entry returned by ReadDir
type DirEntry struct {
	Name    string
	Path    string
	Type    FileType
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool

	// Remote metadata
	ID       string
	MimeType string
}

// FileInfo represents file metadata, similar to os.FileInfo but with the
// remote object's identity attached.
type FileInfo struct {
	Name_    string
	Size_    int64
	Mode_    os.FileMode
	ModTime_ time.Time
	IsDir_   bool

	Path       string
	ID         string
	Parents    []string
	Visibility types.Visibility
	MimeType   string
	// ExportMimeType is the type native documents convert to on download,
	// empty when the object downloads as stored.
	ExportMimeType string
}

func (fi FileInfo) Name() string       { return fi.Name_ }
func (fi FileInfo) Size() int64        { return fi.Size_ }
func (fi FileInfo) Mode() os.FileMode  { return fi.Mode_ }
func (fi FileInfo) ModTime() time.Time { return fi.ModTime_ }
func (fi FileInfo) IsDir() bool        { return fi.IsDir_ }
func (fi FileInfo) Sys() interface{}   { return nil }

// FileType represents the type of a file system entry
type FileType uint8

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
)

// Protocol-specific context keys for passing additional information
type ContextKey string

const (
	ContextKeyProtocol  ContextKey = "protocol" // "fuse", "cli"
	ContextKeyRequestID ContextKey = "request_id"
)

// WithProtocol tags ctx with the handler that issued the request.
func WithProtocol(ctx context.Context, protocol string) context.Context {
	return context.WithValue(ctx, ContextKeyProtocol, protocol)
}

// WithRequestID tags ctx with a request identifier for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

func GetProtocol(ctx context.Context) string {
	if protocol, ok := ctx.Value(ContextKeyProtocol).(string); ok {
		return protocol
	}
	return "unknown"
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// FilesystemError is returned by every Driver verb. Err is the underlying
// *errors.TreeFSError (or a plain error from the store); errors.Is also
// matches the os sentinels that correspond to its code.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// Is maps error codes onto os.ErrNotExist, os.ErrExist, os.ErrPermission
// and os.ErrInvalid.
func (e *FilesystemError) Is(target error) bool {
	code := errors.CodeOf(e.Err)
	switch target {
	case os.ErrNotExist:
		return errors.IsNotFound(e.Err)
	case os.ErrExist:
		return code == errors.ErrCodeAlreadyExists
	case os.ErrPermission:
		return code == errors.ErrCodeProtected || code == errors.ErrCodeAccessDenied
	case os.ErrInvalid:
		switch code {
		case errors.ErrCodeTypeConflict, errors.ErrCodeDepthExceeded,
			errors.ErrCodePathInvalid, errors.ErrCodeValidationFailed:
			return true
		}
	}
	return false
}
