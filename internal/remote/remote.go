// Package remote defines the contract between the path layer and an
// ID-addressed object store.
package remote

import (
	"context"
	"io"

	"github.com/objectfs/treefs/pkg/types"
)

// FindResult is the answer to a by-name lookup inside one parent.
type FindResult struct {
	// Candidates holds the exact-name matches followed by any siblings the
	// store returned in the same round trip, de-duplicated by ID.
	Candidates []*types.RemoteObject
	// Exhaustive is true when Candidates contains every child of the parent.
	Exhaustive bool
}

// Page is one page of a child listing.
type Page struct {
	Items         []*types.RemoteObject
	NextPageToken string
}

// Lookup is what the resolver, builder and lister need from a store.
type Lookup interface {
	FindByName(ctx context.Context, name, parentID string) (*FindResult, error)
	ListChildren(ctx context.Context, parentID, pageToken string, pageSize int) (*Page, error)
	CreateDirectory(ctx context.Context, name, parentID string) (*types.RemoteObject, error)
	DeleteObject(ctx context.Context, id string) error
	// UpdateParents reparents id from removeParentID to addParentID and,
	// when newName is not empty, renames it. Equal parent IDs only rename.
	UpdateParents(ctx context.Context, id, removeParentID, addParentID, newName string) (*types.RemoteObject, error)
}

// UploadRequest creates a file when ID is empty and replaces the content
// of file ID otherwise.
type UploadRequest struct {
	ID       string
	Name     string
	ParentID string
	MimeType string
	Content  io.Reader
}

// Store is a complete remote backend.
type Store interface {
	Lookup

	Get(ctx context.Context, id string) (*types.RemoteObject, error)
	Upload(ctx context.Context, req UploadRequest) (*types.RemoteObject, error)
	Download(ctx context.Context, id string) (io.ReadCloser, error)
	Copy(ctx context.Context, id, name, parentID string) (*types.RemoteObject, error)
	SetVisibility(ctx context.Context, id string, visibility types.Visibility) error
	RootID() string
	HealthCheck(ctx context.Context) error
}

// Call names used for metrics and fault injection.
const (
	CallFindByName      = "find_by_name"
	CallListChildren    = "list_children"
	CallCreateDirectory = "create_directory"
	CallDeleteObject    = "delete_object"
	CallUpdateParents   = "update_parents"
	CallGet             = "get"
	CallUpload          = "upload"
	CallDownload        = "download"
	CallCopy            = "copy"
	CallSetVisibility   = "set_visibility"
	CallHealthCheck     = "health_check"
)
