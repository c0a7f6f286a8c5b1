package filesystem

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
	"github.com/objectfs/treefs/pkg/utils"
)

// DriverConfig wires a Driver.
type DriverConfig struct {
	Store   remote.Store
	Cache   cache.PathCache
	Options Options
}

// Driver implements FilesystemInterface over a remote.Store. Verbs run one
// at a time; a verb's cache updates are visible to the next verb.
type Driver struct {
	mu sync.Mutex

	store    remote.Store
	cache    cache.PathCache
	resolver *Resolver
	builder  *Builder
	lister   *Lister

	root    *types.RemoteObject
	opts    Options
	logger  *slog.Logger
	metrics types.MetricsCollector
}

var _ FilesystemInterface = (*Driver)(nil)

// NewDriver creates a driver and pins the root directory in the cache.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Store == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "a remote store is required").
			WithComponent("driver")
	}
	opts := cfg.Options.withDefaults()
	c := cfg.Cache
	if c == nil {
		c = cache.NewObjectCache(nil)
	}

	rootID := opts.RootID
	if rootID == "" {
		rootID = cfg.Store.RootID()
	}
	if rootID == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "the store has no root directory").
			WithComponent("driver")
	}
	root := &types.RemoteObject{
		ID:         rootID,
		Kind:       types.KindDirectory,
		Visibility: opts.DefaultVisibility,
	}
	c.Forever(utils.RootPath, root)

	resolver := NewResolver(c, cfg.Store, opts)
	return &Driver{
		store:    cfg.Store,
		cache:    c,
		resolver: resolver,
		builder:  NewBuilder(resolver),
		lister:   NewLister(resolver),
		root:     root,
		opts:     opts,
		logger:   opts.Logger.With("component", "driver"),
		metrics:  opts.Metrics,
	}, nil
}

// Cache returns the path cache shared by the driver's components.
func (d *Driver) Cache() cache.PathCache {
	return d.cache
}

// RootID returns the ID the root path maps to.
func (d *Driver) RootID() string {
	return d.root.ID
}

// Refresh forgets everything cached at or below path.
func (d *Driver) Refresh(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.ForgetSubtree(utils.CleanPath(path))
}

// run serializes a verb and records its outcome.
func (d *Driver) run(ctx context.Context, op, path string, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	err := fn()
	d.metrics.RecordOperation(op, time.Since(start), err == nil)
	if err == nil {
		return nil
	}

	d.metrics.RecordError(op, err)
	d.logger.Debug("Operation failed",
		"operation", op,
		"path", path,
		"protocol", GetProtocol(ctx),
		"request_id", GetRequestID(ctx),
		"error", err)
	return &FilesystemError{Op: op, Path: path, Err: err}
}

// find returns the object at path, or nil when nothing is there.
func (d *Driver) find(ctx context.Context, path string) (*types.RemoteObject, error) {
	res, err := d.resolver.DetectPath(ctx, path)
	if err != nil {
		return nil, err
	}
	switch len(res.Remaining) {
	case 0:
		return res.Parent, nil
	case 1:
		return res.Terminal, nil
	default:
		return nil, nil
	}
}

func notFound(path string) error {
	return errors.NewError(errors.ErrCodeNotFound, "no such file or directory").
		WithComponent("driver").
		WithPath(path)
}

func typeConflict(path, message string) error {
	return errors.NewError(errors.ErrCodeTypeConflict, message).
		WithComponent("driver").
		WithPath(path)
}

func protected(path, message string) error {
	return errors.NewError(errors.ErrCodeProtected, message).
		WithComponent("driver").
		WithPath(path)
}

// parentDir is the directory part of path after depth folding.
func (d *Driver) parentDir(path string) (string, string) {
	dirs, name := utils.SplitPath(path, d.opts.MaxFolderLevel)
	return utils.JoinSegments(dirs), name
}

func (d *Driver) fileInfo(path string, obj *types.RemoteObject) FileInfo {
	info := FileInfo{
		Name_:          entryName(path, obj),
		Size_:          obj.Size,
		Mode_:          d.opts.FileMode,
		ModTime_:       obj.ModifiedTime,
		IsDir_:         obj.IsDir(),
		Path:           path,
		ID:             obj.ID,
		Parents:        append([]string(nil), obj.Parents...),
		Visibility:     obj.Visibility,
		MimeType:       obj.MimeType,
		ExportMimeType: d.opts.ExportMap[obj.MimeType],
	}
	if info.IsDir_ {
		info.Mode_ = fs.ModeDir | d.opts.DirMode
		info.Size_ = 0
	}
	if info.Visibility == "" {
		info.Visibility = d.opts.DefaultVisibility
	}
	return info
}

// entryName is the last segment of path, or the object's own name when depth
// folding put slashes into it.
func entryName(path string, obj *types.RemoteObject) string {
	if strings.Contains(obj.Name, "/") && strings.HasSuffix(path, "/"+obj.Name) {
		return obj.Name
	}
	return utils.BaseName(path)
}

func (d *Driver) dirEntry(e cache.Entry) DirEntry {
	info := d.fileInfo(e.Path, e.Object)
	if e.Name != "" {
		info.Name_ = e.Name
	}
	entry := DirEntry{
		Name:     info.Name_,
		Path:     e.Path,
		Type:     FileTypeRegular,
		Size:     info.Size_,
		Mode:     info.Mode_,
		ModTime:  info.ModTime_,
		IsDir:    info.IsDir_,
		ID:       info.ID,
		MimeType: info.MimeType,
	}
	if entry.IsDir {
		entry.Type = FileTypeDirectory
	}
	return entry
}

// Stat returns the metadata of the object at path.
func (d *Driver) Stat(ctx context.Context, path string) (FileInfo, error) {
	path = utils.CleanPath(path)
	var info FileInfo
	err := d.run(ctx, "stat", path, func() error {
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(path)
		}
		info = d.fileInfo(path, obj)
		return nil
	})
	return info, err
}

// Exists reports whether anything is at path.
func (d *Driver) Exists(ctx context.Context, path string) (bool, error) {
	obj, err := d.lookupObject(ctx, "exists", path)
	return obj != nil, err
}

// IsDir reports whether path is a directory.
func (d *Driver) IsDir(ctx context.Context, path string) (bool, error) {
	obj, err := d.lookupObject(ctx, "is_dir", path)
	return obj.IsDir(), err
}

// IsFile reports whether path is a file.
func (d *Driver) IsFile(ctx context.Context, path string) (bool, error) {
	obj, err := d.lookupObject(ctx, "is_file", path)
	return obj != nil && !obj.IsDir(), err
}

func (d *Driver) lookupObject(ctx context.Context, op, path string) (*types.RemoteObject, error) {
	path = utils.CleanPath(path)
	var obj *types.RemoteObject
	err := d.run(ctx, op, path, func() error {
		var err error
		obj, err = d.find(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// ReadDir lists path. Anything that is not a directory lists as empty.
func (d *Driver) ReadDir(ctx context.Context, path string, recursive bool) ([]DirEntry, error) {
	var entries []DirEntry
	err := d.Walk(ctx, path, recursive, func(e DirEntry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Walk streams the entries of path to fn, depth first in pre-order when
// recursive. A transient store failure ends the affected directory early
// without an error. fn must not call back into the Driver.
func (d *Driver) Walk(ctx context.Context, path string, recursive bool, fn WalkFunc) error {
	path = utils.CleanPath(path)
	return d.run(ctx, "list", path, func() error {
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if !obj.IsDir() {
			return nil
		}
		partial, err := d.lister.Walk(ctx, path, recursive, func(e cache.Entry) error {
			return fn(d.dirEntry(e))
		})
		if partial {
			d.logger.Warn("Listing is incomplete", "path", path)
		}
		return err
	})
}

// Mkdir creates path and any missing parents.
func (d *Driver) Mkdir(ctx context.Context, path string, opts MkdirOptions) (FileInfo, error) {
	path = utils.CleanPath(path)
	var info FileInfo
	err := d.run(ctx, "mkdir", path, func() error {
		dir, err := d.builder.EnsureDirectory(ctx, path)
		if err != nil {
			return err
		}
		if opts.Visibility != "" && dir.ID != d.root.ID {
			if dir, err = d.applyVisibility(ctx, path, dir, opts.Visibility); err != nil {
				return err
			}
		}
		info = d.fileInfo(path, dir)
		return nil
	})
	return info, err
}

// WriteFile uploads content to path, replacing an existing file and creating
// missing parent directories.
func (d *Driver) WriteFile(ctx context.Context, path string, content io.Reader, opts WriteOptions) (FileInfo, error) {
	path = utils.CleanPath(path)
	var info FileInfo
	err := d.run(ctx, "write", path, func() error {
		if content == nil {
			return errors.NewError(errors.ErrCodeValidationFailed, "no content to write").
				WithComponent("driver").
				WithPath(path)
		}
		if path == utils.RootPath {
			return typeConflict(path, "the root is a directory")
		}

		existing, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if existing.IsDir() {
			return typeConflict(path, "a directory exists at the path")
		}

		dirPath, name := d.parentDir(path)
		parent, err := d.builder.EnsureDirectory(ctx, dirPath)
		if err != nil {
			return err
		}

		req := remote.UploadRequest{
			Name:     name,
			ParentID: parent.ID,
			MimeType: opts.MimeType,
			Content:  content,
		}
		if existing != nil {
			req.ID = existing.ID
		}
		obj, err := d.store.Upload(ctx, req)
		if err != nil {
			return remoteError(err, "driver", "upload", path)
		}
		d.cache.PutChild(dirPath, name, obj)

		if opts.Visibility != "" {
			if obj, err = d.applyVisibility(ctx, path, obj, opts.Visibility); err != nil {
				return err
			}
		}
		info = d.fileInfo(path, obj)
		return nil
	})
	return info, err
}

// ReadFile opens the content of the file at path.
func (d *Driver) ReadFile(ctx context.Context, path string) (io.ReadCloser, error) {
	path = utils.CleanPath(path)
	var rc io.ReadCloser
	err := d.run(ctx, "read", path, func() error {
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if obj == nil || obj.IsDir() {
			return notFound(path)
		}
		rc, err = d.store.Download(ctx, obj.ID)
		if err != nil {
			return remoteError(err, "driver", "download", path)
		}
		return nil
	})
	return rc, err
}

// Remove deletes the file at path.
func (d *Driver) Remove(ctx context.Context, path string) error {
	path = utils.CleanPath(path)
	return d.run(ctx, "remove", path, func() error {
		if path == utils.RootPath {
			return protected(path, "the root cannot be deleted")
		}
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(path)
		}
		if obj.IsDir() {
			return typeConflict(path, "is a directory")
		}
		if err := d.store.DeleteObject(ctx, obj.ID); err != nil {
			return remoteError(err, "driver", "delete", path)
		}
		d.cache.Put(path, nil)
		return nil
	})
}

// RemoveAll deletes the directory at path together with its contents.
func (d *Driver) RemoveAll(ctx context.Context, path string) error {
	path = utils.CleanPath(path)
	return d.run(ctx, "remove_all", path, func() error {
		if path == utils.RootPath {
			return protected(path, "the root cannot be deleted")
		}
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(path)
		}
		if !obj.IsDir() {
			return typeConflict(path, "not a directory")
		}
		if obj.ID == d.root.ID {
			return protected(path, "the root cannot be deleted")
		}
		if err := d.store.DeleteObject(ctx, obj.ID); err != nil {
			return remoteError(err, "driver", "delete", path)
		}
		d.cache.Delete(path)
		return nil
	})
}

// Rename moves from to to. A file may replace a file and a directory may
// replace a directory; the replaced object is deleted once the move has
// succeeded.
func (d *Driver) Rename(ctx context.Context, from, to string) error {
	from = utils.CleanPath(from)
	to = utils.CleanPath(to)
	return d.run(ctx, "rename", from, func() error {
		if from == to {
			return nil
		}
		if from == utils.RootPath || to == utils.RootPath {
			return protected(from, "the root cannot be moved or replaced")
		}
		if utils.IsSubPath(from, to) {
			return errors.NewError(errors.ErrCodeValidationFailed, "cannot move a directory into itself").
				WithComponent("driver").
				WithPath(from).
				WithContext("destination", to)
		}

		obj, err := d.find(ctx, from)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(from)
		}
		dest, err := d.destination(ctx, obj, to)
		if err != nil {
			return err
		}

		fromDir, _ := d.parentDir(from)
		oldParent, err := d.find(ctx, fromDir)
		if err != nil {
			return err
		}
		if oldParent == nil {
			return notFound(fromDir)
		}
		toDir, name := d.parentDir(to)
		newParent, err := d.builder.EnsureDirectory(ctx, toDir)
		if err != nil {
			return err
		}

		newName := ""
		if name != obj.Name {
			newName = name
		}
		moved, err := d.store.UpdateParents(ctx, obj.ID, oldParent.ID, newParent.ID, newName)
		if err != nil {
			return remoteError(err, "driver", "move", from)
		}
		d.cache.Rename(from, to)
		d.cache.PutChild(toDir, name, moved)
		d.logger.Debug("Moved", "from", from, "to", to, "id", obj.ID)
		return d.removeReplaced(ctx, dest, to)
	})
}

// destination returns the object of the same kind as obj that occupies to,
// or nil when to is free. Anything else there is an error.
func (d *Driver) destination(ctx context.Context, obj *types.RemoteObject, to string) (*types.RemoteObject, error) {
	dest, err := d.find(ctx, to)
	if err != nil || dest == nil {
		return nil, err
	}
	if dest.ID == obj.ID {
		return nil, errors.NewError(errors.ErrCodeAlreadyExists, "source and destination are the same object").
			WithComponent("driver").
			WithPath(to)
	}
	if dest.IsDir() != obj.IsDir() {
		if dest.IsDir() {
			return nil, typeConflict(to, "a directory exists at the destination")
		}
		return nil, typeConflict(to, "a file exists at the destination")
	}
	if dest.ID == d.root.ID {
		return nil, protected(to, "the root cannot be replaced")
	}
	return dest, nil
}

// removeReplaced deletes the object a move or copy replaced at to. The new
// object already holds the path in the cache.
func (d *Driver) removeReplaced(ctx context.Context, dest *types.RemoteObject, to string) error {
	if dest == nil {
		return nil
	}
	if err := d.store.DeleteObject(ctx, dest.ID); err != nil {
		return remoteError(err, "driver", "delete", to)
	}
	d.logger.Debug("Removed replaced object", "path", to, "id", dest.ID)
	return nil
}

// Copy duplicates the file at from to to, replacing a file there.
func (d *Driver) Copy(ctx context.Context, from, to string) error {
	from = utils.CleanPath(from)
	to = utils.CleanPath(to)
	return d.run(ctx, "copy", from, func() error {
		obj, err := d.find(ctx, from)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(from)
		}
		if obj.IsDir() {
			return typeConflict(from, "directories cannot be copied")
		}
		if from == to {
			return nil
		}
		if to == utils.RootPath {
			return typeConflict(to, "the root is a directory")
		}
		dest, err := d.destination(ctx, obj, to)
		if err != nil {
			return err
		}

		toDir, name := d.parentDir(to)
		parent, err := d.builder.EnsureDirectory(ctx, toDir)
		if err != nil {
			return err
		}
		copied, err := d.store.Copy(ctx, obj.ID, name, parent.ID)
		if err != nil {
			return remoteError(err, "driver", "copy", from)
		}
		d.cache.PutChild(toDir, name, copied)
		return d.removeReplaced(ctx, dest, to)
	})
}

// SetVisibility changes the sharing state of the object at path.
func (d *Driver) SetVisibility(ctx context.Context, path string, visibility types.Visibility) error {
	path = utils.CleanPath(path)
	return d.run(ctx, "set_visibility", path, func() error {
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(path)
		}
		if obj.ID == d.root.ID {
			return protected(path, "the root visibility is fixed")
		}
		_, err = d.applyVisibility(ctx, path, obj, visibility)
		return err
	})
}

func (d *Driver) applyVisibility(ctx context.Context, path string, obj *types.RemoteObject, visibility types.Visibility) (*types.RemoteObject, error) {
	if _, ok := types.ParseVisibility(string(visibility)); !ok {
		return nil, errors.Newf(errors.ErrCodeValidationFailed, "unknown visibility %q", visibility).
			WithComponent("driver").
			WithPath(path)
	}
	if err := d.store.SetVisibility(ctx, obj.ID, visibility); err != nil {
		return nil, remoteError(err, "driver", "set_visibility", path)
	}
	updated := obj.Clone()
	updated.Visibility = visibility
	d.cache.Put(path, updated)
	return updated, nil
}

// Visibility returns the sharing state of the object at path.
func (d *Driver) Visibility(ctx context.Context, path string) (types.Visibility, error) {
	path = utils.CleanPath(path)
	var v types.Visibility
	err := d.run(ctx, "visibility", path, func() error {
		obj, err := d.find(ctx, path)
		if err != nil {
			return err
		}
		if obj == nil {
			return notFound(path)
		}
		v = obj.Visibility
		// Lookups and listings may not carry visibility; ask for the object.
		if obj.ID != d.root.ID {
			fresh, err := d.store.Get(ctx, obj.ID)
			if err != nil {
				return remoteError(err, "driver", "get", path)
			}
			if fresh.Visibility != "" && fresh.Visibility != obj.Visibility {
				updated := obj.Clone()
				updated.Visibility = fresh.Visibility
				d.cache.Put(path, updated)
			}
			if fresh.Visibility != "" {
				v = fresh.Visibility
			}
		}
		if v == "" {
			v = d.opts.DefaultVisibility
		}
		return nil
	})
	return v, err
}

// HealthCheck probes the store.
func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.store.HealthCheck(ctx); err != nil {
		return &FilesystemError{Op: "health_check", Path: utils.RootPath, Err: err}
	}
	return nil
}
