package filesystem

import (
	"context"
	"log/slog"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
	"github.com/objectfs/treefs/pkg/utils"
)

// Resolution is the outcome of DetectPath: the longest prefix of the path
// that exists as a chain of directories, and the segments left over.
type Resolution struct {
	// Parent is the deepest directory reached. It is the root when nothing
	// below the root resolved.
	Parent   *types.RemoteObject
	ParentID string
	// Resolved holds the segments that matched directories.
	Resolved []string
	// Remaining holds the segments that did not; the first of them was not
	// found as a directory below Parent.
	Remaining []string
	// Terminal is the non-directory object named by Remaining[0], when one
	// exists.
	Terminal *types.RemoteObject
}

// ResolvedPath is the canonical path of Parent.
func (r *Resolution) ResolvedPath() string {
	return utils.JoinSegments(r.Resolved)
}

// Found reports whether the whole path resolved to a directory.
func (r *Resolution) Found() bool {
	return len(r.Remaining) == 0
}

// Resolver walks paths one segment at a time, answering from the cache where
// it can and asking the store for one name at a time where it cannot.
type Resolver struct {
	cache   cache.PathCache
	lookup  remote.Lookup
	opts    Options
	logger  *slog.Logger
	metrics types.MetricsCollector
}

// NewResolver creates a resolver. The root must already be pinned in c.
func NewResolver(c cache.PathCache, lookup remote.Lookup, opts Options) *Resolver {
	opts = opts.withDefaults()
	return &Resolver{
		cache:   c,
		lookup:  lookup,
		opts:    opts,
		logger:  opts.Logger.With("component", "resolver"),
		metrics: opts.Metrics,
	}
}

// DetectPath finds the longest existing directory prefix of path. A missing
// path is not an error; it shows up as Remaining segments. Errors are
// returned for store failures and for ambiguous names.
func (r *Resolver) DetectPath(ctx context.Context, path string) (*Resolution, error) {
	segs := utils.ResolvableSegments(path, r.opts.MaxFolderLevel)

	root, state := r.cache.Get(utils.RootPath)
	if state != cache.StatePositive {
		return nil, errors.NewError(errors.ErrCodeInternalError, "root directory is not cached").
			WithComponent("resolver").
			WithOperation("detect_path")
	}

	r.logger.Debug("Path finding", "path", path, "segments", len(segs))

	res := &Resolution{Parent: root, Resolved: make([]string, 0, len(segs))}
	visited := map[string]struct{}{root.ID: {}}

	for i, name := range segs {
		parentPath := res.ResolvedPath()
		current := utils.JoinPath(parentPath, name)

		var obj *types.RemoteObject
		if r.cache.Has(current) {
			r.metrics.RecordCacheHit(current)
			obj, _ = r.cache.Get(current)
		} else {
			r.metrics.RecordCacheMiss(current)
			found, err := r.findChild(ctx, parentPath, res.Parent, name)
			if err != nil {
				return nil, err
			}
			obj = found
		}

		if !obj.IsDir() {
			res.Terminal = obj
			res.Remaining = segs[i:]
			break
		}
		if _, seen := visited[obj.ID]; seen {
			return nil, errors.Newf(errors.ErrCodeAmbiguousObject, "directory %s appears twice on the same path", obj.ID).
				WithComponent("resolver").
				WithPath(current)
		}
		visited[obj.ID] = struct{}{}
		res.Parent = obj
		res.Resolved = append(res.Resolved, name)
	}

	res.ParentID = res.Parent.ID
	r.logger.Debug("Found", "path", path, "resolved", res.ResolvedPath(), "remaining", len(res.Remaining))
	return res, nil
}

// findChild asks the store for name below parent and records everything the
// answer proves: the candidate itself, its siblings and, when the answer is
// exhaustive, the completeness of the parent.
func (r *Resolver) findChild(ctx context.Context, parentPath string, parent *types.RemoteObject, name string) (*types.RemoteObject, error) {
	current := utils.JoinPath(parentPath, name)

	result, err := r.lookup.FindByName(ctx, name, parent.ID)
	if err != nil {
		return nil, remoteError(err, "resolver", "find", current)
	}

	byName := make(map[string][]*types.RemoteObject)
	var order []string
	seenIDs := make(map[string]struct{})
	for _, obj := range result.Candidates {
		if obj == nil || !validName(obj.Name) {
			continue
		}
		if len(obj.Parents) > 0 && !obj.HasParent(parent.ID) {
			continue
		}
		if _, dup := seenIDs[obj.ID]; dup {
			continue
		}
		seenIDs[obj.ID] = struct{}{}
		if _, ok := byName[obj.Name]; !ok {
			order = append(order, obj.Name)
		}
		byName[obj.Name] = append(byName[obj.Name], obj)
	}

	clash := false
	for _, objs := range byName {
		if len(objs) > 1 {
			clash = true
			break
		}
	}

	r.cache.PutChild(parentPath, name, nil)
	for _, n := range order {
		if objs := byName[n]; len(objs) == 1 {
			r.cache.PutChild(parentPath, n, objs[0])
		} else {
			r.cache.ForgetSubtree(utils.JoinPath(parentPath, n))
		}
	}
	if result.Exhaustive && !clash {
		r.cache.MarkComplete(parentPath)
	}

	exact := byName[name]
	switch len(exact) {
	case 0:
		return nil, nil
	case 1:
		return exact[0], nil
	}

	ids := make([]string, 0, len(exact))
	for _, obj := range exact {
		ids = append(ids, obj.ID)
	}
	r.logger.Warn("Ambiguous name", "path", current, "ids", ids)
	return nil, errors.Newf(errors.ErrCodeAmbiguousObject, "%d objects named %q", len(exact), name).
		WithComponent("resolver").
		WithPath(current).
		WithDetail("ids", ids)
}

// validName rejects names that cannot be addressed as a path segment.
func validName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return true
}

// remoteError attaches path context to a store error, keeping its code.
func remoteError(err error, component, op, path string) error {
	var te *errors.TreeFSError
	if errors.As(err, &te) {
		return errors.Wrap(err, te.Code, te.Message).
			WithRetryable(te.Retryable).
			WithComponent(component).
			WithOperation(op).
			WithPath(path)
	}
	code := errors.ErrCodeTransientRemote
	switch {
	case errors.Is(err, context.Canceled):
		code = errors.ErrCodeOperationCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = errors.ErrCodeOperationTimeout
	}
	return errors.Wrap(err, code, "remote call failed").
		WithComponent(component).
		WithOperation(op).
		WithPath(path)
}
