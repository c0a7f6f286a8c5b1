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

// Builder creates missing directory chains.
type Builder struct {
	resolver *Resolver
	cache    cache.PathCache
	lookup   remote.Lookup
	opts     Options
	logger   *slog.Logger
}

// NewBuilder creates a builder sharing r's cache and store.
func NewBuilder(r *Resolver) *Builder {
	return &Builder{
		resolver: r,
		cache:    r.cache,
		lookup:   r.lookup,
		opts:     r.opts,
		logger:   r.opts.Logger.With("component", "builder"),
	}
}

// EnsureDirectory makes every segment of path exist as a directory and
// returns the last one. Existing directories are reused; nothing is created
// when the whole path already exists. A file anywhere on the path yields
// ErrTypeConflict. Directories created before a failure are kept.
func (b *Builder) EnsureDirectory(ctx context.Context, path string) (*types.RemoteObject, error) {
	path = utils.CleanPath(path)

	if depth := len(utils.Segments(path)); depth > b.opts.MaxFolderLevel {
		return nil, errors.Newf(errors.ErrCodeDepthExceeded, "path has %d levels, the maximum is %d", depth, b.opts.MaxFolderLevel).
			WithComponent("builder").
			WithPath(path)
	}

	res, err := b.resolver.DetectPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if res.Found() {
		return res.Parent, nil
	}

	parent := res.Parent
	current := res.ResolvedPath()
	for i, name := range res.Remaining {
		dir := current
		current = utils.JoinPath(dir, name)

		var blocking *types.RemoteObject
		if i == 0 {
			blocking = res.Terminal
		}
		if blocking == nil {
			if obj, state := b.cache.Get(current); state == cache.StatePositive && !obj.IsDir() {
				blocking = obj
			}
		}
		if blocking != nil {
			return nil, errors.NewError(errors.ErrCodeTypeConflict, "a file is in the way of the directory").
				WithComponent("builder").
				WithPath(current).
				WithDetail("id", blocking.ID)
		}

		created, err := b.lookup.CreateDirectory(ctx, name, parent.ID)
		if err != nil {
			return nil, remoteError(err, "builder", "create_directory", current)
		}
		b.cache.PutChild(dir, name, created)
		b.cache.MarkComplete(current)
		b.logger.Debug("Created directory", "path", current, "id", created.ID)
		parent = created
	}

	return parent, nil
}
