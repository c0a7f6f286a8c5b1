package filesystem

import (
	"context"
	"io/fs"
	"log/slog"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
	"github.com/objectfs/treefs/pkg/utils"
)

// Listing is the result of Lister.List.
type Listing struct {
	Entries []cache.Entry
	// Partial is set when a transient store failure cut a directory short.
	// The affected directory was not marked complete.
	Partial bool
}

// Lister enumerates directories, from the cache when a directory is known
// to be complete and page by page from the store otherwise.
type Lister struct {
	resolver *Resolver
	cache    cache.PathCache
	lookup   remote.Lookup
	opts     Options
	logger   *slog.Logger
	metrics  types.MetricsCollector
}

// NewLister creates a lister sharing r's cache and store.
func NewLister(r *Resolver) *Lister {
	return &Lister{
		resolver: r,
		cache:    r.cache,
		lookup:   r.lookup,
		opts:     r.opts,
		logger:   r.opts.Logger.With("component", "lister"),
		metrics:  r.opts.Metrics,
	}
}

// List collects the entries of dir, depth first in pre-order when recursive.
func (l *Lister) List(ctx context.Context, dir string, recursive bool) (*Listing, error) {
	listing := &Listing{}
	partial, err := l.walk(ctx, utils.CleanPath(dir), recursive, map[string]struct{}{}, func(e cache.Entry) error {
		listing.Entries = append(listing.Entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	listing.Partial = partial
	return listing, nil
}

// Walk calls fn for each entry as it is produced. Returning fs.SkipAll from
// fn ends the walk early without error; the directory being read is then
// not marked complete.
func (l *Lister) Walk(ctx context.Context, dir string, recursive bool, fn func(cache.Entry) error) (bool, error) {
	partial, err := l.walk(ctx, utils.CleanPath(dir), recursive, map[string]struct{}{}, fn)
	if errors.Is(err, fs.SkipAll) {
		return partial, nil
	}
	return partial, err
}

func (l *Lister) walk(ctx context.Context, dir string, recursive bool, ancestors map[string]struct{}, fn func(cache.Entry) error) (bool, error) {
	partial := false
	self, err := l.eachChild(ctx, dir, func(e cache.Entry) error {
		if err := fn(e); err != nil {
			return err
		}
		if !recursive || !e.Object.IsDir() {
			return nil
		}
		if _, loop := ancestors[e.Object.ID]; loop {
			return errors.Newf(errors.ErrCodeAmbiguousObject, "directory %s contains itself", e.Object.ID).
				WithComponent("lister").
				WithPath(e.Path)
		}
		ancestors[e.Object.ID] = struct{}{}
		defer delete(ancestors, e.Object.ID)

		p, err := l.walk(ctx, e.Path, true, ancestors, fn)
		if p {
			partial = true
		}
		return err
	})
	return partial || self, err
}

// eachChild produces the direct children of dir. A full remote enumeration
// replaces the cached children of dir and marks it complete.
func (l *Lister) eachChild(ctx context.Context, dir string, fn func(cache.Entry) error) (bool, error) {
	if l.cache.IsComplete(dir) {
		l.metrics.RecordCacheHit(dir)
		for _, e := range l.cache.Children(dir) {
			if err := fn(e); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	l.metrics.RecordCacheMiss(dir)

	res, err := l.resolver.DetectPath(ctx, dir)
	if err != nil {
		return false, err
	}
	if !res.Found() {
		if res.Terminal != nil && len(res.Remaining) == 1 {
			return false, errors.NewError(errors.ErrCodeTypeConflict, "not a directory").
				WithComponent("lister").
				WithPath(dir)
		}
		return false, errors.NewError(errors.ErrCodeNotFound, "directory not found").
			WithComponent("lister").
			WithPath(dir)
	}

	seen := make(map[string]int)
	token := ""
	for {
		page, err := l.lookup.ListChildren(ctx, res.ParentID, token, l.opts.ListPageSize)
		if err != nil {
			if errors.IsTransient(err) {
				l.logger.Warn("Listing cut short", "path", dir, "error", err)
				l.metrics.RecordError("list", err)
				return true, nil
			}
			return false, remoteError(err, "lister", "list_children", dir)
		}

		for _, obj := range page.Items {
			if obj == nil || !validName(obj.Name) {
				continue
			}
			p := utils.JoinPath(dir, obj.Name)
			seen[p]++
			if seen[p] == 1 {
				l.cache.PutChild(dir, obj.Name, obj)
			} else {
				l.logger.Warn("Duplicate name in listing", "path", p, "id", obj.ID)
				l.cache.ForgetSubtree(p)
			}
			if err := fn(cache.Entry{Path: p, Name: obj.Name, Object: obj.Clone()}); err != nil {
				return false, err
			}
		}

		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	for _, e := range l.cache.Children(dir) {
		if _, ok := seen[e.Path]; !ok {
			l.cache.Delete(e.Path)
		}
	}
	for _, n := range seen {
		if n > 1 {
			return false, nil
		}
	}
	l.cache.MarkComplete(dir)
	return false, nil
}
