package cache

import (
	"container/list"
	"sort"
	"strings"
	"sync"

	"github.com/objectfs/treefs/pkg/types"
	"github.com/objectfs/treefs/pkg/utils"
)

// State is the knowledge the cache holds about one path.
type State int

const (
	// StateUnknown means the remote store must be asked.
	StateUnknown State = iota
	// StatePositive means the path maps to a known object.
	StatePositive
	// StateNegative means the path is known not to exist.
	StateNegative
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StatePositive:
		return "positive"
	case StateNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// Entry is a positive cache slot. Name is the child's name relative to the
// listed directory; it contains slashes for depth-folded names.
type Entry struct {
	Path   string
	Name   string
	Object *types.RemoteObject
}

// PathCache maps canonical paths to remote objects. Every method accepts
// any path form and cleans it first.
type PathCache interface {
	// Get returns the object at path. A path without a slot whose parent is
	// complete reports StateNegative.
	Get(path string) (*types.RemoteObject, State)
	// Has reports whether Get would answer without the remote store.
	Has(path string) bool
	// Put overwrites the slot at path. A nil object records a negative entry.
	// A new slot's parent is the path's lexical parent; an existing slot
	// keeps the parent it was recorded under.
	Put(path string, obj *types.RemoteObject)
	// PutChild is Put for the child name of dir. name may contain slashes
	// when deep segments were folded into it; dir is recorded as the parent.
	PutChild(dir, name string, obj *types.RemoteObject)
	// PutIfAbsent writes only when path has no slot yet.
	PutIfAbsent(path string, obj *types.RemoteObject) bool
	// Forever pins obj at path. Pinned slots survive Rename, Delete,
	// ForgetSubtree, Clear and eviction.
	Forever(path string, obj *types.RemoteObject)

	MarkComplete(path string)
	IsComplete(path string) bool
	// Invalidate drops the completeness marker of path.
	Invalidate(path string)

	// Rename moves every slot and completeness marker at or below from to
	// the same relative position below to, in one atomic pass.
	Rename(from, to string)
	// Delete marks path and everything cached below it negative and drops
	// their completeness markers.
	Delete(path string)
	// ForgetSubtree returns path and everything below it to StateUnknown.
	ForgetSubtree(path string)

	// Children returns the positive direct children of dir sorted by name.
	Children(dir string) []Entry

	Len() int
	Stats() types.CacheStats
	Clear()
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	// Enabled false selects NullCache.
	Enabled bool `yaml:"enabled"`
	// MaxEntries bounds the number of unpinned slots; 0 means unbounded.
	// Evicting a slot drops its parent's completeness marker.
	MaxEntries int `yaml:"max_entries"`
}

// DefaultCacheConfig returns an unbounded, enabled cache.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{Enabled: true}
}

type slot struct {
	obj     *types.RemoteObject // nil: negative
	parent  string
	pinned  bool
	element *list.Element // nil when pinned
}

// ObjectCache is the in-memory PathCache. One RWMutex guards all state, so
// multi-key operations such as Rename are atomic with respect to readers.
type ObjectCache struct {
	mu       sync.RWMutex
	slots    map[string]*slot
	complete map[string]struct{}
	lru      *list.List // front: most recently used; values are paths

	config *CacheConfig
	stats  types.CacheStats
}

// NewObjectCache creates a new path cache.
func NewObjectCache(config *CacheConfig) *ObjectCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	return &ObjectCache{
		slots:    make(map[string]*slot),
		complete: make(map[string]struct{}),
		lru:      list.New(),
		config:   config,
	}
}

// New returns an ObjectCache, or a NullCache when caching is disabled.
func New(config *CacheConfig) PathCache {
	if config != nil && !config.Enabled {
		return NewNullCache()
	}
	return NewObjectCache(config)
}

// Get implements PathCache.
func (c *ObjectCache) Get(path string) (*types.RemoteObject, State) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	obj, state := c.lookup(path)
	if state == StateUnknown {
		c.stats.Misses++
	} else {
		c.stats.Hits++
	}
	return obj.Clone(), state
}

// Has implements PathCache.
func (c *ObjectCache) Has(path string) bool {
	path = utils.CleanPath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, state := c.peek(path)
	return state != StateUnknown
}

func (c *ObjectCache) peek(path string) (*types.RemoteObject, State) {
	if s, ok := c.slots[path]; ok {
		if s.obj == nil {
			return nil, StateNegative
		}
		return s.obj, StatePositive
	}
	if path != utils.RootPath {
		if _, ok := c.complete[utils.ParentPath(path)]; ok {
			return nil, StateNegative
		}
	}
	return nil, StateUnknown
}

func (c *ObjectCache) lookup(path string) (*types.RemoteObject, State) {
	obj, state := c.peek(path)
	if s, ok := c.slots[path]; ok && s.element != nil {
		c.lru.MoveToFront(s.element)
	}
	return obj, state
}

// Put implements PathCache.
func (c *ObjectCache) Put(path string, obj *types.RemoteObject) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(path, "", obj.Clone())
}

// PutChild implements PathCache.
func (c *ObjectCache) PutChild(dir, name string, obj *types.RemoteObject) {
	dir = utils.CleanPath(dir)
	path := utils.JoinPath(dir, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(path, dir, obj.Clone())
}

// PutIfAbsent implements PathCache.
func (c *ObjectCache) PutIfAbsent(path string, obj *types.RemoteObject) bool {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.slots[path]; ok {
		return false
	}
	c.store(path, "", obj.Clone())
	return true
}

// store writes a slot; callers hold the write lock and pass an owned copy.
// An empty parent keeps the recorded one, or the lexical parent for a new
// slot.
func (c *ObjectCache) store(path, parent string, obj *types.RemoteObject) {
	if s, ok := c.slots[path]; ok {
		if s.pinned {
			return
		}
		s.obj = obj
		if parent != "" {
			s.parent = parent
		}
		c.lru.MoveToFront(s.element)
		return
	}

	if parent == "" {
		parent = utils.ParentPath(path)
	}
	c.slots[path] = &slot{obj: obj, parent: parent, element: c.lru.PushFront(path)}
	c.evict()
}

// parentOf is the directory path was recorded under.
func (c *ObjectCache) parentOf(path string) string {
	if s, ok := c.slots[path]; ok && s.parent != "" {
		return s.parent
	}
	return utils.ParentPath(path)
}

// evict removes least recently used slots beyond MaxEntries.
func (c *ObjectCache) evict() {
	if c.config.MaxEntries <= 0 {
		return
	}
	for c.lru.Len() > c.config.MaxEntries {
		back := c.lru.Back()
		path := back.Value.(string)
		c.lru.Remove(back)
		delete(c.complete, c.parentOf(path))
		delete(c.slots, path)
		c.stats.Evictions++
	}
}

// Forever implements PathCache.
func (c *ObjectCache) Forever(path string, obj *types.RemoteObject) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots[path]; ok && s.element != nil {
		c.lru.Remove(s.element)
	}
	parent := ""
	if path != utils.RootPath {
		parent = utils.ParentPath(path)
	}
	c.slots[path] = &slot{obj: obj.Clone(), parent: parent, pinned: true}
}

// MarkComplete implements PathCache.
func (c *ObjectCache) MarkComplete(path string) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.complete[path] = struct{}{}
}

// IsComplete implements PathCache.
func (c *ObjectCache) IsComplete(path string) bool {
	path = utils.CleanPath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.complete[path]
	return ok
}

// Invalidate implements PathCache.
func (c *ObjectCache) Invalidate(path string) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.complete, path)
}

// Rename implements PathCache. Whatever was cached at or below to is
// replaced by the moved subtree.
func (c *ObjectCache) Rename(from, to string) {
	from = utils.CleanPath(from)
	to = utils.CleanPath(to)
	if from == to || from == utils.RootPath {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fromParent := c.parentOf(from)
	toParent := c.parentOf(to)

	type move struct {
		newPath string
		slot    *slot
	}
	var moves []move
	for path, s := range c.slots {
		if s.pinned || !utils.IsSubPath(from, path) {
			continue
		}
		if path == from {
			s.parent = utils.ParentPath(to)
		} else if utils.IsSubPath(from, s.parent) {
			s.parent = to + s.parent[len(from):]
		}
		moves = append(moves, move{newPath: to + path[len(from):], slot: s})
		delete(c.slots, path)
	}
	var markers []string
	for path := range c.complete {
		if utils.IsSubPath(from, path) {
			markers = append(markers, to+path[len(from):])
			delete(c.complete, path)
		}
	}

	c.dropSubtree(to)

	for _, m := range moves {
		m.slot.element.Value = m.newPath
		c.slots[m.newPath] = m.slot
	}
	for _, path := range markers {
		c.complete[path] = struct{}{}
	}

	delete(c.complete, fromParent)
	delete(c.complete, toParent)
	c.stats.Renames++
}

// Delete implements PathCache.
func (c *ObjectCache) Delete(path string) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.parentOf(path)
	for p, s := range c.slots {
		if !s.pinned && utils.IsSubPath(path, p) {
			s.obj = nil
		}
	}
	for p := range c.complete {
		if utils.IsSubPath(path, p) {
			delete(c.complete, p)
		}
	}
	if path != utils.RootPath {
		if _, ok := c.slots[path]; !ok {
			c.store(path, parent, nil)
		}
		delete(c.complete, parent)
	}
}

// ForgetSubtree implements PathCache.
func (c *ObjectCache) ForgetSubtree(path string) {
	path = utils.CleanPath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.parentOf(path)
	c.dropSubtree(path)
	if path != utils.RootPath {
		delete(c.complete, parent)
	}
}

func (c *ObjectCache) dropSubtree(path string) {
	for p, s := range c.slots {
		if s.pinned || !utils.IsSubPath(path, p) {
			continue
		}
		c.lru.Remove(s.element)
		delete(c.slots, p)
	}
	for p := range c.complete {
		if utils.IsSubPath(path, p) {
			delete(c.complete, p)
		}
	}
}

// Children implements PathCache.
func (c *ObjectCache) Children(dir string) []Entry {
	dir = utils.CleanPath(dir)

	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := dir + "/"
	if dir == utils.RootPath {
		prefix = dir
	}
	var out []Entry
	for path, s := range c.slots {
		if s.obj == nil || path == utils.RootPath || s.parent != dir {
			continue
		}
		out = append(out, Entry{
			Path:   path,
			Name:   strings.TrimPrefix(path, prefix),
			Object: s.obj.Clone(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of slots, pinned ones included.
func (c *ObjectCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.slots)
}

// Stats implements PathCache.
func (c *ObjectCache) Stats() types.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	for _, s := range c.slots {
		switch {
		case s.pinned:
			stats.Pinned++
		case s.obj == nil:
			stats.Negative++
		default:
			stats.Positive++
		}
	}
	stats.Complete = int64(len(c.complete))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Clear drops everything except pinned slots.
func (c *ObjectCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path, s := range c.slots {
		if !s.pinned {
			delete(c.slots, path)
		}
	}
	c.lru.Init()
	c.complete = make(map[string]struct{})
}
