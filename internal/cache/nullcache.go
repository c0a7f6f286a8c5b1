package cache

import (
	"sync"

	"github.com/objectfs/treefs/pkg/types"
	"github.com/objectfs/treefs/pkg/utils"
)

// NullCache remembers only pinned entries. Every other lookup reports
// StateUnknown, so each operation goes to the remote store.
type NullCache struct {
	mu     sync.RWMutex
	pinned map[string]*types.RemoteObject
	misses uint64
}

// NewNullCache creates a cache that stores nothing but pinned entries.
func NewNullCache() *NullCache {
	return &NullCache{pinned: make(map[string]*types.RemoteObject)}
}

func (n *NullCache) Get(path string) (*types.RemoteObject, State) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if obj, ok := n.pinned[utils.CleanPath(path)]; ok {
		return obj.Clone(), StatePositive
	}
	n.misses++
	return nil, StateUnknown
}

func (n *NullCache) Has(path string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	_, ok := n.pinned[utils.CleanPath(path)]
	return ok
}

func (n *NullCache) Forever(path string, obj *types.RemoteObject) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pinned[utils.CleanPath(path)] = obj.Clone()
}

func (n *NullCache) Put(string, *types.RemoteObject) {}
func (n *NullCache) PutChild(string, string, *types.RemoteObject) {}
func (n *NullCache) PutIfAbsent(string, *types.RemoteObject) bool { return false }
func (n *NullCache) MarkComplete(string) {}
func (n *NullCache) IsComplete(string) bool { return false }
func (n *NullCache) Invalidate(string) {}
func (n *NullCache) Rename(string, string) {}
func (n *NullCache) Delete(string) {}
func (n *NullCache) ForgetSubtree(string) {}
func (n *NullCache) Children(string) []Entry { return nil }
func (n *NullCache) Clear() {}

func (n *NullCache) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.pinned)
}

func (n *NullCache) Stats() types.CacheStats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return types.CacheStats{Misses: n.misses, Pinned: int64(len(n.pinned))}
}
