package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/treefs/pkg/types"
)

func dir(id string) *types.RemoteObject {
	return &types.RemoteObject{ID: id, Name: id, Kind: types.KindDirectory}
}

func file(id string) *types.RemoteObject {
	return &types.RemoteObject{ID: id, Name: id, Kind: types.KindFile, Size: 3}
}

func newRootedCache(t *testing.T, config *CacheConfig) *ObjectCache {
	t.Helper()
	c := NewObjectCache(config)
	c.Forever("/", dir("root"))
	return c
}

func TestNewObjectCache(t *testing.T) {
	tests := []struct {
		name   string
		config *CacheConfig
		verify func(t *testing.T, c PathCache)
	}{
		{
			name:   "nil config uses defaults",
			config: nil,
			verify: func(t *testing.T, c PathCache) {
				oc, ok := c.(*ObjectCache)
				require.True(t, ok)
				assert.True(t, oc.config.Enabled)
				assert.Zero(t, oc.config.MaxEntries)
			},
		},
		{
			name:   "disabled config selects NullCache",
			config: &CacheConfig{Enabled: false},
			verify: func(t *testing.T, c PathCache) {
				_, ok := c.(*NullCache)
				assert.True(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.verify(t, New(tt.config))
		})
	}
}

func TestObjectCache_TriState(t *testing.T) {
	c := newRootedCache(t, nil)

	_, state := c.Get("/a")
	assert.Equal(t, StateUnknown, state)
	assert.False(t, c.Has("/a"))

	c.Put("/a", dir("a"))
	obj, state := c.Get("a/")
	assert.Equal(t, StatePositive, state)
	assert.Equal(t, "a", obj.ID)

	c.Put("/b", nil)
	obj, state = c.Get("/b")
	assert.Equal(t, StateNegative, state)
	assert.Nil(t, obj)
	assert.True(t, c.Has("/b"))

	root, state := c.Get("")
	assert.Equal(t, StatePositive, state)
	assert.Equal(t, "root", root.ID)
}

func TestObjectCache_ReturnsCopies(t *testing.T) {
	c := newRootedCache(t, nil)

	in := file("f")
	in.Parents = []string{"root"}
	c.Put("/f", in)
	in.Name = "mutated"
	in.Parents[0] = "mutated"

	out, _ := c.Get("/f")
	assert.Equal(t, "f", out.Name)
	assert.Equal(t, "root", out.Parents[0])

	out.Name = "again"
	again, _ := c.Get("/f")
	assert.Equal(t, "f", again.Name)
}

func TestObjectCache_CompletenessLicensesNegatives(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/docs", dir("docs"))
	c.Put("/docs/a.txt", file("a"))
	assert.False(t, c.Has("/docs/b.txt"))

	c.MarkComplete("/docs")
	assert.True(t, c.IsComplete("/docs"))
	assert.True(t, c.Has("/docs/b.txt"))
	_, state := c.Get("/docs/b.txt")
	assert.Equal(t, StateNegative, state)

	// Only the direct parent counts.
	assert.False(t, c.Has("/docs/sub/deeper"))

	c.Invalidate("/docs")
	assert.False(t, c.Has("/docs/b.txt"))
}

func TestObjectCache_PutIfAbsent(t *testing.T) {
	c := newRootedCache(t, nil)

	assert.True(t, c.PutIfAbsent("/a", file("a1")))
	assert.False(t, c.PutIfAbsent("/a", file("a2")))

	obj, _ := c.Get("/a")
	assert.Equal(t, "a1", obj.ID)
}

func TestObjectCache_RootIsPinned(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/", nil)
	c.Delete("/")
	c.ForgetSubtree("/")
	c.Clear()

	obj, state := c.Get("/")
	assert.Equal(t, StatePositive, state)
	assert.Equal(t, "root", obj.ID)
}

func TestObjectCache_Rename(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/a", dir("a"))
	c.Put("/a/b", dir("b"))
	c.Put("/a/b/c.txt", file("c"))
	c.Put("/a/b/gone", nil)
	c.Put("/ab", file("ab"))
	c.MarkComplete("/a")
	c.MarkComplete("/a/b")
	c.Put("/x", dir("x"))
	c.Put("/x/y", dir("old-y"))
	c.Put("/x/y/stale.txt", file("stale"))
	c.MarkComplete("/x")

	c.Rename("/a", "/x/y")

	for _, p := range []string{"/a", "/a/b", "/a/b/c.txt", "/a/b/gone"} {
		_, state := c.Get(p)
		assert.Equal(t, StateUnknown, state, p)
	}
	assert.False(t, c.IsComplete("/a"))
	assert.False(t, c.IsComplete("/a/b"))

	obj, state := c.Get("/x/y")
	require.Equal(t, StatePositive, state)
	assert.Equal(t, "a", obj.ID)
	obj, _ = c.Get("/x/y/b/c.txt")
	assert.Equal(t, "c", obj.ID)
	_, state = c.Get("/x/y/b/gone")
	assert.Equal(t, StateNegative, state)
	assert.True(t, c.IsComplete("/x/y"))
	assert.True(t, c.IsComplete("/x/y/b"))

	// Replaced destination content is gone; sibling with shared prefix kept.
	assert.Nil(t, find(c.Children("/x/y"), "/x/y/stale.txt"))
	obj, _ = c.Get("/ab")
	assert.Equal(t, "ab", obj.ID)

	// The destination parent's child set changed.
	assert.False(t, c.IsComplete("/x"))
	assert.Equal(t, uint64(1), c.Stats().Renames)
}

func TestObjectCache_RenameProperty(t *testing.T) {
	for n := 1; n <= 20; n++ {
		t.Run(fmt.Sprintf("subtree-%d", n), func(t *testing.T) {
			c := newRootedCache(t, nil)
			c.Put("/src", dir("src"))
			want := map[string]string{"/dst": "src"}
			for i := 0; i < n; i++ {
				p := fmt.Sprintf("/src/d%d", i)
				c.Put(p, dir(fmt.Sprintf("d%d", i)))
				c.Put(p+"/f", file(fmt.Sprintf("f%d", i)))
				c.MarkComplete(p)
				want[fmt.Sprintf("/dst/d%d", i)] = fmt.Sprintf("d%d", i)
				want[fmt.Sprintf("/dst/d%d/f", i)] = fmt.Sprintf("f%d", i)
			}

			c.Rename("/src", "/dst")

			for p, id := range want {
				obj, state := c.Get(p)
				require.Equal(t, StatePositive, state, p)
				assert.Equal(t, id, obj.ID, p)
			}
			for i := 0; i < n; i++ {
				assert.False(t, c.Has(fmt.Sprintf("/src/d%d/f", i)))
				assert.True(t, c.IsComplete(fmt.Sprintf("/dst/d%d", i)))
			}
			assert.Equal(t, 2*n+2, c.Len())
		})
	}
}

func TestObjectCache_Delete(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/a", dir("a"))
	c.Put("/a/b", dir("b"))
	c.Put("/a/b/c", file("c"))
	c.Put("/ab", file("ab"))
	c.MarkComplete("/a")
	c.MarkComplete("/a/b")
	c.MarkComplete("/")

	c.Delete("/a")

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		_, state := c.Get(p)
		assert.Equal(t, StateNegative, state, p)
	}
	assert.False(t, c.IsComplete("/a"))
	assert.False(t, c.IsComplete("/a/b"))
	assert.False(t, c.IsComplete("/"))

	_, state := c.Get("/ab")
	assert.Equal(t, StatePositive, state)

	// Deleting an uncached path still records the negative answer.
	c.Delete("/never-seen")
	_, state = c.Get("/never-seen")
	assert.Equal(t, StateNegative, state)
}

func TestObjectCache_ForgetSubtree(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/a", dir("a"))
	c.Put("/a/b", file("b"))
	c.MarkComplete("/a")
	c.MarkComplete("/")

	c.ForgetSubtree("/a")

	assert.False(t, c.Has("/a"))
	assert.False(t, c.Has("/a/b"))
	assert.False(t, c.IsComplete("/a"))
	assert.False(t, c.IsComplete("/"))
}

func TestObjectCache_Children(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/d", dir("d"))
	c.Put("/d/b", file("b"))
	c.Put("/d/a", dir("a"))
	c.Put("/d/a/nested", file("nested"))
	c.Put("/d/missing", nil)
	c.Put("/dd", file("dd"))

	children := c.Children("/d")
	require.Len(t, children, 2)
	assert.Equal(t, "/d/a", children[0].Path)
	assert.Equal(t, "/d/b", children[1].Path)

	rootChildren := c.Children("/")
	require.Len(t, rootChildren, 2)
	assert.Equal(t, "/d", rootChildren[0].Path)
	assert.Equal(t, "/dd", rootChildren[1].Path)
}

func TestObjectCache_FoldedChildren(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/a", dir("a"))
	c.Put("/a/b", dir("b"))
	folded := file("folded")
	folded.Name = "c/d"
	c.PutChild("/a/b", "c/d", folded)
	c.MarkComplete("/a/b")

	children := c.Children("/a/b")
	require.Len(t, children, 1)
	assert.Equal(t, "/a/b/c/d", children[0].Path)
	assert.Equal(t, "c/d", children[0].Name)
	assert.Empty(t, c.Children("/a/b/c"))

	// A later Put keeps the recorded parent.
	c.Put("/a/b/c/d", folded)
	assert.Len(t, c.Children("/a/b"), 1)

	c.Rename("/a/b", "/x")
	moved := c.Children("/x")
	require.Len(t, moved, 1)
	assert.Equal(t, "/x/c/d", moved[0].Path)
	assert.Equal(t, "c/d", moved[0].Name)
	assert.Empty(t, c.Children("/x/c"))

	c.Delete("/x/c/d")
	assert.False(t, c.IsComplete("/x"))
}

func TestObjectCache_EvictionDropsParentMarker(t *testing.T) {
	c := newRootedCache(t, &CacheConfig{Enabled: true, MaxEntries: 3})

	c.Put("/d", dir("d"))
	c.Put("/d/a", file("a"))
	c.Put("/d/b", file("b"))
	c.MarkComplete("/d")

	_, _ = c.Get("/d") // keep /d recent
	c.Put("/d/c", file("c"))

	// /d/a was least recently used.
	assert.False(t, c.Has("/d/a"))
	assert.False(t, c.IsComplete("/d"))
	assert.Equal(t, uint64(1), c.Stats().Evictions)

	root, state := c.Get("/")
	assert.Equal(t, StatePositive, state)
	assert.Equal(t, "root", root.ID)
}

func TestObjectCache_Stats(t *testing.T) {
	c := newRootedCache(t, nil)

	c.Put("/a", file("a"))
	c.Put("/b", nil)
	c.MarkComplete("/")
	_, _ = c.Get("/a")
	_, _ = c.Get("/zzz")
	c.Invalidate("/")
	_, _ = c.Get("/zzz")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Positive)
	assert.Equal(t, int64(1), stats.Negative)
	assert.Equal(t, int64(1), stats.Pinned)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}

func TestObjectCache_ConcurrentAccess(t *testing.T) {
	c := newRootedCache(t, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p := fmt.Sprintf("/g%d/f%d", g, i)
				c.Put(p, file(p))
				_, _ = c.Get(p)
				if i%10 == 0 {
					c.Rename(fmt.Sprintf("/g%d", g), fmt.Sprintf("/g%d", g))
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 801, c.Len())
}

func TestNullCache(t *testing.T) {
	n := NewNullCache()
	n.Forever("/", dir("root"))

	n.Put("/a", file("a"))
	n.MarkComplete("/")

	assert.False(t, n.Has("/a"))
	assert.False(t, n.IsComplete("/"))
	_, state := n.Get("/a")
	assert.Equal(t, StateUnknown, state)

	root, state := n.Get("/")
	assert.Equal(t, StatePositive, state)
	assert.Equal(t, "root", root.ID)
	assert.Nil(t, n.Children("/"))
	assert.Equal(t, 1, n.Len())
	assert.Equal(t, uint64(1), n.Stats().Misses)
}

func find(entries []Entry, path string) *Entry {
	for i := range entries {
		if entries[i].Path == path {
			return &entries[i]
		}
	}
	return nil
}
