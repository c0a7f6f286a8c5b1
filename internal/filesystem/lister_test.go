package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

func paths(entries []cache.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestList_Direct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, testOptions())
	a := f.store.AddDirectory("a", f.store.RootID())
	f.store.AddFile("x.txt", a.ID, nil)
	f.store.AddFile("b.txt", f.store.RootID(), []byte("bb"))
	l := NewLister(f.resolver)

	listing, err := l.List(ctx, "/", false)
	require.NoError(t, err)
	assert.False(t, listing.Partial)
	assert.Equal(t, []string{"/a", "/b.txt"}, paths(listing.Entries))
	assert.True(t, f.cache.IsComplete("/"))
	assert.False(t, f.cache.IsComplete("/a"))

	f.store.ResetCalls()
	again, err := l.List(ctx, "/", false)
	require.NoError(t, err)
	assert.Zero(t, f.store.TotalCalls(), "complete directories are listed from cache")
	assert.Equal(t, paths(listing.Entries), paths(again.Entries))
}

func TestList_RecursivePreOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, testOptions())
	root := f.store.RootID()
	a := f.store.AddDirectory("a", root)
	ab := f.store.AddDirectory("b", a.ID)
	f.store.AddFile("deep.txt", ab.ID, nil)
	f.store.AddFile("y.txt", a.ID, nil)
	f.store.AddFile("z.txt", root, nil)

	listing, err := NewLister(f.resolver).List(ctx, "/", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/a/b", "/a/b/deep.txt", "/a/y.txt", "/z.txt"}, paths(listing.Entries))

	for _, p := range []string{"/", "/a", "/a/b"} {
		assert.True(t, f.cache.IsComplete(p), p)
	}

	f.store.ResetCalls()
	_, err = NewLister(f.resolver).List(ctx, "/", true)
	require.NoError(t, err)
	assert.Zero(t, f.store.TotalCalls())
}

func TestList_Paging(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.ListPageSize = 2
	f := newFixture(t, nil, opts)
	for i := 0; i < 5; i++ {
		f.store.AddFile(fmt.Sprintf("f%d", i), f.store.RootID(), nil)
	}

	listing, err := NewLister(f.resolver).List(ctx, "/", false)
	require.NoError(t, err)
	assert.Len(t, listing.Entries, 5)
	assert.Equal(t, 3, f.store.Calls(remote.CallListChildren))
	assert.True(t, f.cache.IsComplete("/"))
}

func TestList_PageSizeIsClamped(t *testing.T) {
	for _, tt := range []struct {
		in, want int
	}{
		{0, DefaultListPageSize},
		{-5, 1},
		{1, 1},
		{5000, MaxListPageSize},
	} {
		opts := Options{ListPageSize: tt.in}.withDefaults()
		assert.Equal(t, tt.want, opts.ListPageSize, "input %d", tt.in)
	}
}

func TestList_TransientFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.ListPageSize = 2
	f := newFixture(t, nil, opts)
	for i := 0; i < 5; i++ {
		f.store.AddFile(fmt.Sprintf("f%d", i), f.store.RootID(), nil)
	}
	f.store.FailNext(remote.CallListChildren, nil)
	f.store.FailNext(remote.CallListChildren, transient())

	l := NewLister(f.resolver)
	listing, err := l.List(ctx, "/", false)
	require.NoError(t, err)
	assert.True(t, listing.Partial)
	assert.Equal(t, []string{"/f0", "/f1"}, paths(listing.Entries))
	assert.False(t, f.cache.IsComplete("/"))

	_, state := f.cache.Get("/f1")
	assert.Equal(t, cache.StatePositive, state, "entries seen before the failure are kept")
	_, state = f.cache.Get("/f4")
	assert.Equal(t, cache.StateUnknown, state)

	full, err := l.List(ctx, "/", false)
	require.NoError(t, err)
	assert.False(t, full.Partial)
	assert.Len(t, full.Entries, 5)
	assert.True(t, f.cache.IsComplete("/"))
}

func TestList_PermanentFailure(t *testing.T) {
	f := newFixture(t, nil, testOptions())
	f.store.FailNext(remote.CallListChildren, errors.NewError(errors.ErrCodeAccessDenied, "forbidden"))

	_, err := NewLister(f.resolver).List(context.Background(), "/", false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAccessDenied, errors.CodeOf(err))
	assert.False(t, f.cache.IsComplete("/"))
}

func TestList_StaleEntriesBecomeNegative(t *testing.T) {
	f := newFixture(t, nil, testOptions())
	f.store.AddFile("kept", f.store.RootID(), nil)
	f.cache.Put("/gone", &types.RemoteObject{ID: "old", Name: "gone", Kind: types.KindDirectory})
	f.cache.Put("/gone/inner", &types.RemoteObject{ID: "old-inner", Name: "inner", Kind: types.KindFile})

	listing, err := NewLister(f.resolver).List(context.Background(), "/", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/kept"}, paths(listing.Entries))

	_, state := f.cache.Get("/gone")
	assert.Equal(t, cache.StateNegative, state)
	_, state = f.cache.Get("/gone/inner")
	assert.Equal(t, cache.StateNegative, state)
	assert.True(t, f.cache.IsComplete("/"))
}

func TestList_DuplicateNames(t *testing.T) {
	f := newFixture(t, nil, testOptions())
	f.store.AddFile("x", f.store.RootID(), []byte("1"))
	f.store.AddFile("x", f.store.RootID(), []byte("22"))

	listing, err := NewLister(f.resolver).List(context.Background(), "/", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x", "/x"}, paths(listing.Entries))
	assert.False(t, f.cache.IsComplete("/"))
	assert.False(t, f.cache.Has("/x"))
}

func TestList_NotADirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, testOptions())
	f.store.AddFile("f", f.store.RootID(), nil)
	l := NewLister(f.resolver)

	_, err := l.List(ctx, "/f", false)
	assert.ErrorIs(t, err, errors.ErrTypeConflict)

	_, err = l.List(ctx, "/missing", false)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestWalk_SkipAll(t *testing.T) {
	f := newFixture(t, nil, testOptions())
	for i := 0; i < 3; i++ {
		f.store.AddFile(fmt.Sprintf("f%d", i), f.store.RootID(), nil)
	}

	var seen []string
	partial, err := NewLister(f.resolver).Walk(context.Background(), "/", false, func(e cache.Entry) error {
		seen = append(seen, e.Path)
		return fs.SkipAll
	})
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, []string{"/f0"}, seen)
	assert.False(t, f.cache.IsComplete("/"))
}

func TestWalk_DirectoryContainingItself(t *testing.T) {
	f := newFixture(t, nil, testOptions())
	a := f.store.AddDirectory("a", f.store.RootID())
	f.store.AddParent(a.ID, a.ID)

	_, err := NewLister(f.resolver).List(context.Background(), "/", true)
	assert.ErrorIs(t, err, errors.ErrAmbiguousObject)
}
