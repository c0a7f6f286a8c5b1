package filesystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
)

func TestEnsureDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("root needs no remote calls", func(t *testing.T) {
		f := newFixture(t, nil, testOptions())
		dir, err := NewBuilder(f.resolver).EnsureDirectory(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, f.store.RootID(), dir.ID)
		assert.Zero(t, f.store.TotalCalls())
	})

	t.Run("creates the whole chain", func(t *testing.T) {
		f := newFixture(t, nil, testOptions())
		b := NewBuilder(f.resolver)

		dir, err := b.EnsureDirectory(ctx, "/a/b/c")
		require.NoError(t, err)
		assert.True(t, dir.IsDir())
		assert.Equal(t, "c", dir.Name)
		assert.Equal(t, 3, f.store.Calls(remote.CallCreateDirectory))
		assert.Equal(t, 1, f.store.Calls(remote.CallFindByName), "new directories are known to be empty")

		for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
			obj, state := f.cache.Get(p)
			require.Equal(t, cache.StatePositive, state, p)
			assert.True(t, obj.IsDir(), p)
			assert.True(t, f.cache.IsComplete(p), p)
		}

		t.Run("is idempotent", func(t *testing.T) {
			f.store.ResetCalls()
			again, err := b.EnsureDirectory(ctx, "/a/b/c")
			require.NoError(t, err)
			assert.Equal(t, dir.ID, again.ID)
			assert.Zero(t, f.store.TotalCalls())
		})
	})

	t.Run("reuses the existing prefix", func(t *testing.T) {
		f := newFixture(t, nil, testOptions())
		docs := f.store.AddDirectory("docs", f.store.RootID())
		b := NewBuilder(f.resolver)
		_, err := f.resolver.DetectPath(ctx, "/docs/2024/report.pdf")
		require.NoError(t, err)
		f.store.ResetCalls()

		dir, err := b.EnsureDirectory(ctx, "/docs/2024")
		require.NoError(t, err)
		assert.Equal(t, 1, f.store.TotalCalls())
		assert.Equal(t, 1, f.store.Calls(remote.CallCreateDirectory))
		assert.Equal(t, []string{docs.ID}, dir.Parents)
		assert.True(t, f.cache.IsComplete("/docs/2024"))
	})

	t.Run("file in the way", func(t *testing.T) {
		f := newFixture(t, nil, testOptions())
		a := f.store.AddDirectory("a", f.store.RootID())
		f.store.AddFile("f", a.ID, []byte("x"))
		b := NewBuilder(f.resolver)

		_, err := b.EnsureDirectory(ctx, "/a/f/g")
		assert.ErrorIs(t, err, errors.ErrTypeConflict)
		_, err = b.EnsureDirectory(ctx, "/a/f")
		assert.ErrorIs(t, err, errors.ErrTypeConflict)
		assert.Zero(t, f.store.Calls(remote.CallCreateDirectory))
	})

	t.Run("too deep", func(t *testing.T) {
		opts := testOptions()
		opts.MaxFolderLevel = 2
		f := newFixture(t, nil, opts)

		_, err := NewBuilder(f.resolver).EnsureDirectory(ctx, "/a/b/c")
		assert.ErrorIs(t, err, errors.ErrDepthExceeded)
		assert.Zero(t, f.store.TotalCalls())
	})

	t.Run("failure keeps directories already created", func(t *testing.T) {
		f := newFixture(t, nil, testOptions())
		b := NewBuilder(f.resolver)
		a, err := b.EnsureDirectory(ctx, "/a")
		require.NoError(t, err)

		f.store.FailNext(remote.CallCreateDirectory, transient())
		_, err = b.EnsureDirectory(ctx, "/a/b/c")
		assert.ErrorIs(t, err, errors.ErrTransient)
		assert.True(t, f.store.Exists(a.ID))

		_, state := f.cache.Get("/a/b")
		assert.Equal(t, cache.StateNegative, state)

		c, err := b.EnsureDirectory(ctx, "/a/b/c")
		require.NoError(t, err)
		assert.Equal(t, "c", c.Name)
	})
}
