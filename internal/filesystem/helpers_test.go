package filesystem

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/storage/memory"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

type fixture struct {
	store    *memory.Store
	cache    *cache.ObjectCache
	resolver *Resolver
}

func newFixture(t *testing.T, storeConfig *memory.Config, opts Options) *fixture {
	t.Helper()

	store := memory.New(storeConfig)
	c := cache.NewObjectCache(nil)
	c.Forever("/", dirObject(store.RootID()))
	return &fixture{
		store:    store,
		cache:    c,
		resolver: NewResolver(c, store, opts),
	}
}

func dirObject(id string) *types.RemoteObject {
	return &types.RemoteObject{ID: id, Kind: types.KindDirectory}
}

func newTestDriver(t *testing.T) (*Driver, *memory.Store) {
	t.Helper()

	store := memory.New(nil)
	d, err := NewDriver(DriverConfig{Store: store, Options: testOptions()})
	require.NoError(t, err)
	return d, store
}

func transient() error {
	return errors.NewError(errors.ErrCodeTransientRemote, "backend unavailable")
}
