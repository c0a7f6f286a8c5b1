package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/objectfs/treefs/internal/cache"
	"github.com/objectfs/treefs/internal/circuit"
	"github.com/objectfs/treefs/internal/config"
	"github.com/objectfs/treefs/internal/filesystem"
	"github.com/objectfs/treefs/internal/fuse"
	"github.com/objectfs/treefs/internal/metrics"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/internal/storage/memory"
	s3store "github.com/objectfs/treefs/internal/storage/s3"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/retry"
	"github.com/objectfs/treefs/pkg/types"
)

// Storage URI schemes.
const (
	SchemeS3     = "s3"
	SchemeMemory = "mem"
)

// StorageTarget is a parsed storage URI.
type StorageTarget struct {
	Scheme string
	Bucket string
	Prefix string
}

// Adapter wires the configured remote store, path cache, driver, metrics
// and mount frontend together and owns their lifecycle.
type Adapter struct {
	config *config.Configuration
	target StorageTarget
	logger *slog.Logger

	store   *remote.ResilientStore
	cache   cache.PathCache
	driver  *filesystem.Driver
	metrics *metrics.Collector

	mu      sync.Mutex
	mount   fuse.PlatformFileSystem
	started bool
	cancel  context.CancelFunc
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger *slog.Logger
	store  remote.Store
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore replaces the store the storage URI would select.
func WithStore(store remote.Store) Option {
	return func(o *options) { o.store = store }
}

// New validates cfg and builds every component. Nothing is served until
// Start or Mount is called.
func New(ctx context.Context, cfg *config.Configuration, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	target, err := ParseStorageURI(cfg.Storage.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid storage URI: %w", err)
	}

	a := &Adapter{
		config: cfg,
		target: target,
		logger: o.logger.With("component", "adapter"),
	}

	a.metrics, err = metrics.NewCollector(a.metricsConfig())
	if err != nil {
		return nil, err
	}

	inner := o.store
	if inner == nil {
		if inner, err = a.newStore(ctx); err != nil {
			return nil, err
		}
	}
	a.store = remote.NewResilientStore(inner, a.resiliencePolicy())

	a.cache = cache.New(&cache.CacheConfig{
		Enabled:    cfg.Drive.CacheEnabled,
		MaxEntries: cfg.Drive.CacheMaxEntries,
	})

	a.driver, err = filesystem.NewDriver(filesystem.DriverConfig{
		Store:   a.store,
		Cache:   a.cache,
		Options: a.driverOptions(),
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Adapter initialized",
		"storage", cfg.Storage.URI,
		"root_id", a.driver.RootID(),
		"cache_enabled", cfg.Drive.CacheEnabled,
		"cache_max_entries", cfg.Drive.CacheMaxEntries)
	return a, nil
}

// Driver returns the filesystem driver.
func (a *Adapter) Driver() *filesystem.Driver {
	return a.driver
}

// Metrics returns the metrics collector.
func (a *Adapter) Metrics() *metrics.Collector {
	return a.metrics
}

// Target returns the parsed storage URI.
func (a *Adapter) Target() StorageTarget {
	return a.target
}

// Start checks the store and starts the metrics endpoint.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if err := a.driver.HealthCheck(ctx); err != nil {
		return fmt.Errorf("remote store is not reachable: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := a.metrics.Start(runCtx, a.cache.Stats); err != nil {
		cancel()
		return fmt.Errorf("failed to start metrics: %w", err)
	}

	a.cancel = cancel
	a.started = true
	a.logger.Info("Adapter started")
	return nil
}

// Mount exposes the driver at mountPoint through FUSE.
func (a *Adapter) Mount(ctx context.Context, mountPoint string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mount != nil && a.mount.IsMounted() {
		return errors.NewError(errors.ErrCodeMountFailed, "already mounted").
			WithComponent("adapter").
			WithPath(mountPoint)
	}

	m := a.config.Mount
	fsConfig := &fuse.Config{
		ReadOnly:     m.ReadOnly,
		UID:          m.UID,
		GID:          m.GID,
		EntryTimeout: m.EntryTimeout,
		AttrTimeout:  m.AttrTimeout,
	}
	if fsConfig.UID == 0 && fsConfig.GID == 0 {
		def := fuse.DefaultConfig()
		fsConfig.UID, fsConfig.GID = def.UID, def.GID
	}

	mountOptions := fuse.DefaultMountOptions()
	mountOptions.ReadOnly = m.ReadOnly
	mountOptions.AllowOther = m.AllowOther
	mountOptions.EntryTimeout = m.EntryTimeout
	mountOptions.AttrTimeout = m.AttrTimeout
	if a.target.Scheme != "" {
		mountOptions.Subtype = a.target.Scheme
	}

	mount := fuse.CreatePlatformMountManager(a.driver, fsConfig, &fuse.MountConfig{
		MountPoint: mountPoint,
		Options:    mountOptions,
	}, a.logger)
	if err := mount.Mount(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeMountFailed, "failed to mount").
			WithComponent("adapter").
			WithPath(mountPoint)
	}
	a.mount = mount
	return nil
}

// Wait blocks until the mount, if any, is unmounted.
func (a *Adapter) Wait() {
	a.mu.Lock()
	mount := a.mount
	a.mu.Unlock()

	if mount != nil {
		mount.Wait()
	}
}

// Stop unmounts the filesystem and stops the metrics endpoint.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	if a.mount != nil && a.mount.IsMounted() {
		stats := a.mount.GetStats()
		a.logger.Info("Unmounting",
			"lookups", stats.Lookups,
			"reads", stats.Reads,
			"writes", stats.Writes,
			"errors", stats.Errors)
		if err := a.mount.Unmount(); err != nil {
			firstErr = err
		}
	}
	a.mount = nil

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if err := a.metrics.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	a.started = false
	a.logger.Info("Adapter stopped")
	return firstErr
}

func (a *Adapter) newStore(ctx context.Context) (remote.Store, error) {
	d := a.config.Drive
	switch a.target.Scheme {
	case SchemeMemory:
		a.logger.Warn("Using the in-memory store; contents are lost on exit")
		return memory.New(&memory.Config{
			RootID:           d.RootID,
			FindMatchLimit:   d.FindMatchLimit,
			FindSiblingLimit: d.FindSiblingLimit,
			DefaultPageSize:  d.PageSize,
		}), nil

	case SchemeS3:
		s := a.config.Storage.S3
		cfg := s3store.DefaultConfig()
		cfg.Region = s.Region
		cfg.Endpoint = s.Endpoint
		cfg.ForcePathStyle = s.ForcePathStyle
		cfg.AccessKeyID = s.AccessKeyID
		cfg.SecretAccessKey = s.SecretAccessKey
		cfg.Prefix = joinPrefix(s.Prefix, a.target.Prefix)
		cfg.FindMatchLimit = d.FindMatchLimit
		cfg.FindSiblingLimit = d.FindSiblingLimit
		if d.RootID != "" {
			cfg.RootID = d.RootID
		}
		backend, err := s3store.NewBackend(ctx, a.target.Bucket, cfg)
		if err != nil {
			return nil, err
		}
		return backend, nil
	}

	return nil, errors.Newf(errors.ErrCodeUnsupportedStore, "unsupported storage scheme: %s", a.target.Scheme).
		WithComponent("adapter")
}

func (a *Adapter) resiliencePolicy() remote.Policy {
	n := a.config.Network
	policy := remote.Policy{
		Retryer: retry.New(retry.Config{
			MaxAttempts:  n.Retry.MaxAttempts,
			InitialDelay: n.Retry.InitialDelay,
			MaxDelay:     n.Retry.MaxDelay,
			Multiplier:   n.Retry.Multiplier,
			Jitter:       true,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				a.logger.Debug("Retrying remote call", "attempt", attempt, "delay", delay, "error", err)
			},
		}),
		Metrics: a.metrics,
		Logger:  a.logger,
	}
	if n.CircuitBreaker.Enabled {
		policy.Breaker = circuit.NewCircuitBreaker("remote", circuit.Config{
			Enabled:          true,
			FailureThreshold: uint32(n.CircuitBreaker.FailureThreshold),
			Timeout:          n.CircuitBreaker.Timeout,
			OnStateChange: func(name string, from, to circuit.State) {
				a.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return policy
}

func (a *Adapter) driverOptions() filesystem.Options {
	d := a.config.Drive
	m := a.config.Mount
	return filesystem.Options{
		RootID:            d.RootID,
		MaxFolderLevel:    d.MaxFolderLevel,
		ListPageSize:      d.PageSize,
		DefaultVisibility: types.Visibility(d.DefaultVisibility),
		ExportMap:         d.ExportMap,
		FileMode:          os.FileMode(m.FileMode),
		DirMode:           os.FileMode(m.DirMode),
		Logger:            a.logger,
		Metrics:           a.metrics,
	}
}

func (a *Adapter) metricsConfig() *metrics.Config {
	mc := a.config.Monitoring.Metrics
	cfg := metrics.DefaultConfig()
	cfg.Enabled = mc.Enabled
	cfg.Port = a.config.Global.MetricsPort
	if mc.Namespace != "" {
		cfg.Namespace = mc.Namespace
	}
	if mc.Path != "" {
		cfg.Path = mc.Path
	}
	for k, v := range mc.CustomLabels {
		cfg.Labels[k] = v
	}
	return cfg
}

// ParseStorageURI parses s3://bucket[/prefix] and mem:// URIs.
func ParseStorageURI(uri string) (StorageTarget, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageTarget{}, fmt.Errorf("failed to parse URI: %w", err)
	}

	switch parsed.Scheme {
	case SchemeS3:
		if parsed.Host == "" {
			return StorageTarget{}, fmt.Errorf("S3 URI must include bucket name")
		}
		return StorageTarget{
			Scheme: SchemeS3,
			Bucket: parsed.Host,
			Prefix: strings.Trim(parsed.Path, "/"),
		}, nil
	case SchemeMemory:
		return StorageTarget{Scheme: SchemeMemory}, nil
	default:
		return StorageTarget{}, fmt.Errorf("unsupported storage scheme: %q (s3:// and mem:// are supported)", parsed.Scheme)
	}
}

func joinPrefix(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
