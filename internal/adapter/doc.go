/*
Package adapter builds a running treefs instance from a configuration.

New turns a config.Configuration into live components:

	storage.uri        mem://                memory.Store
	                   s3://bucket/prefix    s3.Backend (prefix joined to storage.s3.prefix)
	network            retry + breaker       remote.ResilientStore around the store
	drive.cache_enabled                      cache.ObjectCache, or cache.NullCache when false
	drive.cache_max_entries                  LRU bound of the ObjectCache (0: unbounded)
	drive.*, mount.*                         filesystem.Options for the Driver
	monitoring.metrics                       metrics.Collector, shared by driver and store

Only idempotent store calls are retried; creating calls run once. The
circuit breaker is shared by every call and opens after
network.circuit_breaker.failure_threshold consecutive transient failures.

# Lifecycle

	a, err := adapter.New(ctx, cfg, adapter.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil { // health check, metrics endpoint
		return err
	}
	defer a.Stop(context.Background())

	if err := a.Mount(ctx, "/mnt/drive"); err != nil {
		return err
	}
	a.Wait()

Frontends that do not mount, such as the CLI, call Driver directly and
never need Start.
*/
package adapter
