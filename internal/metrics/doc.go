/*
Package metrics collects Prometheus metrics for the treefs driver.

# Overview

Collector implements types.MetricsCollector. The driver reports every verb
through RecordOperation, the resilient store reports every remote call
through RecordRemoteCall, and the path resolver reports cache hits and
misses. All metrics live on a private registry so several collectors can
coexist in one process (tests do this).

	┌─────────────┐
	│  Collector  │
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌─────────▼─────────┐
	│  Prometheus  │         │  HTTP Endpoints   │
	│   Registry   │         │  /metrics         │
	│              │         │  /health          │
	│ - Counters   │         │  /debug/metrics   │
	│ - Histograms │         │  /debug/operations│
	│ - Gauges     │         └───────────────────┘
	└──────────────┘

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      8080,
		Path:      "/metrics",
		Namespace: "treefs",
	})
	if err != nil {
		return err
	}

	if err := collector.Start(ctx, objectCache.Stats); err != nil {
		return err
	}
	defer collector.Stop(ctx)

Start serves the handler on the configured port and, given a stats
function, refreshes the cache_entries gauge every UpdateInterval.

# Exported metrics

	treefs_operations_total{operation,status}
	treefs_operation_duration_seconds{operation}
	treefs_remote_calls_total{call,status}
	treefs_remote_call_duration_seconds{call}
	treefs_cache_requests_total{type="hit"|"miss"}
	treefs_cache_entries{state="positive"|"negative"|"complete"|"pinned"}
	treefs_errors_total{operation,type}

The type label of errors_total is the error category from pkg/errors
(path, tree, remote, operation, configuration, internal).

A disabled collector has no registry; every Record method is a no-op and
Handler answers 404.
*/
package metrics
