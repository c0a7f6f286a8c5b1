package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

// Collector implements types.MetricsCollector on a private Prometheus
// registry and keeps per-operation summaries for the debug endpoints.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	// Prometheus metrics
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	remoteCounter     *prometheus.CounterVec
	remoteDuration    *prometheus.HistogramVec
	cacheCounter      *prometheus.CounterVec
	cacheEntries      *prometheus.GaugeVec
	errorCounter      *prometheus.CounterVec

	// Internal tracking
	operations map[string]*OperationMetrics
	lastReset  time.Time

	// HTTP server for metrics endpoint
	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled        bool              `yaml:"enabled"`
	Port           int               `yaml:"port"`
	Path           string            `yaml:"path"`
	Labels         map[string]string `yaml:"labels"`
	Namespace      string            `yaml:"namespace"`
	Subsystem      string            `yaml:"subsystem"`
	UpdateInterval time.Duration     `yaml:"update_interval"`
}

// DefaultConfig returns the metrics defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Port:           8080,
		Path:           "/metrics",
		Namespace:      "treefs",
		UpdateInterval: 30 * time.Second,
		Labels:         make(map[string]string),
	}
}

// OperationMetrics tracks metrics for a specific operation type
type OperationMetrics struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	Errors        int64         `json:"errors"`
	LastOperation time.Time     `json:"last_operation"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// CacheStatsFunc supplies cache statistics for the periodic gauge update.
type CacheStatsFunc func() types.CacheStats

var _ types.MetricsCollector = (*Collector)(nil)

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Collector{config: config, logger: slog.Default()}, nil
	}

	collector := &Collector{
		config:     config,
		registry:   prometheus.NewRegistry(),
		logger:     slog.Default().With("component", "metrics"),
		operations: make(map[string]*OperationMetrics),
		lastReset:  time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Registry exposes the collector's registry, nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the metrics and debug endpoints.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return http.NotFoundHandler()
	}
	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/metrics", c.debugMetricsHandler)
	mux.HandleFunc("/debug/operations", c.debugOperationsHandler)
	return mux
}

// Start serves the metrics endpoint and, when stats is not nil, refreshes
// the cache gauges every UpdateInterval until ctx is done.
func (c *Collector) Start(ctx context.Context, stats CacheStatsFunc) error {
	if !c.config.Enabled {
		return nil
	}

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server error", "error", err)
		}
	}()

	if stats != nil && c.config.UpdateInterval > 0 {
		go c.updateLoop(ctx, stats)
	}

	c.logger.Info("Metrics server started", "port", c.config.Port, "path", c.config.Path)
	return nil
}

// Stop stops the metrics collection server
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one filesystem verb.
func (c *Collector) RecordOperation(operation string, duration time.Duration, success bool) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	m, ok := c.operations[operation]
	if !ok {
		m = &OperationMetrics{}
		c.operations[operation] = m
	}
	m.Count++
	m.TotalDuration += duration
	if !success {
		m.Errors++
	}
	m.LastOperation = time.Now()
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	c.mu.Unlock()

	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"status":    status(success),
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())
}

// RecordRemoteCall records one call to the remote store.
func (c *Collector) RecordRemoteCall(call string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	c.remoteCounter.With(prometheus.Labels{
		"call":   call,
		"status": status(err == nil),
	}).Inc()
	c.remoteDuration.With(prometheus.Labels{
		"call": call,
	}).Observe(duration.Seconds())
}

// RecordCacheHit records a path answered from the cache.
func (c *Collector) RecordCacheHit(path string) {
	if !c.config.Enabled {
		return
	}

	c.cacheCounter.With(prometheus.Labels{"type": "hit"}).Inc()
}

// RecordCacheMiss records a path the remote store had to answer.
func (c *Collector) RecordCacheMiss(path string) {
	if !c.config.Enabled {
		return
	}

	c.cacheCounter.With(prometheus.Labels{"type": "miss"}).Inc()
}

// RecordError records an error
func (c *Collector) RecordError(operation string, err error) {
	if !c.config.Enabled || err == nil {
		return
	}

	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"type":      classifyError(err),
	}).Inc()
}

// UpdateCacheStats sets the cache entry gauges.
func (c *Collector) UpdateCacheStats(stats types.CacheStats) {
	if !c.config.Enabled {
		return
	}

	c.cacheEntries.With(prometheus.Labels{"state": "positive"}).Set(float64(stats.Positive))
	c.cacheEntries.With(prometheus.Labels{"state": "negative"}).Set(float64(stats.Negative))
	c.cacheEntries.With(prometheus.Labels{"state": "complete"}).Set(float64(stats.Complete))
	c.cacheEntries.With(prometheus.Labels{"state": "pinned"}).Set(float64(stats.Pinned))
}

// GetMetrics returns current metrics
func (c *Collector) GetMetrics() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	operations := make(map[string]OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		operations[k] = *v
	}

	return map[string]interface{}{
		"operations": operations,
		"last_reset": c.lastReset,
		"uptime":     time.Since(c.lastReset).String(),
	}
}

// ResetMetrics resets all metrics
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) initMetrics() {
	constLabels := prometheus.Labels(c.config.Labels)

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of filesystem operations",
			ConstLabels: constLabels,
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of filesystem operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 18), // 100µs to ~13s
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	c.remoteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "remote_calls_total",
			Help:        "Total number of remote store calls",
			ConstLabels: constLabels,
		},
		[]string{"call", "status"},
	)

	c.remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "remote_call_duration_seconds",
			Help:        "Duration of remote store calls in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: constLabels,
		},
		[]string{"call"},
	)

	c.cacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "cache_requests_total",
			Help:        "Total number of path cache lookups",
			ConstLabels: constLabels,
		},
		[]string{"type"},
	)

	c.cacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "cache_entries",
			Help:        "Current number of path cache entries by state",
			ConstLabels: constLabels,
		},
		[]string{"state"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of errors",
			ConstLabels: constLabels,
		},
		[]string{"operation", "type"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.remoteCounter,
		c.remoteDuration,
		c.cacheCounter,
		c.cacheEntries,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// classifyError labels an error by its category, e.g. "path" or "remote".
func classifyError(err error) string {
	return string(errors.GetCategory(errors.CodeOf(err)))
}

func (c *Collector) updateLoop(ctx context.Context, stats CacheStatsFunc) {
	ticker := time.NewTicker(c.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.UpdateCacheStats(stats())
		}
	}
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"treefs-metrics"}`)) // Ignore write error for health check
}

func (c *Collector) debugMetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.GetMetrics()); err != nil {
		c.logger.Warn("Failed to encode debug metrics", "error", err)
	}
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	// Helper to avoid errcheck issues
	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("treefs operations summary\n")
	writef("=========================\n\n")
	writef("Uptime: %v\n", time.Since(c.lastReset).Round(time.Second))
	writef("Last Reset: %s\n\n", humanize.Time(c.lastReset))

	if len(c.operations) == 0 {
		writef("No operations recorded.\n")
		return
	}

	names := make([]string, 0, len(c.operations))
	for name := range c.operations {
		names = append(names, name)
	}
	sort.Strings(names)

	writef("%-20s %10s %10s %14s %16s\n", "Operation", "Count", "Errors", "Avg Duration", "Last Op")
	writef("%-20s %10s %10s %14s %16s\n", "---------", "-----", "------", "------------", "-------")
	for _, name := range names {
		op := c.operations[name]
		writef("%-20s %10s %10s %14v %16s\n",
			name, humanize.Comma(op.Count), humanize.Comma(op.Errors),
			op.AvgDuration, humanize.Time(op.LastOperation))
	}
}
