package types

import (
	"time"
)

// MetricsCollector receives operation samples from the driver and the
// remote stores.
type MetricsCollector interface {
	RecordOperation(operation string, duration time.Duration, success bool)
	RecordRemoteCall(call string, duration time.Duration, err error)
	RecordCacheHit(path string)
	RecordCacheMiss(path string)
	RecordError(operation string, err error)
}

// NopMetrics discards every sample.
type NopMetrics struct{}

func (NopMetrics) RecordOperation(string, time.Duration, bool) {}
func (NopMetrics) RecordRemoteCall(string, time.Duration, error) {}
func (NopMetrics) RecordCacheHit(string) {}
func (NopMetrics) RecordCacheMiss(string) {}
func (NopMetrics) RecordError(string, error) {}
