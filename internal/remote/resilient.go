package remote

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/objectfs/treefs/internal/circuit"
	"github.com/objectfs/treefs/pkg/retry"
	"github.com/objectfs/treefs/pkg/types"
)

// Policy configures ResilientStore. Nil members are skipped.
type Policy struct {
	Retryer *retry.Retryer
	Breaker *circuit.CircuitBreaker
	Metrics types.MetricsCollector
	Logger  *slog.Logger
}

// ResilientStore decorates a Store with retry, circuit breaking and call
// metrics. Calls that create objects run at most once per invocation.
type ResilientStore struct {
	inner  Store
	policy Policy
	logger *slog.Logger
}

// NewResilientStore wraps inner.
func NewResilientStore(inner Store, policy Policy) *ResilientStore {
	if policy.Metrics == nil {
		policy.Metrics = types.NopMetrics{}
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientStore{
		inner:  inner,
		policy: policy,
		logger: logger.With("component", "remote"),
	}
}

// Unwrap returns the decorated store.
func (s *ResilientStore) Unwrap() Store {
	return s.inner
}

func (s *ResilientStore) call(ctx context.Context, name string, idempotent bool, fn func(context.Context) error) error {
	attempt := func(ctx context.Context) error {
		start := time.Now()
		var err error
		if s.policy.Breaker != nil {
			err = s.policy.Breaker.ExecuteWithContext(ctx, fn)
		} else {
			err = fn(ctx)
		}
		s.policy.Metrics.RecordRemoteCall(name, time.Since(start), err)
		if err != nil {
			s.logger.Debug("remote call failed", "call", name, "error", err)
		}
		return err
	}

	if !idempotent || s.policy.Retryer == nil {
		return attempt(ctx)
	}
	return s.policy.Retryer.DoWithContext(ctx, attempt)
}

func (s *ResilientStore) FindByName(ctx context.Context, name, parentID string) (*FindResult, error) {
	var out *FindResult
	err := s.call(ctx, CallFindByName, true, func(ctx context.Context) (err error) {
		out, err = s.inner.FindByName(ctx, name, parentID)
		return err
	})
	return out, err
}

func (s *ResilientStore) ListChildren(ctx context.Context, parentID, pageToken string, pageSize int) (*Page, error) {
	var out *Page
	err := s.call(ctx, CallListChildren, true, func(ctx context.Context) (err error) {
		out, err = s.inner.ListChildren(ctx, parentID, pageToken, pageSize)
		return err
	})
	return out, err
}

func (s *ResilientStore) CreateDirectory(ctx context.Context, name, parentID string) (*types.RemoteObject, error) {
	var out *types.RemoteObject
	err := s.call(ctx, CallCreateDirectory, false, func(ctx context.Context) (err error) {
		out, err = s.inner.CreateDirectory(ctx, name, parentID)
		return err
	})
	return out, err
}

func (s *ResilientStore) DeleteObject(ctx context.Context, id string) error {
	return s.call(ctx, CallDeleteObject, true, func(ctx context.Context) error {
		return s.inner.DeleteObject(ctx, id)
	})
}

func (s *ResilientStore) UpdateParents(ctx context.Context, id, removeParentID, addParentID, newName string) (*types.RemoteObject, error) {
	var out *types.RemoteObject
	err := s.call(ctx, CallUpdateParents, true, func(ctx context.Context) (err error) {
		out, err = s.inner.UpdateParents(ctx, id, removeParentID, addParentID, newName)
		return err
	})
	return out, err
}

func (s *ResilientStore) Get(ctx context.Context, id string) (*types.RemoteObject, error) {
	var out *types.RemoteObject
	err := s.call(ctx, CallGet, true, func(ctx context.Context) (err error) {
		out, err = s.inner.Get(ctx, id)
		return err
	})
	return out, err
}

func (s *ResilientStore) Upload(ctx context.Context, req UploadRequest) (*types.RemoteObject, error) {
	var out *types.RemoteObject
	err := s.call(ctx, CallUpload, false, func(ctx context.Context) (err error) {
		out, err = s.inner.Upload(ctx, req)
		return err
	})
	return out, err
}

func (s *ResilientStore) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	var out io.ReadCloser
	err := s.call(ctx, CallDownload, true, func(ctx context.Context) (err error) {
		out, err = s.inner.Download(ctx, id)
		return err
	})
	return out, err
}

func (s *ResilientStore) Copy(ctx context.Context, id, name, parentID string) (*types.RemoteObject, error) {
	var out *types.RemoteObject
	err := s.call(ctx, CallCopy, false, func(ctx context.Context) (err error) {
		out, err = s.inner.Copy(ctx, id, name, parentID)
		return err
	})
	return out, err
}

func (s *ResilientStore) SetVisibility(ctx context.Context, id string, visibility types.Visibility) error {
	return s.call(ctx, CallSetVisibility, true, func(ctx context.Context) error {
		return s.inner.SetVisibility(ctx, id, visibility)
	})
}

func (s *ResilientStore) RootID() string {
	return s.inner.RootID()
}

func (s *ResilientStore) HealthCheck(ctx context.Context) error {
	return s.call(ctx, CallHealthCheck, false, s.inner.HealthCheck)
}

var _ Store = (*ResilientStore)(nil)
