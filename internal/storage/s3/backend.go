package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

const (
	// DirectoryMimeType marks directories.
	DirectoryMimeType = "application/vnd.treefs.folder"

	metaVisibility = "visibility"
	component      = "s3-backend"
)

// s3API is the subset of *s3.Client the backend calls.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Backend is a remote.Store on an S3 bucket. Objects are addressed by ID;
// the bucket holds one tree key per object plus an ID locator.
type Backend struct {
	client  s3API
	bucket  string
	config  *Config
	keys    keyspace
	logger  *slog.Logger
	metrics *MetricsCollector
	now     func() time.Time
}

var _ remote.Store = (*Backend)(nil)

// NewBackend creates a backend for bucket using the default AWS credential
// chain, or static credentials when cfg carries keys.
func NewBackend(ctx context.Context, bucket string, cfg *Config) (*Backend, error) {
	if bucket == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "bucket name cannot be empty").
			WithComponent(component)
	}
	cfg = cfg.withDefaults()

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "failed to load AWS config").
			WithComponent(component)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	backend := newBackend(client, bucket, cfg)
	backend.logger.Info("S3 backend configured",
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"prefix", backend.keys.prefix,
		"root_id", cfg.RootID)

	if !cfg.SkipHealthCheck {
		if err := backend.HealthCheck(ctx); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

func newBackend(client s3API, bucket string, cfg *Config) *Backend {
	cfg = cfg.withDefaults()
	return &Backend{
		client:  client,
		bucket:  bucket,
		config:  cfg,
		keys:    newKeyspace(cfg.Prefix),
		logger:  slog.Default().With("component", component, "bucket", bucket),
		metrics: NewMetricsCollector(),
		now:     time.Now,
	}
}

// RootID implements remote.Store.
func (b *Backend) RootID() string {
	return b.config.RootID
}

// GetMetrics returns request statistics.
func (b *Backend) GetMetrics() BackendMetrics {
	return b.metrics.GetMetrics()
}

// HealthCheck implements remote.Store.
func (b *Backend) HealthCheck(ctx context.Context) error {
	err := b.request(ctx, func(ctx context.Context) error {
		_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
		return err
	})
	if err != nil {
		return b.translateError(err, "HeadBucket", b.bucket)
	}
	return nil
}

// FindByName implements remote.Lookup with two listings: the exact-name
// prefix and the first page of all siblings.
func (b *Backend) FindByName(ctx context.Context, name, parentID string) (*remote.FindResult, error) {
	if err := b.checkDirectory(parentID); err != nil {
		return nil, err
	}

	exact, _, _, err := b.list(ctx, b.keys.named(parentID, name), "", b.config.FindMatchLimit)
	if err != nil {
		return nil, err
	}
	siblings, truncated, _, err := b.list(ctx, b.keys.children(parentID), "", b.config.FindSiblingLimit)
	if err != nil {
		return nil, err
	}

	result := &remote.FindResult{Exhaustive: !truncated}
	seen := make(map[string]struct{}, len(exact)+len(siblings))
	for _, obj := range append(exact, siblings...) {
		if _, dup := seen[obj.ID]; dup {
			continue
		}
		seen[obj.ID] = struct{}{}
		result.Candidates = append(result.Candidates, obj)
	}
	return result, nil
}

// ListChildren implements remote.Lookup. Page tokens are S3 continuation
// tokens.
func (b *Backend) ListChildren(ctx context.Context, parentID, pageToken string, pageSize int) (*remote.Page, error) {
	if err := b.checkDirectory(parentID); err != nil {
		return nil, err
	}
	items, truncated, next, err := b.list(ctx, b.keys.children(parentID), pageToken, pageSize)
	if err != nil {
		return nil, err
	}
	page := &remote.Page{Items: items}
	if truncated {
		page.NextPageToken = next
	}
	return page, nil
}

// CreateDirectory implements remote.Lookup.
func (b *Backend) CreateDirectory(ctx context.Context, name, parentID string) (*types.RemoteObject, error) {
	if err := b.checkDirectory(parentID); err != nil {
		return nil, err
	}
	obj := &types.RemoteObject{
		ID:           newID(types.KindDirectory),
		Name:         name,
		Kind:         types.KindDirectory,
		ModifiedTime: b.now(),
		Parents:      []string{parentID},
		Visibility:   types.VisibilityPrivate,
		MimeType:     DirectoryMimeType,
	}
	if err := b.put(ctx, obj, nil); err != nil {
		return nil, err
	}
	return obj, nil
}

// Upload implements remote.Store. Content is buffered so the SDK can sign
// and checksum a seekable body.
func (b *Backend) Upload(ctx context.Context, req remote.UploadRequest) (*types.RemoteObject, error) {
	var data []byte
	if req.Content != nil {
		var err error
		if data, err = io.ReadAll(req.Content); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTransientRemote, "failed to read upload content").
				WithComponent(component).WithOperation("Upload")
		}
	}

	if req.ID == "" {
		if err := b.checkDirectory(req.ParentID); err != nil {
			return nil, err
		}
		obj := &types.RemoteObject{
			ID:           newID(types.KindFile),
			Name:         req.Name,
			Kind:         types.KindFile,
			Size:         int64(len(data)),
			ModifiedTime: b.now(),
			Parents:      []string{req.ParentID},
			Visibility:   types.VisibilityPrivate,
			MimeType:     req.MimeType,
		}
		if obj.MimeType == "" {
			obj.MimeType = detectContentType(obj.Name)
		}
		if err := b.put(ctx, obj, data); err != nil {
			return nil, err
		}
		return obj, nil
	}

	obj, key, err := b.stat(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if obj.IsDir() {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "cannot upload content to a directory").
			WithComponent(component).WithContext("id", req.ID)
	}
	if req.MimeType != "" {
		obj.MimeType = req.MimeType
	}
	obj.Size = int64(len(data))
	obj.ModifiedTime = b.now()
	if err := b.putObject(ctx, key, obj, data); err != nil {
		return nil, err
	}
	return obj, nil
}

// Download implements remote.Store.
func (b *Backend) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	key, err := b.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	if kindOf(id) == types.KindDirectory {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "cannot download a directory").
			WithComponent(component).WithContext("id", id)
	}

	var out *s3.GetObjectOutput
	err = b.request(ctx, func(ctx context.Context) (err error) {
		out, err = b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return nil, b.translateError(err, "GetObject", key)
	}
	b.metrics.RecordBytesDownloaded(aws.ToInt64(out.ContentLength))
	return out.Body, nil
}

// Copy implements remote.Store. Only files can be copied.
func (b *Backend) Copy(ctx context.Context, id, name, parentID string) (*types.RemoteObject, error) {
	if err := b.checkDirectory(parentID); err != nil {
		return nil, err
	}
	src, srcKey, err := b.stat(ctx, id)
	if err != nil {
		return nil, err
	}
	if src.IsDir() {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "cannot copy a directory").
			WithComponent(component).WithContext("id", id)
	}

	obj := src.Clone()
	obj.ID = newID(types.KindFile)
	obj.Name = name
	obj.Parents = []string{parentID}
	obj.ModifiedTime = b.now()
	if err := b.copyObject(ctx, srcKey, b.keys.object(parentID, name, obj.ID), nil); err != nil {
		return nil, err
	}
	if err := b.putLocator(ctx, obj.ID, b.keys.object(parentID, name, obj.ID)); err != nil {
		return nil, err
	}
	return obj, nil
}

// UpdateParents implements remote.Lookup by copying the tree key. The
// object ID, and therefore every descendant key, is unchanged.
func (b *Backend) UpdateParents(ctx context.Context, id, removeParentID, addParentID, newName string) (*types.RemoteObject, error) {
	obj, oldKey, err := b.stat(ctx, id)
	if err != nil {
		return nil, err
	}
	parent := obj.Parents[0]
	if removeParentID != addParentID {
		if parent != removeParentID {
			return nil, errors.NewError(errors.ErrCodeValidationFailed, "object is not in the given parent").
				WithComponent(component).WithContext("id", id).WithContext("parent", removeParentID)
		}
		if err := b.checkDirectory(addParentID); err != nil {
			return nil, err
		}
		parent = addParentID
	}
	if newName != "" {
		obj.Name = newName
	}
	obj.Parents = []string{parent}

	newKey := b.keys.object(parent, obj.Name, id)
	if newKey == oldKey {
		return obj, nil
	}
	if err := b.copyObject(ctx, oldKey, newKey, nil); err != nil {
		return nil, err
	}
	if err := b.putLocator(ctx, id, newKey); err != nil {
		return nil, err
	}
	if err := b.deleteKey(ctx, oldKey); err != nil {
		return nil, err
	}
	obj.ModifiedTime = b.now()
	return obj, nil
}

// DeleteObject implements remote.Lookup. Directories are removed with
// everything below them.
func (b *Backend) DeleteObject(ctx context.Context, id string) error {
	if id == b.config.RootID {
		return errors.NewError(errors.ErrCodeProtected, "root cannot be deleted").WithComponent(component)
	}
	key, err := b.locate(ctx, id)
	if err != nil {
		return err
	}

	if kindOf(id) == types.KindDirectory {
		if err := b.deleteChildren(ctx, id); err != nil {
			return err
		}
	}
	if err := b.deleteKey(ctx, key); err != nil {
		return err
	}
	return b.deleteKey(ctx, b.keys.locator(id))
}

func (b *Backend) deleteChildren(ctx context.Context, dirID string) error {
	token := ""
	for {
		items, truncated, next, err := b.list(ctx, b.keys.children(dirID), token, 1000)
		if err != nil {
			return err
		}
		for _, child := range items {
			if child.IsDir() {
				if err := b.deleteChildren(ctx, child.ID); err != nil {
					return err
				}
			}
			if err := b.deleteKey(ctx, b.keys.object(dirID, child.Name, child.ID)); err != nil {
				return err
			}
			if err := b.deleteKey(ctx, b.keys.locator(child.ID)); err != nil {
				return err
			}
		}
		if !truncated {
			return nil
		}
		token = next
	}
}

// SetVisibility implements remote.Store by rewriting object metadata in
// place.
func (b *Backend) SetVisibility(ctx context.Context, id string, visibility types.Visibility) error {
	if _, ok := types.ParseVisibility(string(visibility)); !ok {
		return errors.NewError(errors.ErrCodeValidationFailed, "invalid visibility").
			WithComponent(component).WithContext("visibility", string(visibility))
	}
	obj, key, err := b.stat(ctx, id)
	if err != nil {
		return err
	}
	obj.Visibility = visibility
	return b.copyObject(ctx, key, key, obj)
}

// Get implements remote.Store.
func (b *Backend) Get(ctx context.Context, id string) (*types.RemoteObject, error) {
	if id == b.config.RootID {
		return b.root(), nil
	}
	obj, _, err := b.stat(ctx, id)
	return obj, err
}

func (b *Backend) root() *types.RemoteObject {
	return &types.RemoteObject{
		ID:         b.config.RootID,
		Kind:       types.KindDirectory,
		Visibility: types.VisibilityPrivate,
		MimeType:   DirectoryMimeType,
	}
}

// checkDirectory rejects file IDs used as parents. Existence is not
// checked; an unknown directory simply has no children.
func (b *Backend) checkDirectory(id string) error {
	if id == b.config.RootID || kindOf(id) == types.KindDirectory {
		return nil
	}
	return errors.NewError(errors.ErrCodeTypeConflict, "object is not a directory").
		WithComponent(component).WithContext("id", id)
}

// locate resolves an object ID to its tree key.
func (b *Backend) locate(ctx context.Context, id string) (string, error) {
	key := b.keys.locator(id)
	var out *s3.GetObjectOutput
	err := b.request(ctx, func(ctx context.Context) (err error) {
		out, err = b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return "", b.translateError(err, "GetObject", key).WithContext("id", id)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTransientRemote, "failed to read locator").
			WithComponent(component).WithContext("id", id)
	}
	return string(body), nil
}

// stat loads the full object for id, including metadata.
func (b *Backend) stat(ctx context.Context, id string) (*types.RemoteObject, string, error) {
	key, err := b.locate(ctx, id)
	if err != nil {
		return nil, "", err
	}
	parentID, name, _, ok := b.keys.parse(key)
	if !ok {
		return nil, "", errors.NewError(errors.ErrCodeInternalError, "corrupt locator").
			WithComponent(component).WithContext("id", id).WithContext("key", key)
	}

	var out *s3.HeadObjectOutput
	err = b.request(ctx, func(ctx context.Context) (err error) {
		out, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return nil, "", b.translateError(err, "HeadObject", key).WithContext("id", id)
	}

	obj := &types.RemoteObject{
		ID:           id,
		Name:         name,
		Kind:         kindOf(id),
		Size:         aws.ToInt64(out.ContentLength),
		ModifiedTime: aws.ToTime(out.LastModified),
		Parents:      []string{parentID},
		Visibility:   types.VisibilityPrivate,
		MimeType:     aws.ToString(out.ContentType),
	}
	if v, ok := types.ParseVisibility(out.Metadata[metaVisibility]); ok {
		obj.Visibility = v
	}
	return obj, key, nil
}

// list returns the objects directly under prefix. Visibility is not part
// of a listing and is left empty.
func (b *Backend) list(ctx context.Context, prefix, token string, limit int) ([]*types.RemoteObject, bool, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(min(limit, 1000)))
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	var out *s3.ListObjectsV2Output
	err := b.request(ctx, func(ctx context.Context) (err error) {
		out, err = b.client.ListObjectsV2(ctx, input)
		return err
	})
	if err != nil {
		return nil, false, "", b.translateError(err, "ListObjectsV2", prefix)
	}

	objects := make([]*types.RemoteObject, 0, len(out.Contents))
	for _, item := range out.Contents {
		parentID, name, id, ok := b.keys.parse(aws.ToString(item.Key))
		if !ok {
			b.logger.Warn("Skipping foreign key", "key", aws.ToString(item.Key))
			continue
		}
		obj := &types.RemoteObject{
			ID:           id,
			Name:         name,
			Kind:         kindOf(id),
			Size:         aws.ToInt64(item.Size),
			ModifiedTime: aws.ToTime(item.LastModified),
			Parents:      []string{parentID},
		}
		if obj.IsDir() {
			obj.MimeType = DirectoryMimeType
		} else {
			obj.MimeType = detectContentType(name)
		}
		objects = append(objects, obj)
	}
	return objects, aws.ToBool(out.IsTruncated), aws.ToString(out.NextContinuationToken), nil
}

// put writes a new object and its locator.
func (b *Backend) put(ctx context.Context, obj *types.RemoteObject, data []byte) error {
	key := b.keys.object(obj.Parents[0], obj.Name, obj.ID)
	if err := b.putObject(ctx, key, obj, data); err != nil {
		return err
	}
	return b.putLocator(ctx, obj.ID, key)
}

func (b *Backend) putObject(ctx context.Context, key string, obj *types.RemoteObject, data []byte) error {
	err := b.request(ctx, func(ctx context.Context) error {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(b.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(obj.MimeType),
			Metadata:      metadataFor(obj),
		})
		return err
	})
	if err != nil {
		return b.translateError(err, "PutObject", key)
	}
	b.metrics.RecordBytesUploaded(int64(len(data)))
	return nil
}

func (b *Backend) putLocator(ctx context.Context, id, key string) error {
	locator := b.keys.locator(id)
	err := b.request(ctx, func(ctx context.Context) error {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(locator),
			Body:        strings.NewReader(key),
			ContentType: aws.String("text/plain"),
		})
		return err
	})
	if err != nil {
		return b.translateError(err, "PutObject", locator)
	}
	return nil
}

// copyObject copies src to dst. A non-nil replace rewrites the metadata.
func (b *Backend) copyObject(ctx context.Context, src, dst string, replace *types.RemoteObject) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String((&url.URL{Path: b.bucket + "/" + src}).EscapedPath()),
	}
	if replace != nil {
		input.MetadataDirective = s3types.MetadataDirectiveReplace
		input.Metadata = metadataFor(replace)
		input.ContentType = aws.String(replace.MimeType)
	}
	err := b.request(ctx, func(ctx context.Context) error {
		_, err := b.client.CopyObject(ctx, input)
		return err
	})
	if err != nil {
		return b.translateError(err, "CopyObject", src)
	}
	return nil
}

func (b *Backend) deleteKey(ctx context.Context, key string) error {
	err := b.request(ctx, func(ctx context.Context) error {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return b.translateError(err, "DeleteObject", key)
	}
	return nil
}

// request runs one API call under the request timeout and records it.
func (b *Backend) request(ctx context.Context, fn func(context.Context) error) error {
	if b.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.RequestTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	b.metrics.RecordRequest(time.Since(start), err)
	return err
}

func metadataFor(obj *types.RemoteObject) map[string]string {
	visibility := obj.Visibility
	if visibility == "" {
		visibility = types.VisibilityPrivate
	}
	return map[string]string{metaVisibility: string(visibility)}
}

func (b *Backend) translateError(err error, operation, key string) *errors.TreeFSError {
	var code errors.ErrorCode
	var apiErr smithy.APIError
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		code = errors.ErrCodeObjectNotFound
	case isErrorType[*s3types.NoSuchBucket](err):
		code = errors.ErrCodeBucketNotFound
	case errors.Is(err, context.Canceled):
		code = errors.ErrCodeOperationCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = errors.ErrCodeOperationTimeout
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied":
		code = errors.ErrCodeAccessDenied
	default:
		code = errors.ErrCodeTransientRemote
	}
	return errors.Wrap(err, code, fmt.Sprintf("%s failed", operation)).
		WithComponent(component).
		WithOperation(operation).
		WithContext("bucket", b.bucket).
		WithContext("key", key)
}

func detectContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".xml"):
		return "application/xml"
	case strings.HasSuffix(name, ".html"):
		return "text/html"
	case strings.HasSuffix(name, ".txt"):
		return "text/plain"
	case strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
