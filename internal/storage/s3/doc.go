/*
Package s3 stores an ID-addressed object tree in an AWS S3 bucket.

S3 has keys, not parents. The backend gives every object a stable ID and
writes it under its parent's ID, so a directory can be renamed or moved by
rewriting a single key:

	<prefix>tree/<parentID>/<escaped name>/<id>   object body and metadata
	<prefix>ids/<id>                              locator: current tree key

IDs carry their kind ("d-" for directories, "f-" for files). The root
directory is implicit and named by Config.RootID.

# Operations

	FindByName       two ListObjectsV2 calls: tree/<parent>/<name>/ (up to
	                 FindMatchLimit) and tree/<parent>/ (up to
	                 FindSiblingLimit); exhaustive when the second is not
	                 truncated
	ListChildren     ListObjectsV2 with continuation tokens
	CreateDirectory  PutObject (empty body) plus locator
	Upload           PutObject; replacing content keeps the existing key
	UpdateParents    CopyObject to the new tree key, new locator, delete old
	DeleteObject     recursive for directories
	SetVisibility    CopyObject onto itself with x-amz-meta-visibility

Listings do not include visibility. Get reads it with HeadObject.

# Configuration

	backend, err := s3.NewBackend(ctx, "my-bucket", &s3.Config{
		Region:         "us-east-1",
		Endpoint:       "http://localhost:9000", // MinIO, LocalStack
		ForcePathStyle: true,
		Prefix:         "team",
	})

Static credentials are used when AccessKeyID is set; otherwise the default
AWS credential chain applies. NewBackend probes the bucket with HeadBucket
unless SkipHealthCheck is set.

# Errors

S3 errors are translated to pkg/errors codes: NoSuchKey and NotFound become
OBJECT_NOT_FOUND, NoSuchBucket becomes BUCKET_NOT_FOUND, AccessDenied keeps
its meaning, context errors become OPERATION_CANCELED or OPERATION_TIMEOUT,
and everything else is REMOTE_TRANSIENT and retryable. Retrying and circuit
breaking are done by remote.ResilientStore around the backend.
*/
package s3
