/*
Package types holds the data shared by every treefs layer.

RemoteObject is the store's view of a file or directory: an opaque ID, a
name, a kind and a list of parent IDs. Paths are not part of the remote
model; they exist only in the cache maintained by internal/cache and the
resolver in internal/filesystem.

	┌──────────────────────────────┐
	│  cmd/treefs, internal/fuse   │
	└──────────────────────────────┘
	              │
	┌──────────────────────────────┐
	│  internal/filesystem.Driver  │  resolver, builder, lister
	└──────────────────────────────┘
	       │                │
	┌─────────────┐  ┌─────────────────────────┐
	│ cache       │  │ remote.Store            │
	│ (paths)     │  │ (memory, s3)            │
	└─────────────┘  └─────────────────────────┘
*/
package types
