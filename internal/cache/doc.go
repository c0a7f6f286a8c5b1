/*
Package cache holds what treefs knows about the shape of the remote tree.

The remote store addresses objects by ID only, so every path lookup that
misses here costs at least one round trip. The cache records three states
per canonical path:

	positive   path maps to a known RemoteObject
	negative   path is known not to exist
	unknown    no slot; ask the remote store

A directory can additionally be marked complete once its whole child list
has been enumerated. Under a complete directory a missing slot is treated as
negative, which lets the resolver and the lister answer without remote calls.

Markers are dropped whenever the child set of a directory changes in a way
the cache did not observe directly (rename, delete, eviction).

Rename and Delete operate on whole subtrees under a single lock. The root
entry is pinned with Forever and never leaves the cache.

NullCache satisfies the same interface but keeps only pinned entries; it is
selected when caching is disabled in the configuration.
*/
package cache
