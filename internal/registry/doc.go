// Package registry owns the shared directory of named shards.
//
// The registry resolves shard identifiers to engine shards, creates
// shards lazily through an engine-provided factory, and selects a shard
// for unassigned ingests via round robin. It never destroys a shard;
// shard lifecycle belongs to the index engine.
//
// Concurrency:
//   - the shard map is guarded by an RWMutex; creation uses a
//     double-checked get-or-create so that concurrent first access of a
//     name yields exactly one shard, and the factory never runs twice for
//     the same name
//   - the round-robin cursor is an atomic counter advanced on every
//     selection, whether or not the ingest it serves later succeeds, so
//     failed ingests do not bias distribution
//   - List returns a point-in-time snapshot in creation order; shards
//     created afterwards are not reflected in an in-flight snapshot
package registry
