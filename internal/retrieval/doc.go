// Package retrieval is the orchestration layer in front of the index
// engine: it routes each request to a shard, decides between synchronous
// and asynchronous indexing, aggregates reads across shards and maps
// engine failures onto the service's error taxonomy.
//
// The package owns no durable state. Shards belong to the engine, the
// registry only routes to them, and every failure mode a caller can
// observe is one of the sentinel errors of this package, of
// internal/registry or of internal/properties, or an *IndexingError
// wrapping an engine-internal failure.
package retrieval
