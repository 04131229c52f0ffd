// Package qdrantidx backs the index engine contract with Qdrant.
//
// Each shard maps onto one Qdrant collection named after the shard with a
// fixed prefix. A point's vector is the color-histogram descriptor of the
// image, its payload carries the property mapping in the codec's wire
// form plus the entries the engine adds during indexing ("id", "shard",
// "format") and a per-shard sequence number that preserves insertion
// order across the unordered point store.
//
// Synchronous indexing upserts with wait enabled, so the point is
// readable once IndexSync returns. Asynchronous indexing publishes a job
// to the queue and returns the provisional identifier; the index worker
// replays the job later.
package qdrantidx
