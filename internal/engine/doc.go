// Package engine defines the contract this service requires from the
// index engine that actually owns the indexed images.
//
// The retrieval layer never touches shard internals. Every mutation and
// every read of an indexed image goes through the Shard interface, and
// all intra-shard ordering guarantees are the engine's responsibility.
// Feature extraction, the similarity index structure and on-disk
// persistence all live behind this boundary.
//
// Two implementations ship with the service: engine/memory, a process-local
// engine used as the default backend and as the test double, and
// engine/qdrantidx, which maps each shard onto a Qdrant collection.
package engine
