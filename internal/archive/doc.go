// Package archive keeps the raw bytes of every ingested image in an
// S3-compatible object store, keyed by "<shard>/<id>".
//
// The archive sits outside the index: the gateway writes to it after a
// successful ingest and removes from it after a successful delete, both
// best-effort. Losing an archived object never affects lookups, which are
// served entirely by the index engine.
package archive
