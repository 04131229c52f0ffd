// Package memory is a process-local index engine.
//
// Each shard keeps its images in a mutex-guarded map and runs one
// background goroutine that drains the shard's asynchronous indexing
// queue. There is no persistence; the backend exists as the default
// engine for single-node deployments and as the engine used by the
// service's own tests.
package memory
