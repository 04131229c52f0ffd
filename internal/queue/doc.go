// Package queue carries asynchronous indexing jobs over RabbitMQ.
//
// The gateway's async ingest path publishes one JSON-encoded IndexJob per
// submission and returns immediately; the index worker consumes the queue
// and replays each job as a synchronous index. The queue is durable and
// publishes run in confirm mode, so an accepted submission survives a
// broker restart.
//
// The in-memory engine does not use this package; its shards queue jobs
// internally.
package queue
