package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrImageNotFound is returned when no shard in scope holds a mapping
	// for the requested identifier.
	ErrImageNotFound = errors.New("retrieval: image not found")

	// ErrDuplicateImage is returned when the identifier is already
	// indexed on the target shard.
	ErrDuplicateImage = errors.New("retrieval: image already indexed")

	// ErrInvalidImage is returned when the submitted bytes do not decode
	// as a supported raster format, or the engine rejects the content as
	// unusable for indexing.
	ErrInvalidImage = errors.New("retrieval: image payload not valid")
)

// IndexingError wraps an engine-internal failure. It is opaque and
// non-retryable at this layer; retries, if any, are the engine's
// business. The wrapped error carries the engine's description for
// diagnostics.
type IndexingError struct {
	Op    string // boundary operation, e.g. "ingest", "delete"
	Shard string
	ID    int64
	Err   error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("retrieval: %s failed for image %d on shard %q: %v", e.Op, e.ID, e.Shard, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// IsIndexingError reports whether err is (or wraps) an engine-internal
// indexing failure.
func IsIndexingError(err error) bool {
	var ie *IndexingError
	return errors.As(err, &ie)
}
