package engine

import (
	"context"
	"image"

	"github.com/cbir-io/retrieval/internal/properties"
)

// AutoID requests an engine-assigned identifier on indexing calls.
const AutoID int64 = -1

// Image is a decoded ingest payload. Raw holds the bytes exactly as
// submitted, Pixels the decoded raster and Format the registered name of
// the decoder that accepted it ("png", "jpeg", ...).
type Image struct {
	Raw    []byte
	Pixels image.Image
	Format string
}

// Shard is one ownership boundary of the index engine. Identifiers are
// unique only within a shard; nothing at this level enforces global
// uniqueness.
//
// Implementations must be safe for concurrent use.
type Shard interface {
	// Name returns the shard identifier this shard was created under.
	Name() string

	// IndexSync indexes the image under id and returns the assigned
	// identifier once indexing has completed. Pass AutoID to let the
	// engine assign one. An id already present on this shard fails with
	// ErrAlreadyIndexed; content the engine cannot index fails with
	// ErrInvalidImage.
	IndexSync(ctx context.Context, img *Image, id int64, props *properties.Map) (int64, error)

	// IndexAsync submits an indexing job and returns the provisionally
	// assigned identifier immediately, without waiting for the job to
	// complete. The job terminates in an indexed or failed state recorded
	// by the shard; callers get no completion signal and no
	// read-after-write guarantee.
	IndexAsync(ctx context.Context, img *Image, id int64, props *properties.Map) (int64, error)

	// Properties returns the property mapping stored for id, including
	// any entries the engine added during indexing. Fails with
	// ErrNotIndexed when the shard holds no mapping for id.
	Properties(ctx context.Context, id int64) (*properties.Map, error)

	// IsIndexed reports whether id is present in this shard's index.
	IsIndexed(ctx context.Context, id int64) (bool, error)

	// Delete removes id from the index. Fails with ErrNotIndexed when id
	// is absent.
	Delete(ctx context.Context, id int64) error

	// ListProperties returns the property mappings of every image on this
	// shard, in insertion order.
	ListProperties(ctx context.Context) ([]*properties.Map, error)
}

// Factory creates the shard named name. The registry calls it exactly
// once per shard under its creation lock, so implementations need not
// guard against duplicate creation of the same name.
type Factory func(ctx context.Context, name string) (Shard, error)
