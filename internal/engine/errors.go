package engine

import "errors"

// Sentinel failures every Shard implementation distinguishes. Anything
// else returned by a shard is an engine-internal failure and is surfaced
// to callers verbatim, wrapped by the gateway.
var (
	// ErrAlreadyIndexed is returned when the identifier is already present
	// on the shard.
	ErrAlreadyIndexed = errors.New("engine: image already indexed on this shard")

	// ErrNotIndexed is returned when the shard holds no image for the
	// identifier.
	ErrNotIndexed = errors.New("engine: image not indexed on this shard")

	// ErrInvalidImage is returned when the image content is unusable for
	// indexing, e.g. below the engine's minimum dimensions.
	ErrInvalidImage = errors.New("engine: image not usable for indexing")
)

// IsAlreadyIndexed reports whether err is an ErrAlreadyIndexed failure.
func IsAlreadyIndexed(err error) bool {
	return errors.Is(err, ErrAlreadyIndexed)
}

// IsNotIndexed reports whether err is an ErrNotIndexed failure.
func IsNotIndexed(err error) bool {
	return errors.Is(err, ErrNotIndexed)
}
