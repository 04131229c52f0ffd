package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	// Raster formats accepted at the ingest boundary.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/properties"
	"github.com/cbir-io/retrieval/internal/registry"
)

// Archive persists the raw bytes of every ingested image outside the
// index. It is best-effort from the gateway's point of view: archive
// failures are logged, never surfaced, and never undo an index mutation.
type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// NopArchive discards everything. Used when no object store is
// configured.
type NopArchive struct{}

func (NopArchive) Put(context.Context, string, []byte) error { return nil }
func (NopArchive) Remove(context.Context, string) error      { return nil }

// IngestRequest carries one image submission.
type IngestRequest struct {
	// ID is the caller-supplied identifier, unique per shard only. Pass
	// engine.AutoID to let the engine assign one.
	ID int64

	// Shard names the target shard. Empty selects one by round robin.
	Shard string

	// Keys and Values are the delimited property encoding.
	Keys   string
	Values string

	// Async submits an indexing job instead of indexing inline.
	Async bool

	// Payload is the raw image bytes.
	Payload []byte
}

// ShardInfo describes one shard for the administration surface.
type ShardInfo struct {
	Name   string `json:"name"`
	Images int    `json:"images"`
}

// Service composes the codec, the registry and the engine contract into
// the boundary operations.
type Service struct {
	reg     *registry.Registry
	archive Archive
	log     *zap.Logger
}

// NewService returns a gateway over reg. A nil archive disables
// archiving, a nil logger disables logging.
func NewService(reg *registry.Registry, archive Archive, log *zap.Logger) *Service {
	if archive == nil {
		archive = NopArchive{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{reg: reg, archive: archive, log: log}
}

// Ingest runs the ingestion state machine: resolve shard, decode image,
// decode properties, index, re-read.
//
// The returned mapping is re-read from the shard rather than echoed from
// the request, because the engine enriches it during indexing. On the
// asynchronous path the job may not have run yet; the response then
// carries the submitted mapping plus the provisional identifier, and a
// subsequent lookup may legitimately miss until the job completes.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*properties.Map, error) {
	var shard engine.Shard
	var err error
	if req.Shard == "" {
		shard, err = s.reg.Next()
	} else {
		shard, err = s.reg.GetOrCreate(ctx, req.Shard)
	}
	if err != nil {
		return nil, err
	}

	pixels, format, err := image.Decode(bytes.NewReader(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img := &engine.Image{Raw: req.Payload, Pixels: pixels, Format: format}

	props, err := properties.Decode(req.Keys, req.Values)
	if err != nil {
		return nil, err
	}

	var id int64
	if req.Async {
		id, err = shard.IndexAsync(ctx, img, req.ID, props)
	} else {
		id, err = shard.IndexSync(ctx, img, req.ID, props)
	}
	if err != nil {
		return nil, s.mapIndexErr("ingest", shard.Name(), req.ID, err)
	}

	if err := s.archive.Put(ctx, archiveKey(shard.Name(), id), req.Payload); err != nil {
		s.log.Warn("archiving image bytes failed",
			zap.String("shard", shard.Name()),
			zap.Int64("id", id),
			zap.Error(err))
	}

	stored, err := shard.Properties(ctx, id)
	if err != nil {
		if req.Async && engine.IsNotIndexed(err) {
			stored = props.Clone()
			stored.Set("id", fmt.Sprintf("%d", id))
			return stored, nil
		}
		return nil, s.mapIndexErr("ingest", shard.Name(), id, err)
	}
	return stored, nil
}

// ShardProperties returns the mapping stored for id on the named shard.
func (s *Service) ShardProperties(ctx context.Context, shardName string, id int64) (*properties.Map, error) {
	shard, err := s.reg.Get(shardName)
	if err != nil {
		return nil, err
	}

	props, err := shard.Properties(ctx, id)
	if err != nil {
		if engine.IsNotIndexed(err) {
			return nil, fmt.Errorf("%w: id %d on shard %q", ErrImageNotFound, id, shardName)
		}
		return nil, &IndexingError{Op: "lookup", Shard: shardName, ID: id, Err: err}
	}
	return props, nil
}

// Delete removes id from the named shard. The shard is never created by
// this path. An identifier absent from the shard's index is the
// not-found branch; an indexed identifier is deleted.
func (s *Service) Delete(ctx context.Context, shardName string, id int64) error {
	shard, err := s.reg.Get(shardName)
	if err != nil {
		return err
	}

	indexed, err := shard.IsIndexed(ctx, id)
	if err != nil {
		return &IndexingError{Op: "delete", Shard: shardName, ID: id, Err: err}
	}
	if !indexed {
		return fmt.Errorf("%w: id %d on shard %q", ErrImageNotFound, id, shardName)
	}

	if err := shard.Delete(ctx, id); err != nil {
		if engine.IsNotIndexed(err) {
			// Lost a race with another deletion.
			return fmt.Errorf("%w: id %d on shard %q", ErrImageNotFound, id, shardName)
		}
		return &IndexingError{Op: "delete", Shard: shardName, ID: id, Err: err}
	}

	if err := s.archive.Remove(ctx, archiveKey(shardName, id)); err != nil {
		s.log.Warn("removing archived image bytes failed",
			zap.String("shard", shardName),
			zap.Int64("id", id),
			zap.Error(err))
	}
	return nil
}

// CreateShard creates an empty shard. ErrShardExists when taken.
func (s *Service) CreateShard(ctx context.Context, name string) error {
	_, err := s.reg.Create(ctx, name)
	return err
}

// ListShards describes every known shard with its current image count.
func (s *Service) ListShards(ctx context.Context) ([]ShardInfo, error) {
	shards := s.reg.List()
	out := make([]ShardInfo, 0, len(shards))
	for _, shard := range shards {
		all, err := shard.ListProperties(ctx)
		if err != nil {
			return nil, &IndexingError{Op: "list-shards", Shard: shard.Name(), Err: err}
		}
		out = append(out, ShardInfo{Name: shard.Name(), Images: len(all)})
	}
	return out, nil
}

func (s *Service) mapIndexErr(op, shard string, id int64, err error) error {
	switch {
	case engine.IsAlreadyIndexed(err):
		return fmt.Errorf("%w: id %d on shard %q", ErrDuplicateImage, id, shard)
	case engine.IsNotIndexed(err):
		return fmt.Errorf("%w: id %d on shard %q", ErrImageNotFound, id, shard)
	case errors.Is(err, engine.ErrInvalidImage):
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	default:
		return &IndexingError{Op: op, Shard: shard, ID: id, Err: err}
	}
}

func archiveKey(shard string, id int64) string {
	return fmt.Sprintf("%s/%d", shard, id)
}
