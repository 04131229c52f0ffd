package qdrantidx

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/feature"
	"github.com/cbir-io/retrieval/internal/properties"
	"github.com/cbir-io/retrieval/internal/queue"
)

// payload keys the engine reserves alongside the caller's properties.
const (
	payloadKeys   = "keys"
	payloadValues = "values"
	payloadID     = "id"
	payloadShard  = "shard"
	payloadFormat = "format"
	payloadSeq    = "seq"
)

const scrollPageSize = 256

var _ engine.Shard = (*Shard)(nil)

// Shard is one Qdrant-collection-backed engine shard.
type Shard struct {
	backend    *Backend
	name       string
	collection string
	log        *zap.Logger

	nextID atomic.Int64
	seq    atomic.Int64
}

// Name implements engine.Shard.
func (s *Shard) Name() string { return s.name }

// IndexSync indexes the image and returns once the point is readable.
func (s *Shard) IndexSync(ctx context.Context, img *engine.Image, id int64, props *properties.Map) (int64, error) {
	if err := s.validate(img); err != nil {
		return 0, err
	}

	if id < 0 {
		var err error
		if id, err = s.nextFreeID(ctx); err != nil {
			return 0, err
		}
	} else {
		indexed, err := s.IsIndexed(ctx, id)
		if err != nil {
			return 0, err
		}
		if indexed {
			return 0, engine.ErrAlreadyIndexed
		}
	}

	keys, values := props.Encode()
	payload := map[string]any{
		payloadKeys:   keys,
		payloadValues: values,
		payloadID:     id,
		payloadShard:  s.name,
		payloadFormat: img.Format,
		payloadSeq:    s.seq.Add(1),
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	wait := true
	_, err := s.backend.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(feature.Descriptor(img.Pixels)...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("qdrantidx: upserting point %d: %w", id, err)
	}
	return id, nil
}

// IndexAsync publishes an indexing job and returns the provisional
// identifier without waiting for the job to run.
func (s *Shard) IndexAsync(ctx context.Context, img *engine.Image, id int64, props *properties.Map) (int64, error) {
	if s.backend.publisher == nil {
		return 0, fmt.Errorf("qdrantidx: no job queue configured for async indexing")
	}
	if err := s.validate(img); err != nil {
		return 0, err
	}

	if id < 0 {
		var err error
		if id, err = s.nextFreeID(ctx); err != nil {
			return 0, err
		}
	} else {
		indexed, err := s.IsIndexed(ctx, id)
		if err != nil {
			return 0, err
		}
		if indexed {
			return 0, engine.ErrAlreadyIndexed
		}
	}

	keys, values := props.Encode()
	err := s.backend.publisher.PublishJob(ctx, queue.IndexJob{
		Shard:  s.name,
		ID:     id,
		Keys:   keys,
		Values: values,
		Image:  img.Raw,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrantidx: enqueueing indexing job for %d: %w", id, err)
	}
	return id, nil
}

// Properties returns the stored mapping for id.
func (s *Shard) Properties(ctx context.Context, id int64) (*properties.Map, error) {
	point, err := s.getPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if point == nil {
		return nil, engine.ErrNotIndexed
	}
	return decodePayload(point.Payload)
}

// IsIndexed implements engine.Shard.
func (s *Shard) IsIndexed(ctx context.Context, id int64) (bool, error) {
	point, err := s.getPoint(ctx, id)
	if err != nil {
		return false, err
	}
	return point != nil, nil
}

// Delete removes the point for id.
func (s *Shard) Delete(ctx context.Context, id int64) error {
	indexed, err := s.IsIndexed(ctx, id)
	if err != nil {
		return err
	}
	if !indexed {
		return engine.ErrNotIndexed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	wait := true
	_, err = s.backend.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(id))),
	})
	if err != nil {
		return fmt.Errorf("qdrantidx: deleting point %d: %w", id, err)
	}
	return nil
}

// ListProperties returns every stored mapping in indexing order. Qdrant
// scrolls points in id order, so the page set is re-sorted by the
// sequence number written at indexing time.
func (s *Shard) ListProperties(ctx context.Context) ([]*properties.Map, error) {
	type entry struct {
		seq   int64
		props *properties.Map
	}
	var entries []entry

	err := s.scroll(ctx, func(p *qdrant.RetrievedPoint) error {
		props, err := decodePayload(p.Payload)
		if err != nil {
			return err
		}
		entries = append(entries, entry{seq: p.Payload[payloadSeq].GetIntegerValue(), props: props})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*properties.Map, len(entries))
	for i, e := range entries {
		out[i] = e.props
	}
	return out, nil
}

func (s *Shard) validate(img *engine.Image) error {
	if img == nil || img.Pixels == nil {
		return engine.ErrInvalidImage
	}
	b := img.Pixels.Bounds()
	if b.Dx() < s.backend.cfg.MinWidth || b.Dy() < s.backend.cfg.MinHeight {
		return engine.ErrInvalidImage
	}
	return nil
}

func (s *Shard) getPoint(ctx context.Context, id int64) (*qdrant.RetrievedPoint, error) {
	if id < 0 {
		return nil, nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	points, err := s.backend.api.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantidx: fetching point %d: %w", id, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return points[0], nil
}

// scroll visits every point of the collection page by page.
func (s *Shard) scroll(ctx context.Context, visit func(*qdrant.RetrievedPoint) error) error {
	limit := uint32(scrollPageSize)
	var offset *qdrant.PointId

	for {
		pageCtx, cancel := s.opContext(ctx)
		points, err := s.backend.api.Scroll(pageCtx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		cancel()
		if err != nil {
			return fmt.Errorf("qdrantidx: scrolling collection %q: %w", s.collection, err)
		}
		if len(points) == 0 {
			return nil
		}
		for _, p := range points {
			if err := visit(p); err != nil {
				return err
			}
		}
		if len(points) < scrollPageSize {
			return nil
		}
		offset = qdrant.NewIDNum(points[len(points)-1].Id.GetNum() + 1)
	}
}

// nextFreeID advances the counter past identifiers taken by explicit
// indexing: an upsert overwrites silently, so an engine-assigned id
// must never land on an existing point.
func (s *Shard) nextFreeID(ctx context.Context) (int64, error) {
	for {
		id := s.nextID.Add(1)
		indexed, err := s.IsIndexed(ctx, id)
		if err != nil {
			return 0, err
		}
		if !indexed {
			return id, nil
		}
	}
}

// recoverCounters rebuilds the identifier and sequence counters from the
// existing collection contents so restarts do not reuse either.
func (s *Shard) recoverCounters(ctx context.Context) error {
	var maxID, maxSeq int64
	err := s.scroll(ctx, func(p *qdrant.RetrievedPoint) error {
		if id := int64(p.Id.GetNum()); id > maxID {
			maxID = id
		}
		if seq := p.Payload[payloadSeq].GetIntegerValue(); seq > maxSeq {
			maxSeq = seq
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.nextID.Store(maxID)
	s.seq.Store(maxSeq)
	return nil
}

func (s *Shard) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.backend.cfg.Timeout)
}

// decodePayload rebuilds the property mapping from a point's payload.
func decodePayload(payload map[string]*qdrant.Value) (*properties.Map, error) {
	props, err := properties.Decode(
		payload[payloadKeys].GetStringValue(),
		payload[payloadValues].GetStringValue(),
	)
	if err != nil {
		return nil, fmt.Errorf("qdrantidx: corrupt point payload: %w", err)
	}
	props.Set(payloadID, fmt.Sprintf("%d", payload[payloadID].GetIntegerValue()))
	props.Set(payloadShard, payload[payloadShard].GetStringValue())
	props.Set(payloadFormat, payload[payloadFormat].GetStringValue())
	return props, nil
}
