package retrieval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/properties"
)

// maxShardProbes bounds the fan-out of a cross-shard read.
const maxShardProbes = 16

// FindProperties answers "does image id exist anywhere" over a snapshot
// of all shards.
//
// Shards are probed concurrently, but each result lands in a slot fixed
// by the shard's position in the snapshot, and the reduce picks the last
// populated slot. Identifiers are only unique per shard, so two shards
// may both hold id; the winner is then the last shard in iteration order
// (last-writer-wins), never whichever probe happened to finish last.
func (s *Service) FindProperties(ctx context.Context, id int64) (*properties.Map, error) {
	shards := s.reg.List()
	results := make([]*properties.Map, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxShardProbes)
	for i, shard := range shards {
		g.Go(func() error {
			props, err := shard.Properties(ctx, id)
			switch {
			case engine.IsNotIndexed(err):
				return nil
			case err != nil:
				return &IndexingError{Op: "lookup", Shard: shard.Name(), ID: id, Err: err}
			}
			results[i] = props
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := len(results) - 1; i >= 0; i-- {
		if results[i] != nil {
			return results[i], nil
		}
	}
	return nil, ErrImageNotFound
}

// ListAllProperties enumerates every indexed image on every shard: shard
// iteration order first, per-shard insertion order within. No
// de-duplication is performed; an identifier indexed on two shards
// appears twice. Any shard failure aborts the whole call — a partial
// listing is never returned.
func (s *Service) ListAllProperties(ctx context.Context) ([]*properties.Map, error) {
	shards := s.reg.List()
	perShard := make([][]*properties.Map, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxShardProbes)
	for i, shard := range shards {
		g.Go(func() error {
			all, err := shard.ListProperties(ctx)
			if err != nil {
				return &IndexingError{Op: "list", Shard: shard.Name(), Err: err}
			}
			perShard[i] = all
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*properties.Map
	for _, chunk := range perShard {
		out = append(out, chunk...)
	}
	return out, nil
}
