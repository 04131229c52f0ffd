package qdrantidx

import (
	"context"
	"fmt"
	"slices"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/feature"
	"github.com/cbir-io/retrieval/internal/queue"
)

// clientAPI is the subset of the Qdrant client the engine calls,
// narrowed to an interface so tests can stand in for a live server.
type clientAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// Backend owns the Qdrant client shared by every shard.
type Backend struct {
	cfg       Config
	api       clientAPI
	publisher queue.Publisher
	log       *zap.Logger
}

// NewBackend connects to Qdrant and verifies the connection with a
// health check. The publisher carries asynchronous indexing jobs and must
// not be nil when async ingestion is exposed.
func NewBackend(cfg Config, publisher queue.Publisher, log *zap.Logger) (*Backend, error) {
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = def.CollectionPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = def.MinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if log == nil {
		log = zap.NewNop()
	}

	api, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantidx: initializing client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if _, err := api.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("qdrantidx: health check: %w", err)
	}

	log.Info("qdrant engine connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port))
	return &Backend{cfg: cfg, api: api, publisher: publisher, log: log}, nil
}

// Factory returns the shard factory the registry creates shards through.
// Creating a shard ensures its collection exists and scans it once to
// recover the identifier and sequence counters.
func (b *Backend) Factory() engine.Factory {
	return func(ctx context.Context, name string) (engine.Shard, error) {
		return b.openShard(ctx, name)
	}
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.api.Close()
}

func (b *Backend) openShard(ctx context.Context, name string) (*Shard, error) {
	collection := b.cfg.CollectionPrefix + name

	if err := b.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	s := &Shard{
		backend:    b,
		name:       name,
		collection: collection,
		log:        b.log.With(zap.String("shard", name)),
	}
	if err := s.recoverCounters(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Backend) ensureCollection(ctx context.Context, name string) error {
	collections, err := b.api.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("qdrantidx: listing collections: %w", err)
	}
	if slices.Contains(collections, name) {
		return nil
	}

	err = b.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(feature.Dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrantidx: creating collection %q: %w", name, err)
	}
	b.log.Info("created collection", zap.String("collection", name))
	return nil
}
