package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
)

// Config controls the in-memory engine.
type Config struct {
	// MinWidth and MinHeight are the smallest image dimensions the engine
	// accepts for indexing. Default: 8x8.
	MinWidth  int `yaml:"min_width" env:"ENGINE_MIN_WIDTH"`
	MinHeight int `yaml:"min_height" env:"ENGINE_MIN_HEIGHT"`

	// QueueSize is the per-shard asynchronous indexing queue capacity.
	// Default: 64.
	QueueSize int `yaml:"queue_size" env:"ENGINE_QUEUE_SIZE"`
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinWidth:  8,
		MinHeight: 8,
		QueueSize: 64,
	}
}

// Backend creates and owns in-memory shards. Closing the backend stops
// every shard's queue worker.
type Backend struct {
	cfg Config
	log *zap.Logger

	mu     sync.Mutex
	shards []*Shard
	closed bool
}

// NewBackend returns a backend with cfg applied over DefaultConfig.
func NewBackend(cfg Config, log *zap.Logger) *Backend {
	def := DefaultConfig()
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = def.MinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{cfg: cfg, log: log}
}

// Factory returns the shard factory the registry creates shards through.
func (b *Backend) Factory() engine.Factory {
	return func(_ context.Context, name string) (engine.Shard, error) {
		s := newShard(name, b.cfg, b.log.With(zap.String("shard", name)))

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			s.Close()
			return nil, ErrBackendClosed
		}
		b.shards = append(b.shards, s)
		return s, nil
	}
}

// Close stops the queue worker of every shard created so far. In-flight
// jobs are drained before the workers exit.
func (b *Backend) Close() error {
	b.mu.Lock()
	shards := b.shards
	b.closed = true
	b.mu.Unlock()

	for _, s := range shards {
		s.Close()
	}
	return nil
}
