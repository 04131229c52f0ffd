package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cbir-io/retrieval/internal/engine"
)

var (
	// ErrShardNotFound is returned when a shard identifier resolves to
	// nothing and the call site does not permit creation.
	ErrShardNotFound = errors.New("registry: shard not found")

	// ErrNoShardsAvailable is returned by Next when no shard exists yet.
	// The registry never invents a default shard; bootstrap shards are
	// created explicitly at startup.
	ErrNoShardsAvailable = errors.New("registry: no shards available")

	// ErrShardExists is returned by Create when the name is taken.
	ErrShardExists = errors.New("registry: shard already exists")
)

// Registry is the concurrency-safe directory of named shards.
type Registry struct {
	factory engine.Factory

	mu     sync.RWMutex
	shards map[string]engine.Shard
	order  []string // creation order, fixes shard iteration order

	cursor atomic.Uint64
}

// New returns an empty registry creating shards through factory.
func New(factory engine.Factory) *Registry {
	return &Registry{
		factory: factory,
		shards:  make(map[string]engine.Shard),
	}
}

// Get resolves name without ever creating it. Read and delete paths use
// this so a typo in a shard name cannot silently grow the shard set.
func (r *Registry) Get(name string) (engine.Shard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.shards[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrShardNotFound, name)
	}
	return s, nil
}

// GetOrCreate resolves name, creating the shard on first access. Creation
// is atomic: under concurrent first access exactly one shard is created
// and every caller gets it.
func (r *Registry) GetOrCreate(ctx context.Context, name string) (engine.Shard, error) {
	r.mu.RLock()
	s, ok := r.shards[name]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another caller may have won.
	if s, ok := r.shards[name]; ok {
		return s, nil
	}

	s, err := r.factory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("registry: creating shard %q: %w", name, err)
	}
	r.shards[name] = s
	r.order = append(r.order, name)
	return s, nil
}

// Create creates name, failing with ErrShardExists when it is taken.
func (r *Registry) Create(ctx context.Context, name string) (engine.Shard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.shards[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrShardExists, name)
	}

	s, err := r.factory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("registry: creating shard %q: %w", name, err)
	}
	r.shards[name] = s
	r.order = append(r.order, name)
	return s, nil
}

// Next selects the shard for an ingest that names no shard, rotating over
// the current shard set. The cursor advances unconditionally, so the
// outcome of the ingest this selection serves does not influence future
// selections.
func (r *Registry) Next() (engine.Shard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, ErrNoShardsAvailable
	}
	n := r.cursor.Add(1) - 1
	return r.shards[r.order[n%uint64(len(r.order))]], nil
}

// List returns a snapshot of all shards in creation order.
func (r *Registry) List() []engine.Shard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]engine.Shard, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.shards[name])
	}
	return out
}

// Len returns the number of known shards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
