package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/properties"
)

// ErrBackendClosed is returned when a shard or its backend has been shut
// down.
var ErrBackendClosed = errors.New("memory: engine backend is closed")

type indexJob struct {
	img   *engine.Image
	id    int64
	props *properties.Map
}

var _ engine.Shard = (*Shard)(nil)

// Shard is an in-memory engine shard. All exported methods are safe for
// concurrent use.
type Shard struct {
	name string
	cfg  Config
	log  *zap.Logger

	mu     sync.RWMutex
	images map[int64]*properties.Map
	order  []int64 // insertion order of live ids

	nextID atomic.Int64
	failed atomic.Int64 // async jobs that terminated in the failed state

	jobs chan indexJob
	done chan struct{}

	closeOnce sync.Once
}

func newShard(name string, cfg Config, log *zap.Logger) *Shard {
	s := &Shard{
		name:   name,
		cfg:    cfg,
		log:    log,
		images: make(map[int64]*properties.Map),
		jobs:   make(chan indexJob, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go s.drainQueue()
	return s
}

// Name implements engine.Shard.
func (s *Shard) Name() string { return s.name }

// IndexSync indexes the image and returns once it is visible to reads.
func (s *Shard) IndexSync(_ context.Context, img *engine.Image, id int64, props *properties.Map) (int64, error) {
	if err := s.validate(img); err != nil {
		return 0, err
	}
	return s.store(img, id, props)
}

// IndexAsync validates the request, enqueues an indexing job and returns
// the provisional identifier without waiting for the job to run. The job
// outcome is recorded by the shard only; a lookup racing the job may
// legitimately miss.
func (s *Shard) IndexAsync(ctx context.Context, img *engine.Image, id int64, props *properties.Map) (int64, error) {
	if err := s.validate(img); err != nil {
		return 0, err
	}

	s.mu.RLock()
	if id == engine.AutoID {
		id = s.nextFreeID()
	} else if _, dup := s.images[id]; dup {
		s.mu.RUnlock()
		return 0, engine.ErrAlreadyIndexed
	}
	s.mu.RUnlock()

	select {
	case s.jobs <- indexJob{img: img, id: id, props: props}:
		return id, nil
	case <-s.done:
		return 0, ErrBackendClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Properties returns a copy of the stored mapping for id.
func (s *Shard) Properties(_ context.Context, id int64) (*properties.Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	props, ok := s.images[id]
	if !ok {
		return nil, engine.ErrNotIndexed
	}
	return props.Clone(), nil
}

// IsIndexed implements engine.Shard.
func (s *Shard) IsIndexed(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.images[id]
	return ok, nil
}

// Delete removes id from the shard.
func (s *Shard) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[id]; !ok {
		return engine.ErrNotIndexed
	}
	delete(s.images, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListProperties returns copies of every stored mapping in insertion
// order.
func (s *Shard) ListProperties(_ context.Context) ([]*properties.Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*properties.Map, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.images[id].Clone())
	}
	return out, nil
}

// FailedJobs returns how many asynchronous jobs terminated in the failed
// state since the shard was created.
func (s *Shard) FailedJobs() int64 { return s.failed.Load() }

// Close stops the queue worker after draining pending jobs. The jobs
// channel itself is never closed so that racing IndexAsync calls fail
// cleanly instead of panicking.
func (s *Shard) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Shard) validate(img *engine.Image) error {
	if img == nil || img.Pixels == nil {
		return engine.ErrInvalidImage
	}
	b := img.Pixels.Bounds()
	if b.Dx() < s.cfg.MinWidth || b.Dy() < s.cfg.MinHeight {
		return engine.ErrInvalidImage
	}
	return nil
}

// nextFreeID advances the counter past identifiers taken by explicit
// indexing, so an engine-assigned id can never replace an existing
// mapping. Callers must hold at least the read lock.
func (s *Shard) nextFreeID() int64 {
	for {
		id := s.nextID.Add(1)
		if _, ok := s.images[id]; !ok {
			return id
		}
	}
}

func (s *Shard) store(img *engine.Image, id int64, props *properties.Map) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == engine.AutoID {
		id = s.nextFreeID()
	} else if _, ok := s.images[id]; ok {
		return 0, engine.ErrAlreadyIndexed
	}

	stored := props.Clone()
	stored.Set("id", strconv.FormatInt(id, 10))
	stored.Set("shard", s.name)
	stored.Set("format", img.Format)

	s.images[id] = stored
	s.order = append(s.order, id)
	return id, nil
}

func (s *Shard) drainQueue() {
	for {
		select {
		case job := <-s.jobs:
			s.runJob(job)
		case <-s.done:
			for {
				select {
				case job := <-s.jobs:
					s.runJob(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Shard) runJob(job indexJob) {
	if _, err := s.store(job.img, job.id, job.props); err != nil {
		s.failed.Add(1)
		s.log.Warn("async indexing job failed",
			zap.Int64("id", job.id),
			zap.Error(err))
	}
}
