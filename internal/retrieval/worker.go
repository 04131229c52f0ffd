package retrieval

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/properties"
	"github.com/cbir-io/retrieval/internal/queue"
)

// IndexWorker drains the asynchronous indexing job queue and replays
// each job through the gateway as a synchronous index.
//
// Deliveries are acknowledged once their outcome is settled. Permanent
// failures (duplicate, unusable payload, malformed properties, undecodable
// job) are acknowledged too: redelivering them can never succeed. Only
// engine-internal failures leave the job unacknowledged, requeued once by
// the broker's redelivery flag and dropped after that.
type IndexWorker struct {
	svc      *Service
	consumer queue.Consumer
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIndexWorker returns a worker over svc fed by consumer.
func NewIndexWorker(svc *Service, consumer queue.Consumer, log *zap.Logger) *IndexWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &IndexWorker{svc: svc, consumer: consumer, log: log}
}

// Start begins consuming. It returns once the consumer is wired; jobs
// are processed on a background goroutine until Stop.
func (w *IndexWorker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel

	msgs, err := w.consumer.Consume(runCtx, &w.wg)
	if err != nil {
		cancel()
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range msgs {
			w.handle(runCtx, msg)
		}
	}()
	return nil
}

// Stop cancels consumption and waits for in-flight jobs to settle.
func (w *IndexWorker) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}

func (w *IndexWorker) handle(ctx context.Context, msg queue.Message) {
	job, err := msg.Job()
	if err != nil {
		w.log.Error("discarding undecodable indexing job", zap.Error(err))
		_ = msg.Ack()
		return
	}

	log := w.log.With(zap.String("shard", job.Shard), zap.Int64("id", job.ID))

	_, err = w.svc.Ingest(ctx, IngestRequest{
		ID:      job.ID,
		Shard:   job.Shard,
		Keys:    job.Keys,
		Values:  job.Values,
		Payload: job.Image,
	})
	switch {
	case err == nil:
		log.Debug("indexing job completed")
		_ = msg.Ack()
	case errors.Is(err, ErrDuplicateImage):
		// Redelivery of a job that already ran.
		log.Debug("indexing job already applied")
		_ = msg.Ack()
	case errors.Is(err, ErrInvalidImage), errors.Is(err, properties.ErrMalformed):
		log.Warn("indexing job failed permanently", zap.Error(err))
		_ = msg.Ack()
	default:
		log.Error("indexing job failed", zap.Error(err))
		_ = msg.Nack(false)
	}
}
