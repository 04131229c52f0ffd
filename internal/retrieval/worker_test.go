package retrieval

import (
	"context"
	"encoding/json"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/queue"
)

type fakeMessage struct {
	body []byte

	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (m *fakeMessage) Job() (queue.IndexJob, error) {
	var job queue.IndexJob
	err := json.Unmarshal(m.body, &job)
	return job, err
}

func (m *fakeMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *fakeMessage) Nack(requeue bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *fakeMessage) state() (acked, nacked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked, m.nacked
}

type fakeConsumer struct {
	msgs chan queue.Message
}

func (c *fakeConsumer) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan queue.Message, error) {
	out := make(chan queue.Message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-c.msgs:
				if !ok {
					return
				}
				out <- m
			}
		}
	}()
	return out, nil
}

func encodeJob(t *testing.T, job queue.IndexJob) []byte {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return body
}

func startWorker(t *testing.T, svc *Service) chan queue.Message {
	t.Helper()
	msgs := make(chan queue.Message, 8)
	w := NewIndexWorker(svc, &fakeConsumer{msgs: msgs}, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		close(msgs)
		require.NoError(t, w.Stop())
	})
	return msgs
}

func TestWorkerIndexesJobAndAcks(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	msgs := startWorker(t, svc)

	msg := &fakeMessage{body: encodeJob(t, queue.IndexJob{
		Shard: "s1", ID: 42, Keys: "k", Values: "v",
		Image: pngBytes(t, 16, 16, color.White),
	})}
	msgs <- msg

	require.Eventually(t, func() bool {
		acked, _ := msg.state()
		return acked
	}, time.Second, 5*time.Millisecond)

	got, err := svc.ShardProperties(context.Background(), "s1", 42)
	require.NoError(t, err)
	v, _ := got.Get("k")
	require.Equal(t, "v", v)
}

func TestWorkerAcksRedeliveredDuplicate(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	_, err := svc.Ingest(context.Background(), IngestRequest{
		ID: 7, Shard: "s1", Payload: pngBytes(t, 16, 16, color.White),
	})
	require.NoError(t, err)

	msgs := startWorker(t, svc)
	msg := &fakeMessage{body: encodeJob(t, queue.IndexJob{
		Shard: "s1", ID: 7, Image: pngBytes(t, 16, 16, color.White),
	})}
	msgs <- msg

	require.Eventually(t, func() bool {
		acked, nacked := msg.state()
		return acked && !nacked
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerAcksPermanentFailure(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	msgs := startWorker(t, svc)

	msg := &fakeMessage{body: encodeJob(t, queue.IndexJob{
		Shard: "s1", ID: 1, Image: []byte("not an image"),
	})}
	msgs <- msg

	require.Eventually(t, func() bool {
		acked, nacked := msg.state()
		return acked && !nacked
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerAcksUndecodableJob(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	msgs := startWorker(t, svc)

	msg := &fakeMessage{body: []byte("{broken json")}
	msgs <- msg

	require.Eventually(t, func() bool {
		acked, _ := msg.state()
		return acked
	}, time.Second, 5*time.Millisecond)
}
