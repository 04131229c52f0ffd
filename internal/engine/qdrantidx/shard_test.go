package qdrantidx

import (
	"context"
	"image"
	"slices"
	"sort"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/properties"
	"github.com/cbir-io/retrieval/internal/queue"
)

// fakeClient keeps points in a map and answers the client calls the
// shard makes against a live server.
type fakeClient struct {
	collections []string
	points      map[uint64]*qdrant.RetrievedPoint
}

func newFakeClient() *fakeClient {
	return &fakeClient{points: make(map[uint64]*qdrant.RetrievedPoint)}
}

func (f *fakeClient) HealthCheck(context.Context) (*qdrant.HealthCheckReply, error) {
	return &qdrant.HealthCheckReply{}, nil
}

func (f *fakeClient) ListCollections(context.Context) ([]string, error) {
	return f.collections, nil
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.collections = append(f.collections, req.CollectionName)
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	for _, p := range req.Points {
		f.points[p.Id.GetNum()] = &qdrant.RetrievedPoint{Id: p.Id, Payload: p.Payload}
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	var out []*qdrant.RetrievedPoint
	for _, id := range req.Ids {
		if p, ok := f.points[id.GetNum()]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeClient) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	for _, id := range req.Points.GetPoints().GetIds() {
		delete(f.points, id.GetNum())
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	var from uint64
	if req.Offset != nil {
		from = req.Offset.GetNum()
	}
	var out []*qdrant.RetrievedPoint
	for num, p := range f.points {
		if num >= from {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id.GetNum() < out[j].Id.GetNum() })
	if req.Limit != nil && len(out) > int(*req.Limit) {
		out = out[:int(*req.Limit)]
	}
	return out, nil
}

func (f *fakeClient) Close() error { return nil }

type capturedJobs struct {
	jobs []queue.IndexJob
}

func (c *capturedJobs) PublishJob(_ context.Context, job queue.IndexJob) error {
	c.jobs = append(c.jobs, job)
	return nil
}

func newFakeShard(t *testing.T, api clientAPI, publisher queue.Publisher) *Shard {
	t.Helper()
	b := &Backend{cfg: DefaultConfig(), api: api, publisher: publisher, log: zap.NewNop()}
	s, err := b.openShard(context.Background(), "s1")
	require.NoError(t, err)
	return s
}

func rgba(w, h int) *engine.Image {
	return &engine.Image{Pixels: image.NewRGBA(image.Rect(0, 0, w, h)), Format: "png"}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	props := properties.New()
	props.Set("name", "lena")
	props.Set("author", "anon")
	keys, values := props.Encode()

	payload := qdrant.NewValueMap(map[string]any{
		payloadKeys:   keys,
		payloadValues: values,
		payloadID:     int64(42),
		payloadShard:  "s1",
		payloadFormat: "png",
		payloadSeq:    int64(3),
	})

	got, err := decodePayload(payload)
	require.NoError(t, err)

	require.Equal(t, []string{"name", "author", "id", "shard", "format"}, got.Keys())
	id, _ := got.Get("id")
	require.Equal(t, "42", id)
	shard, _ := got.Get("shard")
	require.Equal(t, "s1", shard)
}

func TestDecodePayloadCorrupt(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		payloadKeys:   "a;b",
		payloadValues: "1",
	})

	_, err := decodePayload(payload)
	require.Error(t, err)
}

func TestOpenShardCreatesCollection(t *testing.T) {
	api := newFakeClient()
	newFakeShard(t, api, nil)
	require.True(t, slices.Contains(api.collections, "cbir_s1"))
}

func TestIndexSyncAutoIDSkipsTakenIDs(t *testing.T) {
	api := newFakeClient()
	s := newFakeShard(t, api, nil)
	ctx := context.Background()

	explicit := properties.New()
	explicit.Set("v", "explicit")
	_, err := s.IndexSync(ctx, rgba(16, 16), 1, explicit)
	require.NoError(t, err)

	// The counter would assign 1 next; the upsert must not land there.
	auto := properties.New()
	auto.Set("v", "auto")
	id, err := s.IndexSync(ctx, rgba(16, 16), engine.AutoID, auto)
	require.NoError(t, err)
	require.NotEqual(t, int64(1), id)

	stored, err := s.Properties(ctx, 1)
	require.NoError(t, err)
	v, _ := stored.Get("v")
	require.Equal(t, "explicit", v)

	all, err := s.ListProperties(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestIndexAsyncAutoIDSkipsTakenIDs(t *testing.T) {
	api := newFakeClient()
	pub := &capturedJobs{}
	s := newFakeShard(t, api, pub)
	ctx := context.Background()

	_, err := s.IndexSync(ctx, rgba(16, 16), 1, properties.New())
	require.NoError(t, err)

	id, err := s.IndexAsync(ctx, rgba(16, 16), engine.AutoID, properties.New())
	require.NoError(t, err)
	require.NotEqual(t, int64(1), id)

	require.Len(t, pub.jobs, 1)
	require.Equal(t, id, pub.jobs[0].ID)
}

func TestRecoveredCountersSkipExistingIDs(t *testing.T) {
	api := newFakeClient()
	s := newFakeShard(t, api, nil)
	ctx := context.Background()

	_, err := s.IndexSync(ctx, rgba(16, 16), 5, properties.New())
	require.NoError(t, err)

	// A fresh shard over the same collection must not hand out taken ids.
	reopened := newFakeShard(t, api, nil)
	id, err := reopened.IndexSync(ctx, rgba(16, 16), engine.AutoID, properties.New())
	require.NoError(t, err)
	require.Equal(t, int64(6), id)
}

func TestValidateRejectsSmallImages(t *testing.T) {
	s := &Shard{backend: &Backend{cfg: DefaultConfig()}}

	tiny := &engine.Image{Pixels: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	require.ErrorIs(t, s.validate(tiny), engine.ErrInvalidImage)

	require.ErrorIs(t, s.validate(nil), engine.ErrInvalidImage)

	ok := &engine.Image{Pixels: image.NewRGBA(image.Rect(0, 0, 8, 8))}
	require.NoError(t, s.validate(ok))
}
