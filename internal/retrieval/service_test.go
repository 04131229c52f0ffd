package retrieval

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine/memory"
	"github.com/cbir-io/retrieval/internal/properties"
	"github.com/cbir-io/retrieval/internal/registry"
)

// pngBytes renders a solid w x h PNG.
func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, shards ...string) (*Service, *registry.Registry) {
	t.Helper()
	backend := memory.NewBackend(memory.Config{}, zap.NewNop())
	t.Cleanup(func() { _ = backend.Close() })

	reg := registry.New(backend.Factory())
	for _, name := range shards {
		_, err := reg.GetOrCreate(context.Background(), name)
		require.NoError(t, err)
	}
	return NewService(reg, nil, zap.NewNop()), reg
}

func TestIngestReturnsStoredMapping(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	ctx := context.Background()

	got, err := svc.Ingest(ctx, IngestRequest{
		ID:      1,
		Shard:   "s1",
		Keys:    "name;author",
		Values:  "sunset;anon",
		Payload: pngBytes(t, 16, 16, color.RGBA{R: 255, A: 255}),
	})
	require.NoError(t, err)

	name, _ := got.Get("name")
	require.Equal(t, "sunset", name)

	// Enriched by the engine, not merely echoed from the request.
	id, ok := got.Get("id")
	require.True(t, ok)
	require.Equal(t, "1", id)
}

func TestIngestCreatesExplicitShard(t *testing.T) {
	svc, reg := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		ID:      1,
		Shard:   "fresh",
		Payload: pngBytes(t, 16, 16, color.White),
	})
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	// Lookup paths never create.
	_, err = svc.ShardProperties(ctx, "other", 1)
	require.ErrorIs(t, err, registry.ErrShardNotFound)
	require.Equal(t, 1, reg.Len())
}

func TestIngestDuplicate(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	ctx := context.Background()
	payload := pngBytes(t, 16, 16, color.White)

	_, err := svc.Ingest(ctx, IngestRequest{ID: 5, Shard: "s1", Keys: "v", Values: "first", Payload: payload})
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, IngestRequest{ID: 5, Shard: "s1", Keys: "v", Values: "second", Payload: payload})
	require.ErrorIs(t, err, ErrDuplicateImage)

	got, err := svc.ShardProperties(ctx, "s1", 5)
	require.NoError(t, err)
	v, _ := got.Get("v")
	require.Equal(t, "first", v)
}

func TestIngestRejectsNonImagePayload(t *testing.T) {
	svc, _ := newTestService(t, "s1")

	_, err := svc.Ingest(context.Background(), IngestRequest{
		ID:      1,
		Shard:   "s1",
		Payload: []byte("definitely not a raster image"),
	})
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestIngestMalformedProperties(t *testing.T) {
	svc, _ := newTestService(t, "s1")

	_, err := svc.Ingest(context.Background(), IngestRequest{
		ID:      1,
		Shard:   "s1",
		Keys:    "a;b",
		Values:  "1",
		Payload: pngBytes(t, 16, 16, color.White),
	})
	require.ErrorIs(t, err, properties.ErrMalformed)

	// Nothing was indexed.
	_, err = svc.ShardProperties(context.Background(), "s1", 1)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestIngestNoShardsAvailable(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		ID:      1,
		Payload: pngBytes(t, 16, 16, color.White),
	})
	require.ErrorIs(t, err, registry.ErrNoShardsAvailable)
}

func TestIngestRoundRobinTouchesEveryShard(t *testing.T) {
	names := []string{"a", "b", "c"}
	svc, reg := newTestService(t, names...)
	ctx := context.Background()

	for i := 0; i < 2*len(names); i++ {
		_, err := svc.Ingest(ctx, IngestRequest{
			ID:      int64(i + 1),
			Payload: pngBytes(t, 16, 16, color.White),
		})
		require.NoError(t, err)
	}

	for _, shard := range reg.List() {
		all, err := shard.ListProperties(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2, "shard %s", shard.Name())
	}
}

func TestIngestAsyncReturnsBeforeVisibility(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	ctx := context.Background()

	got, err := svc.Ingest(ctx, IngestRequest{
		ID:      77,
		Shard:   "s1",
		Keys:    "k",
		Values:  "v",
		Async:   true,
		Payload: pngBytes(t, 16, 16, color.White),
	})
	require.NoError(t, err)

	// The response carries the provisional identifier immediately.
	id, ok := got.Get("id")
	require.True(t, ok)
	require.Equal(t, "77", id)

	// No read-after-write guarantee on the async path; visibility is
	// eventual.
	require.Eventually(t, func() bool {
		_, err := svc.ShardProperties(ctx, "s1", 77)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteRemovesIndexedImage(t *testing.T) {
	svc, _ := newTestService(t, "s1")
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{ID: 3, Shard: "s1", Payload: pngBytes(t, 16, 16, color.White)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "s1", 3))

	_, err = svc.ShardProperties(ctx, "s1", 3)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestDeleteMissingImage(t *testing.T) {
	svc, _ := newTestService(t, "s1")

	err := svc.Delete(context.Background(), "s1", 404)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestDeleteMissingShard(t *testing.T) {
	svc, _ := newTestService(t, "s1")

	err := svc.Delete(context.Background(), "nope", 1)
	require.ErrorIs(t, err, registry.ErrShardNotFound)
}

func TestCreateAndListShards(t *testing.T) {
	svc, _ := newTestService(t, "a")
	ctx := context.Background()

	require.NoError(t, svc.CreateShard(ctx, "b"))
	require.ErrorIs(t, svc.CreateShard(ctx, "b"), registry.ErrShardExists)

	_, err := svc.Ingest(ctx, IngestRequest{ID: 1, Shard: "a", Payload: pngBytes(t, 16, 16, color.White)})
	require.NoError(t, err)

	infos, err := svc.ListShards(ctx)
	require.NoError(t, err)
	require.Equal(t, []ShardInfo{{Name: "a", Images: 1}, {Name: "b", Images: 0}}, infos)
}
