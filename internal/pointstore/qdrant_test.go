package pointstore

import (
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_Defaults(t *testing.T) {
	var cfg QdrantConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, "declarative", cfg.Collection)
	assert.Equal(t, uint64(384), cfg.VectorSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	require.NoError(t, cfg.Validate())

	cfg.Port = 70000
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestToQdrantID(t *testing.T) {
	assert.Equal(t, uint64(42), toQdrantID("42").GetNum())

	u := "5f1c1f5e-8e3a-4c8b-9c55-3b1f2a7d9e10"
	assert.Equal(t, u, toQdrantID(u).GetUuid())

	derived := toQdrantID("report.pdf#3")
	assert.NotEmpty(t, derived.GetUuid())
	assert.Equal(t, derived.GetUuid(), toQdrantID("report.pdf#3").GetUuid(), "mapping is deterministic")
}

func TestPointIDString(t *testing.T) {
	assert.Equal(t, "", pointIDString(nil))
	assert.Equal(t, "7", pointIDString(qdrant.NewIDNum(7)))
	assert.Equal(t, "5f1c1f5e-8e3a-4c8b-9c55-3b1f2a7d9e10",
		pointIDString(qdrant.NewIDUUID("5f1c1f5e-8e3a-4c8b-9c55-3b1f2a7d9e10")))
}

func TestPayloadToMap(t *testing.T) {
	payload, err := qdrant.TryValueMap(map[string]any{
		"page_content": "hello",
		"metadata": map[string]any{
			"source":      "a.pdf",
			"chunk_index": 2,
			"score":       0.5,
			"tags":        []any{"x", true},
		},
	})
	require.NoError(t, err)

	got := payloadToMap(payload)
	assert.Equal(t, "hello", got["page_content"])
	meta, ok := got["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.pdf", meta["source"])
	assert.Equal(t, int64(2), meta["chunk_index"])
	assert.Equal(t, 0.5, meta["score"])
	assert.Equal(t, []any{"x", true}, meta["tags"])
}

func TestMetadataFilter(t *testing.T) {
	empty := metadataFilter(nil)
	assert.Empty(t, empty.GetMust())

	f := metadataFilter(map[string]any{"source": "a.pdf", "chunk_index": 1})
	require.Len(t, f.GetMust(), 2)
	first := f.GetMust()[0].GetField()
	assert.Equal(t, "metadata.chunk_index", first.GetKey())
	assert.Equal(t, "1", first.GetMatch().GetKeyword())
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, isTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, isTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.False(t, isTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, isTransientError(errors.New("plain")))
}
