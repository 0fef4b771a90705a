package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	records := []Record{
		rec("1", "a.pdf", 100, 100, 0),
		rec("2", "a.pdf", 300, 1000, 1),
		rec("3", "b.md", 200, 3000, 0),
	}

	st := ComputeStats(records)
	assert.Equal(t, 2, st.TotalDocuments)
	assert.Equal(t, 3, st.TotalChunks)
	assert.Equal(t, 4100, st.TotalCharacters)
	assert.Equal(t, 1366, st.AverageChunkSize)
	assert.Equal(t, SizeDistribution{Small: 1, Medium: 1, Large: 1}, st.ChunkSizeDistribution)
	assert.Equal(t, 0.01, st.EstimatedMemoryMB)
	assert.Equal(t, 100.0, st.FirstWhen)
	assert.Equal(t, 300.0, st.LastWhen)
	assert.Equal(t, FormatDate(300), st.LastUpdate)

	require.Contains(t, st.Sources, "a.pdf")
	assert.Equal(t, 2, st.Sources["a.pdf"].Chunks)
	assert.Equal(t, 300.0, st.Sources["a.pdf"].UploadDate)
	assert.Equal(t, 550, st.Sources["a.pdf"].AverageChunkSize())

	top := st.TopSources(1)
	require.Len(t, top, 1)
	assert.Equal(t, "a.pdf", top[0].Source)
	assert.Len(t, st.TopSources(0), 2)
}

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(nil)
	assert.Zero(t, st.TotalChunks)
	assert.Zero(t, st.AverageChunkSize)
	assert.Equal(t, NeverLabel, st.FirstUpdate)
	assert.Equal(t, NeverLabel, st.LastUpdate)
	assert.Empty(t, st.TopSources(15))
}
