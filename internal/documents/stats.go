package documents

import (
	"math"
	"sort"
)

// Chunk size class boundaries, in characters.
const (
	SmallChunkLimit = 500
	LargeChunkLimit = 2000
)

// bytesPerCharacter is the rough in-memory cost used for the memory estimate.
const bytesPerCharacter = 2

// NeverLabel replaces upload dates when the collection is empty.
const NeverLabel = "Never"

// SourceStats summarizes one source.
type SourceStats struct {
	Source     string  `json:"-"`
	Chunks     int     `json:"chunks"`
	Characters int     `json:"characters"`
	UploadDate float64 `json:"upload_date"`
}

// AverageChunkSize returns the source's mean chunk length.
func (s SourceStats) AverageChunkSize() int {
	if s.Chunks == 0 {
		return 0
	}
	return s.Characters / s.Chunks
}

// SizeDistribution counts chunks per size class.
type SizeDistribution struct {
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
}

// Stats summarizes a whole collection.
type Stats struct {
	TotalDocuments        int                     `json:"total_documents"`
	TotalChunks           int                     `json:"total_chunks"`
	TotalCharacters       int                     `json:"total_characters"`
	AverageChunkSize      int                     `json:"average_chunk_size"`
	EstimatedMemoryMB     float64                 `json:"estimated_memory_mb"`
	Sources               map[string]*SourceStats `json:"sources"`
	ChunkSizeDistribution SizeDistribution        `json:"chunk_size_distribution"`
	LastUpdate            string                  `json:"last_update"`
	FirstUpdate           string                  `json:"first_update"`

	FirstWhen float64 `json:"-"`
	LastWhen  float64 `json:"-"`
}

// ComputeStats aggregates records into collection statistics. A source's
// upload date is the newest timestamp among its chunks.
func ComputeStats(records []Record) Stats {
	st := Stats{
		Sources:     make(map[string]*SourceStats),
		LastUpdate:  NeverLabel,
		FirstUpdate: NeverLabel,
	}
	for i, r := range records {
		src, ok := st.Sources[r.Source]
		if !ok {
			src = &SourceStats{Source: r.Source, UploadDate: r.When}
			st.Sources[r.Source] = src
		}
		src.Chunks++
		src.Characters += r.PageContentLength
		if r.When > src.UploadDate {
			src.UploadDate = r.When
		}

		st.TotalChunks++
		st.TotalCharacters += r.PageContentLength
		switch {
		case r.PageContentLength < SmallChunkLimit:
			st.ChunkSizeDistribution.Small++
		case r.PageContentLength < LargeChunkLimit:
			st.ChunkSizeDistribution.Medium++
		default:
			st.ChunkSizeDistribution.Large++
		}

		if i == 0 || r.When < st.FirstWhen {
			st.FirstWhen = r.When
		}
		if i == 0 || r.When > st.LastWhen {
			st.LastWhen = r.When
		}
	}

	st.TotalDocuments = len(st.Sources)
	if st.TotalChunks > 0 {
		st.AverageChunkSize = st.TotalCharacters / st.TotalChunks
		st.FirstUpdate = FormatDate(st.FirstWhen)
		st.LastUpdate = FormatDate(st.LastWhen)
	}
	mb := float64(st.TotalCharacters*bytesPerCharacter) / (1024 * 1024)
	st.EstimatedMemoryMB = math.Round(mb*100) / 100
	return st
}

// TopSources returns the n sources with the most chunks, ties broken by
// name. n <= 0 returns all of them.
func (s Stats) TopSources(n int) []SourceStats {
	out := make([]SourceStats, 0, len(s.Sources))
	for _, src := range s.Sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chunks != out[j].Chunks {
			return out[i].Chunks > out[j].Chunks
		}
		return out[i].Source < out[j].Source
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
