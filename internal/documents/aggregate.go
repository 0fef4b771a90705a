package documents

import (
	"fmt"
	"sort"
	"strings"
)

// Document groups the chunks of one source.
type Document struct {
	Source          string   `json:"source"`
	Chunks          []Record `json:"chunks"`
	TotalCharacters int      `json:"total_characters"`
	When            float64  `json:"when"`
	UploadDate      string   `json:"upload_date"`
}

// ChunkCount is the number of chunks in the document.
func (d Document) ChunkCount() int { return len(d.Chunks) }

// Aggregate groups records by source. A non-empty filter keeps only sources
// whose name contains it, case-insensitively. Each document takes the
// newest timestamp among its chunks; documents are ordered newest first,
// ties broken by source name.
func Aggregate(records []Record, filter string) []Document {
	filter = strings.ToLower(filter)
	bySource := make(map[string]*Document)
	for _, r := range records {
		if filter != "" && !strings.Contains(strings.ToLower(r.Source), filter) {
			continue
		}
		doc, ok := bySource[r.Source]
		if !ok {
			doc = &Document{Source: r.Source, When: r.When}
			bySource[r.Source] = doc
		}
		doc.Chunks = append(doc.Chunks, r)
		doc.TotalCharacters += r.PageContentLength
		if r.When > doc.When {
			doc.When = r.When
		}
	}

	docs := make([]Document, 0, len(bySource))
	for _, doc := range bySource {
		doc.UploadDate = FormatDate(doc.When)
		sortChunks(doc.Chunks)
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].When != docs[j].When {
			return docs[i].When > docs[j].When
		}
		return docs[i].Source < docs[j].Source
	})
	return docs
}

// sortChunks orders a document's chunks by chunk index, then ID, so the
// grouping does not depend on enumeration order.
func sortChunks(chunks []Record) {
	sort.SliceStable(chunks, func(i, j int) bool {
		ci, oki := toFloat(chunks[i].ChunkIndex)
		cj, okj := toFloat(chunks[j].ChunkIndex)
		if oki && okj && ci != cj {
			return ci < cj
		}
		if oki != okj {
			return oki
		}
		return chunks[i].ID < chunks[j].ID
	})
}

// DedupChunks drops repeated chunks sharing a source and chunk index,
// keeping the first, and orders the remainder newest first.
func DedupChunks(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		key := r.Source + "_" + fmt.Sprint(r.ChunkIndex)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].When > out[j].When })
	return out
}
