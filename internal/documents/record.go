package documents

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
)

// UnknownSource is the source of a chunk whose metadata names no file.
const UnknownSource = "Unknown Document"

// UnknownID is the ID of a chunk that carries none.
const UnknownID = "unknown"

// DateLayout formats upload dates (day/month/year hour:minute, local time).
const DateLayout = "02/01/2006 15:04"

// PreviewLength is the number of characters kept in ContentPreview.
const PreviewLength = 200

// SourceFields are the metadata keys that may hold a chunk's file name, in
// priority order. Each key is looked up in the metadata map first and then
// at the top level of the payload.
var SourceFields = []string{
	"source",
	"original_filename",
	"file_name",
	"filename",
	"name",
	"title",
	"path",
	"filepath",
	"document_name",
}

// TimestampFields are the keys that may hold a chunk's creation time as
// epoch seconds, in priority order.
var TimestampFields = []string{
	"when",
	"timestamp",
	"created_at",
	"upload_time",
	"modified_time",
}

// Record is the canonical view of a single chunk. It is derived on every
// read and never stored.
type Record struct {
	ID                string  `json:"id"`
	Source            string  `json:"source"`
	When              float64 `json:"when"`
	UploadDate        string  `json:"upload_date"`
	PageContentLength int     `json:"page_content_length"`
	ChunkIndex        any     `json:"chunk_index"`
	TotalChunks       any     `json:"total_chunks"`
	ContentPreview    string  `json:"content_preview"`
	Preview           string  `json:"preview,omitempty"`
}

// Normalize maps a point into a Record. now supplies the timestamp for
// chunks that carry none.
func Normalize(p pointstore.Point, now time.Time) Record {
	payload := p.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	metadata := p.Metadata()
	if metadata == nil {
		metadata = map[string]any{}
	}
	content := p.PageContent()

	r := Record{
		ID:                p.ID,
		Source:            resolveSource(metadata, payload),
		PageContentLength: utf8.RuneCountInString(content),
		ChunkIndex:        valueOr(metadata, "chunk_index", 0),
		TotalChunks:       valueOr(metadata, "total_chunks", 1),
		ContentPreview:    previewOf(content, PreviewLength),
	}
	if r.ID == "" {
		r.ID = UnknownID
	}

	when, ok := resolveTimestamp(metadata, payload)
	if !ok {
		when = float64(now.UnixNano()) / 1e9
	}
	r.When = when
	r.UploadDate = FormatDate(when)
	return r
}

// FormatDate renders epoch seconds with DateLayout in local time.
func FormatDate(epoch float64) string {
	return EpochTime(epoch).Format(DateLayout)
}

// EpochTime converts fractional epoch seconds to a local time.Time.
func EpochTime(epoch float64) time.Time {
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func resolveSource(metadata, payload map[string]any) string {
	for _, field := range SourceFields {
		if v := metadata[field]; truthy(v) {
			return fmt.Sprint(v)
		}
		if v := payload[field]; truthy(v) {
			return fmt.Sprint(v)
		}
	}
	return UnknownSource
}

// resolveTimestamp returns the first timestamp field that coerces to a
// number. Fields that are present but not numeric are skipped.
func resolveTimestamp(metadata, payload map[string]any) (float64, bool) {
	for _, field := range TimestampFields {
		for _, m := range []map[string]any{metadata, payload} {
			v := m[field]
			if !truthy(v) {
				continue
			}
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func valueOr(m map[string]any, key string, def any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func previewOf(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n]) + "..."
}

// truthy reports whether v counts as present: nil, false, zero numbers and
// empty strings or collections do not.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case json.Number:
		return val != "" && val != "0"
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
