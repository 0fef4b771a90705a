package pointstore

import (
	"fmt"
	"strconv"
)

// IDPayloader is implemented by host point objects that expose an
// identifier and a payload instead of being plain maps.
type IDPayloader interface {
	PointID() string
	PointPayload() map[string]any
}

// Page is a scroll-style result: one batch of points plus an opaque cursor.
// Only Points is consumed.
type Page struct {
	Points     any
	NextOffset any
}

// toPoints converts whatever a collection method returned into points.
// nil entries are dropped. Elements of unknown shape become empty points so
// that normalization can still account for them.
func toPoints(raw any) ([]Point, error) {
	switch v := raw.(type) {
	case nil:
		return []Point{}, nil
	case Page:
		return toPoints(v.Points)
	case *Page:
		if v == nil {
			return []Point{}, nil
		}
		return toPoints(v.Points)
	case []Point:
		out := make([]Point, len(v))
		copy(out, v)
		return out, nil
	case []*Point:
		out := make([]Point, 0, len(v))
		for _, p := range v {
			if p != nil {
				out = append(out, *p)
			}
		}
		return out, nil
	case []map[string]any:
		out := make([]Point, 0, len(v))
		for _, m := range v {
			if m != nil {
				out = append(out, pointFromMap(m))
			}
		}
		return out, nil
	case []IDPayloader:
		out := make([]Point, 0, len(v))
		for _, p := range v {
			if p != nil {
				out = append(out, Point{ID: p.PointID(), Payload: p.PointPayload()})
			}
		}
		return out, nil
	case []any:
		if len(v) == 2 && isPointList(v[0]) {
			return toPoints(v[0])
		}
		out := make([]Point, 0, len(v))
		for _, item := range v {
			if p, ok := toPoint(item); ok {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported point list type %T", raw)
	}
}

// isPointList reports whether v is one of the list shapes toPoints accepts,
// which marks a two-element result as (points, cursor).
func isPointList(v any) bool {
	switch v.(type) {
	case []Point, []*Point, []map[string]any, []IDPayloader, []any:
		return true
	}
	return false
}

// toPoint converts a single element. It reports false for nil.
func toPoint(item any) (Point, bool) {
	switch v := item.(type) {
	case nil:
		return Point{}, false
	case Point:
		return v, true
	case *Point:
		if v == nil {
			return Point{}, false
		}
		return *v, true
	case ScoredPoint:
		return v.Point, true
	case *ScoredPoint:
		if v == nil {
			return Point{}, false
		}
		return v.Point, true
	case IDPayloader:
		return Point{ID: v.PointID(), Payload: v.PointPayload()}, true
	case map[string]any:
		if v == nil {
			return Point{}, false
		}
		return pointFromMap(v), true
	default:
		return Point{}, true
	}
}

// pointFromMap reads a mapping-shaped point. A nested "payload" map is used
// when present, otherwise the mapping itself is the payload.
func pointFromMap(m map[string]any) Point {
	p := Point{Payload: m}
	if inner := asMap(m["payload"]); inner != nil {
		p.Payload = inner
	}
	if id, ok := m["id"]; ok && id != nil {
		p.ID = fmt.Sprint(id)
	}
	return p
}

// toScored converts a search result into scored points. Plain points get a
// zero score.
func toScored(raw any) ([]ScoredPoint, error) {
	switch v := raw.(type) {
	case nil:
		return []ScoredPoint{}, nil
	case []ScoredPoint:
		out := make([]ScoredPoint, len(v))
		copy(out, v)
		return out, nil
	case []*ScoredPoint:
		out := make([]ScoredPoint, 0, len(v))
		for _, sp := range v {
			if sp != nil {
				out = append(out, *sp)
			}
		}
		return out, nil
	case []any:
		out := make([]ScoredPoint, 0, len(v))
		for _, item := range v {
			switch sp := item.(type) {
			case ScoredPoint:
				out = append(out, sp)
			case *ScoredPoint:
				if sp != nil {
					out = append(out, *sp)
				}
			default:
				if p, ok := toPoint(item); ok {
					out = append(out, ScoredPoint{Point: p})
				}
			}
		}
		return out, nil
	default:
		points, err := toPoints(raw)
		if err != nil {
			return nil, err
		}
		out := make([]ScoredPoint, len(points))
		for i, p := range points {
			out[i] = ScoredPoint{Point: p}
		}
		return out, nil
	}
}

// asMap returns v as a string-keyed map, or nil.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out
	default:
		return nil
	}
}

// stringifyMetadata flattens metadata for backends that only store strings.
func stringifyMetadata(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case float32:
			out[k] = strconv.FormatFloat(float64(val), 'f', -1, 32)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
