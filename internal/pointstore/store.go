package pointstore

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by point stores.
var (
	// ErrNoEnumerator is returned when the backend exposes no way to list points.
	ErrNoEnumerator = errors.New("no known enumeration method available on collection")

	// ErrNoSearcher is returned when the backend exposes no search method.
	ErrNoSearcher = errors.New("no known search method available on collection")

	// ErrNoDeleter is returned when the backend exposes no way to delete points.
	ErrNoDeleter = errors.New("no known delete method available on collection")

	// ErrNoFilterDelete is returned when the backend cannot delete by metadata filter.
	ErrNoFilterDelete = errors.New("no delete-by-filter method available on collection")

	// ErrInvalidConfig is returned when store configuration is invalid.
	ErrInvalidConfig = errors.New("invalid point store configuration")

	// ErrUnknownProvider is returned when the configured provider is not supported.
	ErrUnknownProvider = errors.New("unknown point store provider")
)

// Payload keys shared by every backend.
const (
	// PageContentKey holds the chunk text.
	PageContentKey = "page_content"

	// MetadataKey holds the chunk metadata map.
	MetadataKey = "metadata"
)

// Point is a single chunk stored in a vector collection.
//
// Payload is schema-less. By convention it carries the chunk text under
// PageContentKey and a metadata map under MetadataKey, but adapters do not
// enforce either.
type Point struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"-"`
}

// PageContent returns the chunk text, or "" when absent.
func (p Point) PageContent() string {
	if p.Payload == nil {
		return ""
	}
	switch v := p.Payload[PageContentKey].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Metadata returns the metadata sub-map, or nil when absent.
func (p Point) Metadata() map[string]any {
	if p.Payload == nil {
		return nil
	}
	return asMap(p.Payload[MetadataKey])
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point Point   `json:"point"`
	Score float32 `json:"score"`
}

// Store is the narrow interface the document layer depends on.
//
// Implementations adapt a concrete backend (an embedded chromem-go database,
// a remote Qdrant collection, or a host-provided collection handle whose
// method set is only known at run time) to these four operations.
type Store interface {
	// Enumerate returns up to limit points. limit <= 0 means unbounded.
	Enumerate(ctx context.Context, limit int) ([]Point, error)

	// Search returns up to k points scoring at or above threshold.
	// An empty result with a nil error means the backend found nothing;
	// callers may apply their own fallback.
	Search(ctx context.Context, query string, k int, threshold float32) ([]ScoredPoint, error)

	// DeleteByIDs removes the given points and reports how many delete
	// requests were accepted. Deletion is not transactional.
	DeleteByIDs(ctx context.Context, ids []string) (int, error)

	// DeleteByFilter removes every point whose metadata matches filter.
	// An empty filter matches every point.
	DeleteByFilter(ctx context.Context, filter map[string]any) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// Upserter is implemented by stores that can ingest points directly.
// The CLI seed command and tests use it; the document layer never writes.
type Upserter interface {
	Upsert(ctx context.Context, points []Point) error
}

// EnumerationPolicy decides what Enumerate does when enumeration methods
// exist on a collection but every one of them fails.
type EnumerationPolicy string

const (
	// PolicyLenient logs the failures and returns an empty list.
	PolicyLenient EnumerationPolicy = "lenient"

	// PolicyStrict returns the last failure to the caller.
	PolicyStrict EnumerationPolicy = "strict"
)

// ParseEnumerationPolicy parses a policy name. Empty selects PolicyLenient.
func ParseEnumerationPolicy(s string) (EnumerationPolicy, error) {
	switch EnumerationPolicy(s) {
	case "", PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("%w: enumeration policy must be %q or %q, got %q",
			ErrInvalidConfig, PolicyLenient, PolicyStrict, s)
	}
}

func truncate(points []Point, limit int) []Point {
	if limit > 0 && len(points) > limit {
		return points[:limit]
	}
	return points
}
