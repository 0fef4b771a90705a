package pointstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryCollection is an in-process collection handle. It exposes the same
// capability methods a host collection would, so it is served through
// ProbingStore like any other handle. It has no embeddings and therefore no
// search method; searches fall through to the substring scan.
type MemoryCollection struct {
	mu     sync.RWMutex
	order  []string
	points map[string]Point
}

// NewMemoryCollection creates an empty collection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{points: make(map[string]Point)}
}

// Upsert inserts or replaces points. Points without an ID get a UUID.
func (c *MemoryCollection) Upsert(_ context.Context, points []Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range points {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

// GetAllPoints returns every point in insertion order.
func (c *MemoryCollection) GetAllPoints(_ context.Context) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Point, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.points[id])
	}
	return out, nil
}

// ListIDs returns every ID in insertion order.
func (c *MemoryCollection) ListIDs(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids, nil
}

// GetPoints returns the requested points, skipping unknown IDs.
// A nil slice returns everything.
func (c *MemoryCollection) GetPoints(ctx context.Context, ids []string) (any, error) {
	if ids == nil {
		return c.GetAllPoints(ctx)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeletePoints removes the given IDs. Unknown IDs are ignored.
func (c *MemoryCollection) DeletePoints(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		c.removeLocked(id)
	}
	return nil
}

// DeletePoint removes a single point.
func (c *MemoryCollection) DeletePoint(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.points[id]; !ok {
		return fmt.Errorf("point %q not found", id)
	}
	c.removeLocked(id)
	return nil
}

// DeletePointsByMetadataFilter removes every point whose metadata contains
// all filter entries. An empty filter removes everything.
func (c *MemoryCollection) DeletePointsByMetadataFilter(_ context.Context, filter map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(filter) == 0 {
		c.order = nil
		c.points = make(map[string]Point)
		return nil
	}

	for _, id := range append([]string(nil), c.order...) {
		if matchesFilter(c.points[id].Metadata(), filter) {
			c.removeLocked(id)
		}
	}
	return nil
}

// Len returns the number of stored points.
func (c *MemoryCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *MemoryCollection) removeLocked(id string) {
	if _, ok := c.points[id]; !ok {
		return
	}
	delete(c.points, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
