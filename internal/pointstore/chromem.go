package pointstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("docmanager.pointstore.chromem")

// enumerationProbe is the query text used to list a chromem collection,
// which has no scan API. Any non-empty text works; results come back in
// similarity order.
const enumerationProbe = "document"

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string `koanf:"path"`
	// Compress enables gzip compression of persisted files.
	Compress bool `koanf:"compress"`
	// Collection is the collection holding document chunks.
	// Default: "declarative".
	Collection string `koanf:"collection"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "declarative"
	}
}

// ChromemStore implements Store over an embedded chromem-go database.
type ChromemStore struct {
	mu     sync.RWMutex
	db     *chromem.DB
	col    *chromem.Collection
	embed  chromem.EmbeddingFunc
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore opens (or creates) the configured collection.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	embed := EmbeddingFunc(embedder)
	col, err := db.GetOrCreateCollection(config.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	logger.Info("chromem point store initialized",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection),
		zap.Int("points", col.Count()),
	)

	return &ChromemStore{
		db:     db,
		col:    col,
		embed:  embed,
		config: config,
		logger: logger,
	}, nil
}

// Name implements Store.
func (s *ChromemStore) Name() string { return "chromem" }

func (s *ChromemStore) collection() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col
}

// Upsert implements Upserter. chromem computes missing embeddings from the
// page content.
func (s *ChromemStore) Upsert(ctx context.Context, points []Point) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(attribute.Int("point_count", len(points)))

	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: point ID is required", ErrInvalidConfig)
		}
		content := p.PageContent()
		if content == "" {
			// chromem refuses documents without content or embedding.
			content = " "
		}
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Content:   content,
			Metadata:  stringifyMetadata(p.Metadata()),
			Embedding: p.Vector,
		})
	}

	if err := s.collection().AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Enumerate implements Store.
func (s *ChromemStore) Enumerate(ctx context.Context, limit int) ([]Point, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Enumerate")
	defer span.End()

	col := s.collection()
	n := col.Count()
	if n == 0 {
		return []Point{}, nil
	}
	if limit > 0 && limit < n {
		n = limit
	}

	results, err := col.Query(ctx, enumerationProbe, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing collection %s: %w", s.config.Collection, err)
	}

	points := make([]Point, len(results))
	for i, r := range results {
		points[i] = pointFromChromem(r)
	}
	span.SetAttributes(attribute.Int("points", len(points)))
	return points, nil
}

// Search implements Store.
func (s *ChromemStore) Search(ctx context.Context, query string, k int, threshold float32) ([]ScoredPoint, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if strings.TrimSpace(query) == "" || k <= 0 {
		return []ScoredPoint{}, nil
	}

	col := s.collection()
	// chromem requires nResults <= doc count
	if count := col.Count(); count == 0 {
		return []ScoredPoint{}, nil
	} else if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		out = append(out, ScoredPoint{Point: pointFromChromem(r), Score: r.Similarity})
	}

	s.logger.Debug("searched chromem collection",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(out)),
	)
	return out, nil
}

// DeleteByIDs implements Store.
func (s *ChromemStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByIDs")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.collection().Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting %d documents: %w", len(ids), err)
	}
	return len(ids), nil
}

// DeleteByFilter implements Store. chromem cannot delete with an empty
// filter, so clearing drops and recreates the collection.
func (s *ChromemStore) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByFilter")
	defer span.End()

	if len(filter) > 0 {
		if err := s.collection().Delete(ctx, stringifyMetadata(filter), nil); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("deleting by filter: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}
	col, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recreating collection %s: %w", s.config.Collection, err)
	}
	s.col = col

	s.logger.Info("cleared chromem collection", zap.String("collection", s.config.Collection))
	return nil
}

func pointFromChromem(r chromem.Result) Point {
	metadata := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	return Point{
		ID: r.ID,
		Payload: map[string]any{
			PageContentKey: r.Content,
			MetadataKey:    metadata,
		},
		Vector: r.Embedding,
	}
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

var (
	_ Store    = (*ChromemStore)(nil)
	_ Upserter = (*ChromemStore)(nil)
)
