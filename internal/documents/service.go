package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
)

const (
	// FallbackScore is assigned to every substring match when no semantic
	// search method answered.
	FallbackScore float32 = 0.8

	// DefaultSearchLimit is the number of search results returned when the
	// caller passes no limit.
	DefaultSearchLimit = 50

	// DefaultThreshold is the minimum similarity for semantic results.
	DefaultThreshold float32 = 0.3

	// DefaultScanLimit bounds the substring fallback's enumeration.
	DefaultScanLimit = 1000
)

// ErrEmptyQuery is returned when a search or delete has nothing to match.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchOptions tune a single search.
type SearchOptions struct {
	// K caps the number of results. Zero means DefaultSearchLimit.
	K int
	// Threshold is the minimum semantic similarity. Zero means DefaultThreshold.
	Threshold float32
	// ScanLimit bounds the points read by the substring fallback.
	ScanLimit int
	// ScanOnly skips semantic search and goes straight to the substring scan.
	ScanOnly bool
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.K <= 0 {
		o.K = DefaultSearchLimit
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.ScanLimit <= 0 {
		o.ScanLimit = DefaultScanLimit
	}
	return o
}

// Service lists, searches and deletes documents held in a point store.
//
// Every call reads a fresh snapshot of the collection; nothing is cached
// between calls.
type Service struct {
	store  pointstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a document service over store.
func NewService(store pointstore.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("point store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger.Named("documents"),
		now:    time.Now,
	}, nil
}

// Store returns the underlying point store.
func (s *Service) Store() pointstore.Store { return s.store }

// Records enumerates up to limit chunks and normalizes them. limit <= 0
// reads the whole collection.
func (s *Service) Records(ctx context.Context, limit int) ([]Record, error) {
	ctx, done := begin(ctx, "enumerate")
	points, err := s.store.Enumerate(ctx, limit)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("enumerating points: %w", err)
	}
	return s.normalizeAll(points), nil
}

// List returns every document, optionally filtered by a case-insensitive
// substring of the source name.
func (s *Service) List(ctx context.Context, filter string) ([]Document, error) {
	records, err := s.Records(ctx, 0)
	if err != nil {
		return nil, err
	}
	docs := Aggregate(records, strings.TrimSpace(filter))
	s.logger.Debug("listed documents",
		zap.String("filter", filter),
		zap.Int("chunks", len(records)),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// Chunks returns deduplicated chunk records, newest first. With a query the
// chunks come from Search; otherwise up to limit chunks are enumerated.
func (s *Service) Chunks(ctx context.Context, query string, limit int, opts SearchOptions) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		records, err := s.Records(ctx, limit)
		if err != nil {
			return nil, err
		}
		return DedupChunks(records), nil
	}

	opts.K = limit
	results, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	now := s.now()
	records := make([]Record, 0, len(results))
	for _, r := range results {
		records = append(records, Normalize(r.Point, now))
	}
	return DedupChunks(records), nil
}

// Search finds chunks relevant to query. Semantic search is tried first; if
// it fails or finds nothing, the service scans enumerated chunks for a
// case-insensitive substring of query in the source or content and gives
// each match FallbackScore, in enumeration order, capped at opts.K.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]pointstore.ScoredPoint, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	opts = opts.withDefaults()

	ctx, done := begin(ctx, "search")
	if !opts.ScanOnly {
		results, err := s.store.Search(ctx, query, opts.K, opts.Threshold)
		if err == nil && len(results) > 0 {
			done(nil)
			if len(results) > opts.K {
				results = results[:opts.K]
			}
			return results, nil
		}
		if err != nil {
			s.logger.Debug("semantic search unavailable, scanning",
				zap.String("store", s.store.Name()),
				zap.Error(err))
		}
	}

	results, err := s.substringScan(ctx, query, opts)
	done(err)
	if err != nil {
		return nil, err
	}
	searchFallbackTotal.Inc()
	return results, nil
}

func (s *Service) substringScan(ctx context.Context, query string, opts SearchOptions) ([]pointstore.ScoredPoint, error) {
	points, err := s.store.Enumerate(ctx, opts.ScanLimit)
	if err != nil {
		return nil, fmt.Errorf("scanning points: %w", err)
	}

	needle := strings.ToLower(query)
	now := s.now()
	var matches []pointstore.ScoredPoint
	for _, p := range points {
		if len(matches) >= opts.K {
			break
		}
		rec := Normalize(p, now)
		source := rec.Source
		if source == UnknownSource {
			source = ""
		}
		if strings.Contains(strings.ToLower(source), needle) ||
			strings.Contains(strings.ToLower(p.PageContent()), needle) {
			matches = append(matches, pointstore.ScoredPoint{Point: p, Score: FallbackScore})
		}
	}
	return matches, nil
}

// DeleteBySource removes every chunk whose source, filename or file_name
// contains the normalized name. It returns the number of chunks removed;
// zero means nothing matched and no delete was attempted. Deletion is not
// transactional: on failure some chunks may already be gone.
func (s *Service) DeleteBySource(ctx context.Context, name string) (int, error) {
	if NormalizeFilename(name) == "" {
		return 0, ErrEmptyQuery
	}

	ctx, done := begin(ctx, "delete")
	points, err := s.store.Enumerate(ctx, 0)
	if err != nil {
		done(err)
		return 0, fmt.Errorf("enumerating points: %w", err)
	}

	now := s.now()
	var ids []string
	for _, p := range points {
		if p.ID == "" {
			continue
		}
		if MatchesSource(name, deleteCandidates(p, now)...) {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		done(nil)
		s.logger.Debug("no chunks matched", zap.String("source", name))
		return 0, nil
	}

	deleted, err := s.store.DeleteByIDs(ctx, ids)
	done(err)
	if err != nil {
		return 0, fmt.Errorf("deleting %d chunks for %q: %w", len(ids), name, err)
	}
	chunksDeletedTotal.Add(float64(deleted))
	s.logger.Info("deleted document",
		zap.String("source", name),
		zap.Int("matched", len(ids)),
		zap.Int("deleted", deleted))
	return deleted, nil
}

func deleteCandidates(p pointstore.Point, now time.Time) []string {
	out := []string{Normalize(p, now).Source}
	md := p.Metadata()
	for _, key := range []string{"source", "filename", "file_name"} {
		if v := md[key]; truthy(v) {
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// ClearAll removes every chunk and returns how many there were. An empty
// collection is left untouched.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	ctx, done := begin(ctx, "clear")
	points, err := s.store.Enumerate(ctx, 0)
	if err != nil {
		done(err)
		return 0, fmt.Errorf("enumerating points: %w", err)
	}
	if len(points) == 0 {
		done(nil)
		return 0, nil
	}

	cleared := len(points)
	err = s.store.DeleteByFilter(ctx, map[string]any{})
	if errors.Is(err, pointstore.ErrNoFilterDelete) {
		s.logger.Debug("filter delete unsupported, deleting by id")
		cleared, err = s.store.DeleteByIDs(ctx, pointIDs(points))
	}
	done(err)
	if err != nil {
		return 0, fmt.Errorf("clearing collection: %w", err)
	}
	chunksDeletedTotal.Add(float64(cleared))
	s.logger.Info("cleared collection", zap.Int("chunks", cleared))
	return cleared, nil
}

func pointIDs(points []pointstore.Point) []string {
	ids := make([]string, 0, len(points))
	for _, p := range points {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Stats summarizes the whole collection.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	records, err := s.Records(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(records), nil
}

func (s *Service) normalizeAll(points []pointstore.Point) []Record {
	now := s.now()
	out := make([]Record, 0, len(points))
	for _, p := range points {
		out = append(out, Normalize(p, now))
	}
	return out
}
