package pointstore

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/logging"
)

var probeTracer = otel.Tracer("docmanager.pointstore.probe")

// defaultScrollLimit bounds ScrollPoints when the caller asked for everything.
const defaultScrollLimit = 10000

// Capabilities a host collection handle may expose. ProbingStore checks for
// each one with a type assertion and uses whichever are present.
type (
	// AllPointsGetter returns every point, as a list or a Page.
	AllPointsGetter interface {
		GetAllPoints(ctx context.Context) (any, error)
	}

	// PointScroller returns one batch of up to limit points.
	PointScroller interface {
		ScrollPoints(ctx context.Context, limit int) (any, error)
	}

	// IDLister lists point identifiers.
	IDLister interface {
		ListIDs(ctx context.Context) ([]string, error)
	}

	// PointsGetter fetches points by ID. A nil slice asks for all points.
	PointsGetter interface {
		GetPoints(ctx context.Context, ids []string) (any, error)
	}

	// Searcher, Querier, SimilaritySearcher and PointSearcher are the
	// semantic search entry points seen across host versions.
	Searcher interface {
		Search(ctx context.Context, query string, k int, threshold float32) (any, error)
	}
	Querier interface {
		Query(ctx context.Context, query string, k int, threshold float32) (any, error)
	}
	SimilaritySearcher interface {
		SimilaritySearch(ctx context.Context, query string, k int) (any, error)
	}
	PointSearcher interface {
		SearchPoints(ctx context.Context, query string, k int, threshold float32) (any, error)
	}

	// BatchDeleter, VariadicDeleter and CountingDeleter are the DeletePoints
	// signatures seen across host versions. A handle satisfies at most one.
	BatchDeleter interface {
		DeletePoints(ctx context.Context, ids []string) error
	}
	VariadicDeleter interface {
		DeletePoints(ctx context.Context, ids ...string) error
	}
	CountingDeleter interface {
		DeletePoints(ctx context.Context, ids []string) (int, error)
	}

	// IDsDeleter deletes by an ID list under a dedicated method name.
	IDsDeleter interface {
		DeletePointsByIDs(ctx context.Context, ids []string) error
	}

	// GenericDeleter is the bare Delete method.
	GenericDeleter interface {
		Delete(ctx context.Context, ids []string) error
	}

	// SingleDeleter deletes one point at a time.
	SingleDeleter interface {
		DeletePoint(ctx context.Context, id string) error
	}

	// FilterDeleter deletes by metadata filter. An empty filter matches all.
	FilterDeleter interface {
		DeletePointsByMetadataFilter(ctx context.Context, filter map[string]any) error
	}
)

type attempt[T any] struct {
	name string
	call func(ctx context.Context) (T, error)
}

// ProbingStore adapts a collection handle whose method set is unknown until
// run time. Every operation walks a fixed priority list of capabilities and
// stops at the first one that is present and succeeds.
type ProbingStore struct {
	collection any
	policy     EnumerationPolicy
	logger     *zap.Logger
}

// NewProbingStore wraps a host collection handle.
func NewProbingStore(collection any, policy EnumerationPolicy, logger *zap.Logger) (*ProbingStore, error) {
	if collection == nil {
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidConfig)
	}
	if policy == "" {
		policy = PolicyLenient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProbingStore{
		collection: collection,
		policy:     policy,
		logger:     logger,
	}, nil
}

// Name implements Store.
func (s *ProbingStore) Name() string { return "probe" }

// Policy returns the enumeration policy in effect.
func (s *ProbingStore) Policy() EnumerationPolicy { return s.policy }

// Collection returns the wrapped handle.
func (s *ProbingStore) Collection() any { return s.collection }

func (s *ProbingStore) enumerators(limit int) []attempt[any] {
	var out []attempt[any]
	if c, ok := s.collection.(AllPointsGetter); ok {
		out = append(out, attempt[any]{"GetAllPoints", c.GetAllPoints})
	}
	if c, ok := s.collection.(PointScroller); ok {
		n := limit
		if n <= 0 {
			n = defaultScrollLimit
		}
		out = append(out, attempt[any]{"ScrollPoints", func(ctx context.Context) (any, error) {
			return c.ScrollPoints(ctx, n)
		}})
	}
	getter, hasGetter := s.collection.(PointsGetter)
	if lister, ok := s.collection.(IDLister); ok && hasGetter {
		out = append(out, attempt[any]{"ListIDs+GetPoints", func(ctx context.Context) (any, error) {
			ids, err := lister.ListIDs(ctx)
			if err != nil {
				return nil, err
			}
			return getter.GetPoints(ctx, ids)
		}})
	}
	if hasGetter {
		out = append(out, attempt[any]{"GetPoints", func(ctx context.Context) (any, error) {
			return getter.GetPoints(ctx, nil)
		}})
	}
	return out
}

// Enumerate implements Store.
//
// It fails with ErrNoEnumerator only when the handle exposes no enumeration
// method at all. When methods exist but all fail, the outcome depends on the
// store's EnumerationPolicy.
func (s *ProbingStore) Enumerate(ctx context.Context, limit int) ([]Point, error) {
	ctx, span := probeTracer.Start(ctx, "ProbingStore.Enumerate")
	defer span.End()

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("policy", string(s.policy)),
	)

	attempts := s.enumerators(limit)
	if len(attempts) == 0 {
		span.SetStatus(codes.Error, ErrNoEnumerator.Error())
		return nil, ErrNoEnumerator
	}

	var lastErr error
	for _, a := range attempts {
		raw, err := a.call(ctx)
		var points []Point
		if err == nil {
			points, err = toPoints(raw)
		}
		if err != nil {
			s.logger.Debug("enumeration method failed",
				zap.String("method", a.name),
				zap.Error(err),
			)
			lastErr = fmt.Errorf("%s: %w", a.name, err)
			continue
		}

		points = truncate(points, limit)
		s.logger.Log(logging.TraceLevel, "enumeration method succeeded",
			zap.String("method", a.name),
			zap.Int("points", len(points)),
		)
		span.SetAttributes(
			attribute.String("method", a.name),
			attribute.Int("points", len(points)),
		)
		return points, nil
	}

	span.RecordError(lastErr)
	if s.policy == PolicyStrict {
		span.SetStatus(codes.Error, lastErr.Error())
		return nil, fmt.Errorf("all enumeration methods failed: %w", lastErr)
	}

	s.logger.Warn("all enumeration methods failed, returning empty list",
		zap.Int("methods_tried", len(attempts)),
		zap.Error(lastErr),
	)
	return []Point{}, nil
}

func (s *ProbingStore) searchers(query string, k int, threshold float32) []attempt[any] {
	var out []attempt[any]
	if c, ok := s.collection.(Searcher); ok {
		out = append(out, attempt[any]{"Search", func(ctx context.Context) (any, error) {
			return c.Search(ctx, query, k, threshold)
		}})
	}
	if c, ok := s.collection.(Querier); ok {
		out = append(out, attempt[any]{"Query", func(ctx context.Context) (any, error) {
			return c.Query(ctx, query, k, threshold)
		}})
	}
	if c, ok := s.collection.(SimilaritySearcher); ok {
		out = append(out, attempt[any]{"SimilaritySearch", func(ctx context.Context) (any, error) {
			return c.SimilaritySearch(ctx, query, k)
		}})
	}
	if c, ok := s.collection.(PointSearcher); ok {
		out = append(out, attempt[any]{"SearchPoints", func(ctx context.Context) (any, error) {
			return c.SearchPoints(ctx, query, k, threshold)
		}})
	}
	return out
}

// Search implements Store. The first method that succeeds with a non-empty
// result wins. When every method fails or comes back empty the result is
// empty with a nil error.
func (s *ProbingStore) Search(ctx context.Context, query string, k int, threshold float32) ([]ScoredPoint, error) {
	ctx, span := probeTracer.Start(ctx, "ProbingStore.Search")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	attempts := s.searchers(query, k, threshold)
	if len(attempts) == 0 {
		return nil, ErrNoSearcher
	}

	for _, a := range attempts {
		raw, err := a.call(ctx)
		var results []ScoredPoint
		if err == nil {
			results, err = toScored(raw)
		}
		if err != nil {
			s.logger.Debug("search method failed",
				zap.String("method", a.name),
				zap.Error(err),
			)
			continue
		}
		if len(results) == 0 {
			continue
		}
		if k > 0 && len(results) > k {
			results = results[:k]
		}
		s.logger.Debug("search succeeded",
			zap.String("method", a.name),
			zap.Int("results", len(results)),
		)
		span.SetAttributes(attribute.String("method", a.name))
		return results, nil
	}
	return []ScoredPoint{}, nil
}

func (s *ProbingStore) batchDeleters(ids []string) []attempt[int] {
	var out []attempt[int]
	all := func(err error) (int, error) {
		if err != nil {
			return 0, err
		}
		return len(ids), nil
	}
	switch c := s.collection.(type) {
	case BatchDeleter:
		out = append(out, attempt[int]{"DeletePoints", func(ctx context.Context) (int, error) {
			return all(c.DeletePoints(ctx, ids))
		}})
	case VariadicDeleter:
		out = append(out, attempt[int]{"DeletePoints(...)", func(ctx context.Context) (int, error) {
			return all(c.DeletePoints(ctx, ids...))
		}})
	case CountingDeleter:
		out = append(out, attempt[int]{"DeletePoints(count)", func(ctx context.Context) (int, error) {
			return c.DeletePoints(ctx, ids)
		}})
	}
	if c, ok := s.collection.(IDsDeleter); ok {
		out = append(out, attempt[int]{"DeletePointsByIDs", func(ctx context.Context) (int, error) {
			return all(c.DeletePointsByIDs(ctx, ids))
		}})
	}
	if c, ok := s.collection.(GenericDeleter); ok {
		out = append(out, attempt[int]{"Delete", func(ctx context.Context) (int, error) {
			return all(c.Delete(ctx, ids))
		}})
	}
	return out
}

// DeleteByIDs implements Store.
//
// Batch delete methods are tried first. If none is present or all fail, the
// points are deleted one at a time; individual failures are logged and the
// loop continues, so earlier deletions stand. An error is returned only when
// nothing could be deleted.
func (s *ProbingStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	ctx, span := probeTracer.Start(ctx, "ProbingStore.DeleteByIDs")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return 0, nil
	}

	var lastErr error
	for _, a := range s.batchDeleters(ids) {
		n, err := a.call(ctx)
		if err != nil {
			s.logger.Debug("delete method failed",
				zap.String("method", a.name),
				zap.Error(err),
			)
			lastErr = fmt.Errorf("%s: %w", a.name, err)
			continue
		}
		span.SetAttributes(attribute.String("method", a.name))
		return n, nil
	}

	single, ok := s.collection.(SingleDeleter)
	if !ok {
		err := ErrNoDeleter
		if lastErr != nil {
			err = fmt.Errorf("all delete methods failed: %w", lastErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := single.DeletePoint(ctx, id); err != nil {
			s.logger.Warn("failed to delete point",
				zap.String("id", id),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		deleted++
	}
	span.SetAttributes(
		attribute.String("method", "DeletePoint"),
		attribute.Int("deleted", deleted),
	)

	if deleted == 0 && lastErr != nil {
		span.SetStatus(codes.Error, "per-point delete failed")
		return 0, fmt.Errorf("per-point delete failed: %w", lastErr)
	}
	return deleted, nil
}

// DeleteByFilter implements Store.
func (s *ProbingStore) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	ctx, span := probeTracer.Start(ctx, "ProbingStore.DeleteByFilter")
	defer span.End()

	c, ok := s.collection.(FilterDeleter)
	if !ok {
		span.SetStatus(codes.Error, ErrNoFilterDelete.Error())
		return ErrNoFilterDelete
	}
	if filter == nil {
		filter = map[string]any{}
	}
	if err := c.DeletePointsByMetadataFilter(ctx, filter); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting by metadata filter: %w", err)
	}
	return nil
}

// Upsert implements Upserter when the wrapped handle does.
func (s *ProbingStore) Upsert(ctx context.Context, points []Point) error {
	u, ok := s.collection.(Upserter)
	if !ok {
		return errors.New("collection does not support upsert")
	}
	return u.Upsert(ctx, points)
}

var (
	_ Store    = (*ProbingStore)(nil)
	_ Upserter = (*ProbingStore)(nil)
)
