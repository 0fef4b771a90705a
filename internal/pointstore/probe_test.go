package pointstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errBoom = errors.New("boom")

func samplePoint(id, content string) Point {
	return Point{
		ID: id,
		Payload: map[string]any{
			PageContentKey: content,
			MetadataKey:    map[string]any{"source": id + ".txt"},
		},
	}
}

// scrollOnly exposes ScrollPoints and nothing else.
type scrollOnly struct {
	points    []any
	lastLimit int
}

func (s *scrollOnly) ScrollPoints(_ context.Context, limit int) (any, error) {
	s.lastLimit = limit
	if limit < len(s.points) {
		return Page{Points: s.points[:limit], NextOffset: limit}, nil
	}
	return Page{Points: s.points}, nil
}

type failingGetAll struct{}

func (failingGetAll) GetAllPoints(context.Context) (any, error) { return nil, errBoom }

type failingGetAllWithScroll struct {
	failingGetAll
	scrollOnly
}

type listAndGet struct {
	points map[string]Point
	asked  []string
}

func (l *listAndGet) ListIDs(context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

func (l *listAndGet) GetPoints(_ context.Context, ids []string) (any, error) {
	l.asked = ids
	out := make([]*Point, 0, len(ids))
	for _, id := range ids {
		p := l.points[id]
		out = append(out, &p)
	}
	return out, nil
}

func newProbe(t *testing.T, collection any, policy EnumerationPolicy) *ProbingStore {
	t.Helper()
	s, err := NewProbingStore(collection, policy, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewProbingStore_RequiresCollection(t *testing.T) {
	_, err := NewProbingStore(nil, PolicyLenient, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProbingStore_Enumerate_ScrollOnly(t *testing.T) {
	collection := &scrollOnly{}
	for i := 0; i < 8; i++ {
		if i%3 == 0 {
			collection.points = append(collection.points, nil)
			continue
		}
		collection.points = append(collection.points, samplePoint(fmt.Sprintf("p%d", i), "text"))
	}

	s := newProbe(t, collection, PolicyLenient)
	points, err := s.Enumerate(context.Background(), 5)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(points), 5)
	assert.NotEmpty(t, points)
	assert.Equal(t, 5, collection.lastLimit)
	for _, p := range points {
		assert.NotEmpty(t, p.ID)
	}
}

func TestProbingStore_Enumerate_UnboundedScrollUsesDefaultLimit(t *testing.T) {
	collection := &scrollOnly{points: []any{samplePoint("a", "x")}}
	s := newProbe(t, collection, PolicyLenient)

	points, err := s.Enumerate(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, defaultScrollLimit, collection.lastLimit)
}

func TestProbingStore_Enumerate_NoMethod(t *testing.T) {
	for _, policy := range []EnumerationPolicy{PolicyLenient, PolicyStrict} {
		t.Run(string(policy), func(t *testing.T) {
			s := newProbe(t, struct{}{}, policy)
			_, err := s.Enumerate(context.Background(), 10)
			assert.ErrorIs(t, err, ErrNoEnumerator)
		})
	}
}

func TestProbingStore_Enumerate_AllMethodsFail(t *testing.T) {
	t.Run("lenient returns empty list", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		s, err := NewProbingStore(failingGetAll{}, PolicyLenient, zap.New(core))
		require.NoError(t, err)

		points, err := s.Enumerate(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, points)
		assert.Equal(t, 1, logs.FilterMessage("all enumeration methods failed, returning empty list").Len())
	})

	t.Run("strict returns the failure", func(t *testing.T) {
		s := newProbe(t, failingGetAll{}, PolicyStrict)
		points, err := s.Enumerate(context.Background(), 10)
		assert.Nil(t, points)
		assert.ErrorIs(t, err, errBoom)
		assert.NotErrorIs(t, err, ErrNoEnumerator)
	})
}

func TestProbingStore_Enumerate_FallsThroughToNextMethod(t *testing.T) {
	collection := &failingGetAllWithScroll{
		scrollOnly: scrollOnly{points: []any{samplePoint("a", "x"), samplePoint("b", "y")}},
	}
	s := newProbe(t, collection, PolicyStrict)

	points, err := s.Enumerate(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestProbingStore_Enumerate_ListIDsThenGetPoints(t *testing.T) {
	collection := &listAndGet{points: map[string]Point{
		"a": samplePoint("a", "x"),
		"b": samplePoint("b", "y"),
	}}
	s := newProbe(t, collection, PolicyLenient)

	points, err := s.Enumerate(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "a", points[0].ID)
	assert.Equal(t, []string{"a", "b"}, collection.asked)
}

// tupleScroller returns (points, cursor) as a two-element slice.
type tupleScroller struct {
	points []Point
}

func (s tupleScroller) ScrollPoints(context.Context, int) (any, error) {
	return []any{s.points, "next-cursor"}, nil
}

func TestProbingStore_Enumerate_TupleResult(t *testing.T) {
	collection := tupleScroller{points: []Point{samplePoint("a", "alpha"), samplePoint("b", "bravo"), samplePoint("c", "charlie")}}

	s := newProbe(t, collection, PolicyLenient)
	points, err := s.Enumerate(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "a", points[0].ID)
	assert.Equal(t, "charlie", points[2].PageContent())

	points, err = s.Enumerate(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestToPoints_TwoPointsAreNotATuple(t *testing.T) {
	points, err := toPoints([]any{samplePoint("a", "x"), samplePoint("b", "y")})
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "b", points[1].ID)
}

func TestProbingStore_Enumerate_MapShapedPoints(t *testing.T) {
	collection := &scrollOnly{points: []any{
		map[string]any{"id": 7, "page_content": "hi", "metadata": map[string]any{"source": "m.txt"}},
		map[string]any{"id": "x", "payload": map[string]any{"page_content": "nested"}},
	}}
	s := newProbe(t, collection, PolicyLenient)

	points, err := s.Enumerate(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "7", points[0].ID)
	assert.Equal(t, "hi", points[0].PageContent())
	assert.Equal(t, "m.txt", points[0].Metadata()["source"])
	assert.Equal(t, "nested", points[1].PageContent())
}

type searchChain struct {
	searchErr error
	queryHits []ScoredPoint
	calls     []string
}

func (s *searchChain) Search(context.Context, string, int, float32) (any, error) {
	s.calls = append(s.calls, "Search")
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []ScoredPoint{}, nil
}

func (s *searchChain) Query(context.Context, string, int, float32) (any, error) {
	s.calls = append(s.calls, "Query")
	return s.queryHits, nil
}

func (s *searchChain) SimilaritySearch(context.Context, string, int) (any, error) {
	s.calls = append(s.calls, "SimilaritySearch")
	return nil, errBoom
}

func TestProbingStore_Search(t *testing.T) {
	hit := ScoredPoint{Point: samplePoint("a", "alpha"), Score: 0.9}

	t.Run("empty result moves to next method", func(t *testing.T) {
		c := &searchChain{queryHits: []ScoredPoint{hit}}
		s := newProbe(t, c, PolicyLenient)

		results, err := s.Search(context.Background(), "alpha", 10, 0.3)
		require.NoError(t, err)
		assert.Equal(t, []ScoredPoint{hit}, results)
		assert.Equal(t, []string{"Search", "Query"}, c.calls)
	})

	t.Run("all failing or empty returns empty", func(t *testing.T) {
		c := &searchChain{searchErr: errBoom}
		s := newProbe(t, c, PolicyLenient)

		results, err := s.Search(context.Background(), "alpha", 10, 0.3)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Equal(t, []string{"Search", "Query", "SimilaritySearch"}, c.calls)
	})

	t.Run("no search method", func(t *testing.T) {
		s := newProbe(t, struct{}{}, PolicyLenient)
		_, err := s.Search(context.Background(), "alpha", 10, 0.3)
		assert.ErrorIs(t, err, ErrNoSearcher)
	})
}

// singleOnly deletes one point at a time and fails on the IDs in failOn.
type singleOnly struct {
	deleted []string
	failOn  map[string]bool
}

func (s *singleOnly) DeletePoint(_ context.Context, id string) error {
	if s.failOn[id] {
		return errBoom
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type failingBatchWithSingle struct {
	singleOnly
	batchCalls int
}

func (f *failingBatchWithSingle) DeletePoints(context.Context, []string) error {
	f.batchCalls++
	return errBoom
}

type variadicDeleter struct{ got []string }

func (v *variadicDeleter) DeletePoints(_ context.Context, ids ...string) error {
	v.got = ids
	return nil
}

type countingDeleter struct{}

func (countingDeleter) DeletePoints(_ context.Context, ids []string) (int, error) {
	return len(ids) - 1, nil
}

type idsDeleter struct{ got []string }

func (d *idsDeleter) DeletePointsByIDs(_ context.Context, ids []string) error {
	d.got = ids
	return nil
}

func TestProbingStore_DeleteByIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("empty ids is a no-op", func(t *testing.T) {
		s := newProbe(t, struct{}{}, PolicyLenient)
		n, err := s.DeleteByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("per-id fallback keeps earlier deletes", func(t *testing.T) {
		c := &singleOnly{failOn: map[string]bool{"b": true}}
		core, logs := observer.New(zapcore.WarnLevel)
		s, err := NewProbingStore(c, PolicyLenient, zap.New(core))
		require.NoError(t, err)

		n, err := s.DeleteByIDs(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"a", "c"}, c.deleted)
		assert.Equal(t, 1, logs.FilterMessage("failed to delete point").Len())
	})

	t.Run("failing batch falls back to per-id", func(t *testing.T) {
		c := &failingBatchWithSingle{}
		s := newProbe(t, c, PolicyLenient)

		n, err := s.DeleteByIDs(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, c.batchCalls)
		assert.Equal(t, []string{"a", "b"}, c.deleted)
	})

	t.Run("per-id total failure is an error", func(t *testing.T) {
		c := &singleOnly{failOn: map[string]bool{"a": true}}
		s := newProbe(t, c, PolicyLenient)

		_, err := s.DeleteByIDs(ctx, []string{"a"})
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("variadic signature", func(t *testing.T) {
		c := &variadicDeleter{}
		s := newProbe(t, c, PolicyLenient)

		n, err := s.DeleteByIDs(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"a", "b"}, c.got)
	})

	t.Run("counting signature reports backend count", func(t *testing.T) {
		s := newProbe(t, countingDeleter{}, PolicyLenient)
		n, err := s.DeleteByIDs(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("dedicated ids method", func(t *testing.T) {
		c := &idsDeleter{}
		s := newProbe(t, c, PolicyLenient)
		n, err := s.DeleteByIDs(ctx, []string{"z"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"z"}, c.got)
	})

	t.Run("no delete method", func(t *testing.T) {
		s := newProbe(t, struct{}{}, PolicyLenient)
		_, err := s.DeleteByIDs(ctx, []string{"a"})
		assert.ErrorIs(t, err, ErrNoDeleter)
	})

	t.Run("failing batch without fallback wraps the failure", func(t *testing.T) {
		s := newProbe(t, &struct{ failingBatch }{}, PolicyLenient)
		_, err := s.DeleteByIDs(ctx, []string{"a"})
		assert.ErrorIs(t, err, errBoom)
	})
}

type failingBatch struct{}

func (failingBatch) DeletePoints(context.Context, []string) error { return errBoom }

func TestProbingStore_DeleteByFilter(t *testing.T) {
	s := newProbe(t, struct{}{}, PolicyLenient)
	assert.ErrorIs(t, s.DeleteByFilter(context.Background(), nil), ErrNoFilterDelete)

	mem := NewMemoryCollection()
	require.NoError(t, mem.Upsert(context.Background(), []Point{samplePoint("a", "x")}))
	s = newProbe(t, mem, PolicyLenient)
	require.NoError(t, s.DeleteByFilter(context.Background(), nil))
	assert.Zero(t, mem.Len())
}

func TestParseEnumerationPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EnumerationPolicy
		wantErr bool
	}{
		{"", PolicyLenient, false},
		{"lenient", PolicyLenient, false},
		{"strict", PolicyStrict, false},
		{"loose", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEnumerationPolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
