package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
)

func newTestService(t *testing.T, collection any) *Service {
	t.Helper()

	store, err := pointstore.NewProbingStore(collection, pointstore.PolicyLenient, zap.NewNop())
	require.NoError(t, err)
	svc, err := NewService(store, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func seededCollection(t *testing.T) *pointstore.MemoryCollection {
	t.Helper()

	c := pointstore.NewMemoryCollection()
	require.NoError(t, c.Upsert(context.Background(), []pointstore.Point{
		chunk("1", "alpha one", map[string]any{"source": "Report (2024).PDF", "when": 100.0, "chunk_index": 0}),
		chunk("2", "alpha two", map[string]any{"source": "Report (2024).PDF", "when": 200.0, "chunk_index": 1}),
		chunk("3", "bravo", map[string]any{"filename": "notes.md", "when": 300.0}),
		chunk("4", "charlie", map[string]any{"file_name": "Résumé.docx", "when": 50.0}),
	}))
	return c
}

// scanOnlyCollection enumerates but every search method fails.
type scanOnlyCollection struct {
	points []pointstore.Point
}

func (c *scanOnlyCollection) GetAllPoints(context.Context) (any, error) { return c.points, nil }

func (c *scanOnlyCollection) Search(context.Context, string, int, float32) (any, error) {
	return nil, errors.New("search exploded")
}

func (c *scanOnlyCollection) Query(context.Context, string, int, float32) (any, error) {
	return nil, errors.New("query exploded")
}

// flakyDeleteCollection deletes one point at a time and fails on listed IDs.
type flakyDeleteCollection struct {
	points  []pointstore.Point
	fail    map[string]bool
	deleted []string
}

func (c *flakyDeleteCollection) GetAllPoints(context.Context) (any, error) { return c.points, nil }

func (c *flakyDeleteCollection) DeletePoint(_ context.Context, id string) error {
	if c.fail[id] {
		return errors.New("locked")
	}
	c.deleted = append(c.deleted, id)
	return nil
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestService_List(t *testing.T) {
	svc := newTestService(t, seededCollection(t))
	ctx := context.Background()

	docs, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "notes.md", docs[0].Source)
	assert.Equal(t, "Report (2024).PDF", docs[1].Source)
	assert.Equal(t, 2, docs[1].ChunkCount())
	assert.Equal(t, 200.0, docs[1].When)

	docs, err = svc.List(ctx, " report ")
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestService_Chunks(t *testing.T) {
	svc := newTestService(t, seededCollection(t))
	ctx := context.Background()

	records, err := svc.Chunks(ctx, "", 2, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = svc.Chunks(ctx, "alpha", 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[0].ID, "newest first")
}

func TestService_Search_SubstringFallback(t *testing.T) {
	coll := &scanOnlyCollection{points: []pointstore.Point{
		chunk("A", "the alpha chunk", map[string]any{"source": "a.txt"}),
		chunk("B", "nothing here", map[string]any{"source": "b.txt"}),
	}}
	svc := newTestService(t, coll)

	before := testutil.ToFloat64(searchFallbackTotal)
	results, err := svc.Search(context.Background(), "alpha", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Point.ID)
	assert.Equal(t, FallbackScore, results[0].Score)
	assert.Equal(t, before+1, testutil.ToFloat64(searchFallbackTotal))
}

func TestService_Search_FallbackMatchesSourceAndCaps(t *testing.T) {
	svc := newTestService(t, seededCollection(t))
	ctx := context.Background()

	results, err := svc.Search(ctx, "REPORT", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].Point.ID, "enumeration order")

	results, err = svc.Search(ctx, "a", SearchOptions{K: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = svc.Search(ctx, "  ", SearchOptions{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestService_DeleteBySource(t *testing.T) {
	coll := seededCollection(t)
	svc := newTestService(t, coll)
	ctx := context.Background()

	n, err := svc.DeleteBySource(ctx, "report 2024")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, coll.Len())

	n, err = svc.DeleteBySource(ctx, "report 2024")
	require.NoError(t, err)
	assert.Zero(t, n, "second delete finds nothing")

	n, err = svc.DeleteBySource(ctx, "resume")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "matches file_name with accents stripped")

	n, err = svc.DeleteBySource(ctx, `"NOTES.md"`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, coll.Len())

	_, err = svc.DeleteBySource(ctx, "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestService_DeleteBySource_DottedNameKeepsOthers(t *testing.T) {
	coll := pointstore.NewMemoryCollection()
	require.NoError(t, coll.Upsert(context.Background(), []pointstore.Point{
		chunk("1", "meeting notes", map[string]any{"source": "my.notes.txt"}),
		chunk("2", "gdp figures", map[string]any{"source": "economy.pdf"}),
		chunk("3", "bones", map[string]any{"source": "anatomy_v2.docx"}),
	}))
	svc := newTestService(t, coll)

	n, err := svc.DeleteBySource(context.Background(), "my.notes.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, coll.Len())
}

func TestService_DeleteBySource_NoMatchSkipsDelete(t *testing.T) {
	coll := &flakyDeleteCollection{points: []pointstore.Point{
		chunk("1", "x", map[string]any{"source": "a.pdf"}),
	}}
	svc := newTestService(t, coll)

	n, err := svc.DeleteBySource(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, coll.deleted)
}

func TestService_DeleteBySource_PartialFailure(t *testing.T) {
	coll := &flakyDeleteCollection{
		points: []pointstore.Point{
			chunk("1", "x", map[string]any{"source": "a.pdf"}),
			chunk("2", "y", map[string]any{"source": "a.pdf"}),
			chunk("3", "z", map[string]any{"source": "a.pdf"}),
			chunk("", "no id", map[string]any{"source": "a.pdf"}),
		},
		fail: map[string]bool{"2": true},
	}
	svc := newTestService(t, coll)

	n, err := svc.DeleteBySource(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "3"}, coll.deleted, "earlier deletes are kept")
}

func TestService_DeleteBySource_AllFail(t *testing.T) {
	coll := &flakyDeleteCollection{
		points: []pointstore.Point{chunk("1", "x", map[string]any{"source": "a.pdf"})},
		fail:   map[string]bool{"1": true},
	}
	svc := newTestService(t, coll)

	_, err := svc.DeleteBySource(context.Background(), "a")
	assert.Error(t, err)
}

func TestService_ClearAll(t *testing.T) {
	coll := seededCollection(t)
	svc := newTestService(t, coll)
	ctx := context.Background()

	n, err := svc.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Zero(t, coll.Len())

	n, err = svc.ClearAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_ClearAll_FallsBackToIDs(t *testing.T) {
	coll := &flakyDeleteCollection{points: []pointstore.Point{chunk("1", "x", nil), chunk("2", "y", nil)}}
	svc := newTestService(t, coll)

	n, err := svc.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "2"}, coll.deleted)
}

// enumerateOnly can list points but has no delete method at all.
type enumerateOnly struct{ points []pointstore.Point }

func (c enumerateOnly) GetAllPoints(context.Context) (any, error) { return c.points, nil }

func TestService_ClearAll_Unsupported(t *testing.T) {
	svc := newTestService(t, enumerateOnly{points: []pointstore.Point{chunk("1", "x", nil)}})

	_, err := svc.ClearAll(context.Background())
	assert.ErrorIs(t, err, pointstore.ErrNoDeleter)
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(t, seededCollection(t))

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalDocuments)
	assert.Equal(t, 4, st.TotalChunks)
	assert.Equal(t, 50.0, st.FirstWhen)
	assert.Equal(t, 300.0, st.LastWhen)
}

func TestService_EnumerationFailure(t *testing.T) {
	svc := newTestService(t, struct{}{})

	_, err := svc.List(context.Background(), "")
	assert.ErrorIs(t, err, pointstore.ErrNoEnumerator)
}
