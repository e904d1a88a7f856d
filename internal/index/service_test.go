package index

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kangae/internal/embedding"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *embedding.MockEmbedder, *vector.MemoryStore) {
	t.Helper()
	store := vector.NewMemoryStore()
	emb := embedding.NewMockEmbedder(16)
	return NewService(store, emb, "items", zap.NewNop()), emb, store
}

func TestUpsert_GroupsByCollection(t *testing.T) {
	svc, emb, store := newService(t)
	ctx := context.Background()

	res, err := svc.Upsert(ctx, []models.UpsertItem{
		{ID: "n1", Text: "river walk", Payload: map[string]interface{}{"userId": "1"}},
		{ID: "h1", Text: "water remembers", Collection: "highlights"},
		{ID: "n2", Text: "mountain air", Collection: "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, []string{"items", "highlights"}, res.Collections)
	assert.Equal(t, 2, store.Size("items"))
	assert.Equal(t, 1, store.Size("highlights"))
	assert.Equal(t, 2, emb.Calls(), "one batch per collection")

	got, err := svc.Get(ctx, &models.IDsRequest{IDs: []string{"n1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Payload["userId"])
	assert.Len(t, got[0].Vector, 16)
}

func TestUpsert_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Upsert(context.Background(), nil)
	assert.True(t, models.IsKind(err, models.KindClient))

	_, err = svc.Upsert(context.Background(), []models.UpsertItem{{Text: "no id"}})
	assert.True(t, models.IsKind(err, models.KindClient))
}

func TestSearch_MergesCollections(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, []models.UpsertItem{
		{ID: "a", Text: "quiet forest"},
		{ID: "b", Text: "loud city"},
		{ID: "c", Text: "quiet forest", Collection: "notes"},
	})
	require.NoError(t, err)

	resp, err := svc.Search(ctx, &models.SearchQuery{Query: "quiet forest", Limit: 2, Collections: []string{"items", "notes"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	ids := []string{resp.Results[0].ID, resp.Results[1].ID}
	assert.ElementsMatch(t, []string{"a", "c"}, ids, "exact matches from both collections win")
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.Equal(t, "quiet forest", resp.Query)
}

func TestSearch_DefaultsAndFilter(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, []models.UpsertItem{
		{ID: "a", Text: "one", Payload: map[string]interface{}{"userId": "1"}},
		{ID: "b", Text: "two", Payload: map[string]interface{}{"userId": "2"}},
	})
	require.NoError(t, err)

	resp, err := svc.Search(ctx, &models.SearchQuery{Query: "one", Filter: map[string]string{"userId": "2"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "b", resp.Results[0].ID)

	_, err = svc.Search(ctx, &models.SearchQuery{})
	assert.True(t, models.IsKind(err, models.KindClient))
}

func TestSearch_UsesQueryEmbedder(t *testing.T) {
	store := vector.NewMemoryStore()
	upsertEmb := embedding.NewMockEmbedder(8)
	queryEmb := embedding.NewMockEmbedder(8)
	svc := NewService(store, upsertEmb, "items", zap.NewNop(), WithQueryEmbedder(queryEmb))

	_, err := svc.Upsert(context.Background(), []models.UpsertItem{{ID: "a", Text: "x"}})
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), &models.SearchQuery{Query: "x"})
	require.NoError(t, err)
	_, err = svc.Similar(context.Background(), &models.SimilarQuery{Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, upsertEmb.Calls())
	assert.Equal(t, 2, queryEmb.Calls())
}

func TestSimilar_ExcludesID(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, []models.UpsertItem{
		{ID: "self", Text: "same text"},
		{ID: "x", Text: "other text"},
		{ID: "y", Text: "another text"},
	})
	require.NoError(t, err)

	resp, err := svc.Similar(ctx, &models.SimilarQuery{Text: "same text", ExcludeID: "self", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	for _, h := range resp.Results {
		assert.NotEqual(t, "self", h.ID)
	}

	resp, err = svc.Similar(ctx, &models.SimilarQuery{Text: "same text", Limit: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "self", resp.Results[0].ID)
}

func TestGetDelete(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, []models.UpsertItem{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}})
	require.NoError(t, err)

	n, err := svc.Delete(ctx, &models.IDsRequest{IDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Size("items"))

	_, err = svc.Delete(ctx, &models.IDsRequest{})
	assert.True(t, models.IsKind(err, models.KindClient))
	_, err = svc.Get(ctx, &models.IDsRequest{})
	assert.True(t, models.IsKind(err, models.KindClient))
}

type failingStore struct{ vector.Store }

func (failingStore) Search(context.Context, string, []float32, int, map[string]string) ([]models.SearchHit, error) {
	return nil, errors.New("boom")
}

func TestSearch_StoreErrorSurfaces(t *testing.T) {
	svc := NewService(failingStore{vector.NewMemoryStore()}, embedding.NewMockEmbedder(4), "items", zap.NewNop())
	_, err := svc.Search(context.Background(), &models.SearchQuery{Query: "q", Collections: []string{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMergeHits(t *testing.T) {
	got := mergeHits([][]models.SearchHit{
		{{ID: "a", Score: 0.2}, {ID: "b", Score: 0.9}},
		{{ID: "c", Score: 0.5}},
	}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.NotNil(t, mergeHits(nil, 5))
}
