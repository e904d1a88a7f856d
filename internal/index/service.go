// Package index embeds items into the vector store and answers similarity queries
// across collections.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/kangae/internal/embedding"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UpsertResult reports how many items were written and to which collections.
type UpsertResult struct {
	Upserted    int      `json:"upserted"`
	Collections []string `json:"collections"`
}

// Service ties an embedder to a vector store.
type Service struct {
	store             vector.Store
	embedder          embedding.Embedder // batches for upserts
	queryEmbedder     embedding.Embedder // usually cached; single texts for search
	defaultCollection string
	logger            *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithQueryEmbedder sets the embedder used for search and similar queries.
// Defaults to the upsert embedder.
func WithQueryEmbedder(e embedding.Embedder) ServiceOption {
	return func(s *Service) { s.queryEmbedder = e }
}

// NewService creates a service writing to defaultCollection when an item names none.
func NewService(store vector.Store, embedder embedding.Embedder, defaultCollection string, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:             store,
		embedder:          embedder,
		queryEmbedder:     embedder,
		defaultCollection: defaultCollection,
		logger:            logger.With(zap.String("component", "index")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying vector store.
func (s *Service) Store() vector.Store {
	return s.store
}

func (s *Service) collection(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultCollection
}

// Upsert embeds and stores items, grouped by collection. Collections are reported in
// first-seen order.
func (s *Service) Upsert(ctx context.Context, items []models.UpsertItem) (*UpsertResult, error) {
	if len(items) == 0 {
		return nil, models.NewClientError("items are required")
	}
	groups := make(map[string][]models.UpsertItem)
	var order []string
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, models.NewClientError("every item needs an id")
		}
		name := s.collection(it.Collection)
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], it)
	}

	for _, name := range order {
		group := groups[name]
		texts := make([]string, len(group))
		for i, it := range group {
			texts[i] = it.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		stored := make([]models.StoredItem, len(group))
		for i, it := range group {
			stored[i] = models.StoredItem{ID: it.ID, Vector: vectors[i], Payload: it.Payload}
		}
		if err := s.store.Upsert(ctx, name, stored); err != nil {
			return nil, fmt.Errorf("failed to upsert into %s: %w", name, err)
		}
		s.logger.Debug("upserted items", zap.String("collection", name), zap.Int("count", len(stored)))
	}
	return &UpsertResult{Upserted: len(items), Collections: order}, nil
}

// Get returns stored items for ids.
func (s *Service) Get(ctx context.Context, req *models.IDsRequest) ([]models.StoredItem, error) {
	if len(req.IDs) == 0 {
		return nil, models.NewClientError("ids are required")
	}
	items, err := s.store.Get(ctx, s.collection(req.Collection), req.IDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	return items, nil
}

// Delete removes ids and returns how many were requested.
func (s *Service) Delete(ctx context.Context, req *models.IDsRequest) (int, error) {
	if len(req.IDs) == 0 {
		return 0, models.NewClientError("ids are required")
	}
	if err := s.store.Delete(ctx, s.collection(req.Collection), req.IDs); err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	return len(req.IDs), nil
}

// Search embeds the query once and searches every requested collection concurrently.
// Hits are merged by descending score and cut to the query limit.
func (s *Service) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, models.NewClientError(err.Error())
	}
	collections := query.Collections
	if len(collections) == 0 {
		collections = []string{s.defaultCollection}
	}

	queryEmbedding, err := s.queryEmbedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, err
	}

	perCollection := make([][]models.SearchHit, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range collections {
		name := s.collection(name)
		g.Go(func() error {
			hits, err := s.store.Search(gctx, name, queryEmbedding, query.Limit, query.Filter)
			if err != nil {
				return fmt.Errorf("vector search failed for %s: %w", name, err)
			}
			perCollection[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.SearchResponse{
		Results:   mergeHits(perCollection, query.Limit),
		Query:     query.Query,
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}

// Similar finds items close to text in one collection, leaving out ExcludeID.
func (s *Service) Similar(ctx context.Context, query *models.SimilarQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, models.NewClientError(err.Error())
	}
	queryEmbedding, err := s.queryEmbedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if query.ExcludeID != "" {
		limit++
	}
	hits, err := s.store.Search(ctx, s.collection(query.Collection), queryEmbedding, limit, query.Filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]models.SearchHit, 0, query.Limit)
	for _, h := range hits {
		if h.ID == query.ExcludeID {
			continue
		}
		if len(results) == query.Limit {
			break
		}
		results = append(results, h)
	}
	return &models.SearchResponse{Results: results, QueryTime: time.Since(startTime).Milliseconds()}, nil
}

// mergeHits flattens per-collection hits, sorts by score descending and keeps limit.
// Ties keep collection order.
func mergeHits(groups [][]models.SearchHit, limit int) []models.SearchHit {
	var all []models.SearchHit
	for _, g := range groups {
		all = append(all, g...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = []models.SearchHit{}
	}
	return all
}

// Close closes the store. Embedders are owned by the caller.
func (s *Service) Close() error {
	return s.store.Close()
}
