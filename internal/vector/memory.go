package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
)

// MemoryStore is an in-process store using brute-force cosine search.
// Contents are lost on restart.
type MemoryStore struct {
	collections map[string]map[string]models.StoredItem
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]models.StoredItem)}
}

// Type returns the backend name.
func (m *MemoryStore) Type() string {
	return BackendMemory
}

// Upsert inserts or replaces items. Every vector in a collection must share one dimension.
func (m *MemoryStore) Upsert(ctx context.Context, collection string, items []models.StoredItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]models.StoredItem)
		m.collections[collection] = coll
	}
	dim := collectionDim(coll)
	for _, it := range items {
		if len(it.Vector) == 0 {
			return fmt.Errorf("empty vector for %s", it.ID)
		}
		if dim == 0 {
			dim = len(it.Vector)
		}
		if len(it.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(it.Vector), dim)
		}
		coll[it.ID] = models.StoredItem{ID: it.ID, Vector: copyVector(it.Vector), Payload: it.Payload}
	}
	return nil
}

func collectionDim(coll map[string]models.StoredItem) int {
	for _, it := range coll {
		return len(it.Vector)
	}
	return 0
}

// Get returns the stored items among ids, in the order given. Unknown ids are skipped.
func (m *MemoryStore) Get(ctx context.Context, collection string, ids []string) ([]models.StoredItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.collections[collection]
	out := make([]models.StoredItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := coll[id]; ok {
			out = append(out, models.StoredItem{ID: it.ID, Vector: copyVector(it.Vector), Payload: it.Payload})
		}
	}
	return out, nil
}

// Delete removes ids from the collection. Unknown ids are ignored.
func (m *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collections[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// Search returns up to limit items by cosine similarity to query.
func (m *MemoryStore) Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]models.SearchHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.collections[collection]
	if limit <= 0 || len(coll) == 0 {
		return []models.SearchHit{}, nil
	}
	hits := make([]models.SearchHit, 0, len(coll))
	for _, it := range coll {
		if len(it.Vector) != len(query) {
			return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), len(it.Vector))
		}
		if !matchesFilter(it.Payload, filter) {
			continue
		}
		hits = append(hits, models.SearchHit{
			ID:         it.ID,
			Collection: collection,
			Score:      utils.Cosine(query, it.Vector),
			Payload:    it.Payload,
		})
	}
	return topK(hits, limit), nil
}

// Size returns the number of items in collection.
func (m *MemoryStore) Size(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
