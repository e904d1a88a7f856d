// Package vector stores item embeddings per collection and answers similarity queries.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/kangae/internal/models"
)

// Store holds embeddings grouped by collection. Scores are cosine similarities.
type Store interface {
	Upsert(ctx context.Context, collection string, items []models.StoredItem) error
	Get(ctx context.Context, collection string, ids []string) ([]models.StoredItem, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]models.SearchHit, error)
	Type() string
	Close() error
}

// matchesFilter reports whether every filter key is present in payload with an equal
// value. Non-string payload values are compared by their default formatting.
func matchesFilter(payload map[string]interface{}, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if s, isString := got.(string); isString {
			if s != want {
				return false
			}
			continue
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// topK sorts hits by descending score, breaking ties by id, and keeps the first k.
func topK(hits []models.SearchHit, k int) []models.SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
