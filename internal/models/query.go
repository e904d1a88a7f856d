package models

import "fmt"

// SearchQuery is the body of POST /search.
type SearchQuery struct {
	Query       string            `json:"query"`
	Limit       int               `json:"limit,omitempty"`
	Collections []string          `json:"collections,omitempty"`
	Filter      map[string]string `json:"filter,omitempty"` // exact-match payload keys, e.g. {"userId": "42"}
}

// Validate ensures the search query has valid fields and sets defaults.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.Limit = clampLimit(q.Limit, 12)
	return nil
}

// SimilarQuery is the body of POST /similar.
type SimilarQuery struct {
	Text       string            `json:"text"`
	ExcludeID  string            `json:"exclude_id,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Filter     map[string]string `json:"filter,omitempty"`
}

// Validate ensures the query has text and a sane limit.
func (q *SimilarQuery) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	q.Limit = clampLimit(q.Limit, 5)
	return nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// UpsertItem is one text to embed and store.
type UpsertItem struct {
	ID         string                 `json:"id"`
	Text       string                 `json:"text"`
	Collection string                 `json:"collection,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// UpsertRequest is the body of POST /embed/upsert.
type UpsertRequest struct {
	Items []UpsertItem `json:"items"`
}

// IDsRequest is the body of POST /embed/get and /embed/delete.
type IDsRequest struct {
	IDs        []string `json:"ids"`
	Collection string   `json:"collection,omitempty"`
}

// StoredItem is a point read back from the vector store.
type StoredItem struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SearchHit is a single similarity match.
type SearchHit struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"collection"`
	Score      float64                `json:"score"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// SearchResponse is the result of /search and /similar.
type SearchResponse struct {
	Results   []SearchHit `json:"results"`
	Query     string      `json:"query,omitempty"`
	QueryTime int64       `json:"query_time_ms"`
}
