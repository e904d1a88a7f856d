package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kangae/internal/models"
)

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Upsert(ctx, "items", []models.StoredItem{
		{ID: "x", Vector: []float32{0.25, -1.5}, Payload: map[string]interface{}{"title": "river"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	n, err := s.Count(ctx, "items")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Count=%d, want 1", n)
	}
	got, err := s.Get(ctx, "items", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Vector[0] != 0.25 || got[0].Vector[1] != -1.5 {
		t.Errorf("vector round trip: %v", got[0].Vector)
	}
	if got[0].Payload["title"] != "river" {
		t.Errorf("payload round trip: %v", got[0].Payload)
	}
}

func TestSQLiteStore_SearchSkipsOtherDimensions(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "v.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	_ = s.Upsert(ctx, "items", []models.StoredItem{
		{ID: "two", Vector: []float32{1, 0}},
		{ID: "three", Vector: []float32{1, 0, 0}},
	})
	hits, err := s.Search(ctx, "items", []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "two" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSQLiteStore_RejectsEmptyVector(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "v.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	err = s.Upsert(context.Background(), "items", []models.StoredItem{{ID: "x"}})
	if err == nil {
		t.Error("expected error for empty vector")
	}
}
