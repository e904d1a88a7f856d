package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/kangae/internal/models"
)

func TestClientPost(t *testing.T) {
	var gotSecret, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(SecretHeader)
		gotReqID = r.Header.Get("X-Request-Id")
		if r.URL.Path != "/embed" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req models.EmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(models.EmbedResponse{Model: "e5", Vectors: make([][]float32, len(req.Texts))})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "s3cret")
	var out models.EmbedResponse
	if err := c.Post(context.Background(), "/embed", models.EmbedRequest{Texts: []string{"a", "b"}}, &out); err != nil {
		t.Fatal(err)
	}
	if out.Model != "e5" || len(out.Vectors) != 2 {
		t.Errorf("decoded %+v", out)
	}
	if gotSecret != "s3cret" {
		t.Errorf("secret header = %q", gotSecret)
	}
	if len(gotReqID) != 8 {
		t.Errorf("request id = %q, want 8 chars", gotReqID)
	}
}

func TestClientPost_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Post(context.Background(), "/embed", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "unauthorized" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestClientPost_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Post(context.Background(), "/x", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "boom" {
		t.Errorf("got %v", err)
	}
}
