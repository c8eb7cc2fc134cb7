package vectorsearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

func TestSimilaritySearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/indexes/docs-index/docs/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2024-07-01" {
			t.Errorf("api-version = %s", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("api-key header = %s", r.Header.Get("api-key"))
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Search != "capital of France" || req.Top != 3 {
			t.Errorf("request = %+v", req)
		}

		_ = json.NewEncoder(w).Encode(searchResponse{Value: []searchHit{
			{Content: "Paris is the capital.", Metadata: map[string]string{"source": "geo.md"}},
			{Content: "France is in Europe."},
		}})
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, APIKey: "test-key", Index: "docs-index"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	docs, err := client.SimilaritySearch(context.Background(), "capital of France", 3)
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Content != "Paris is the capital." || docs[0].Metadata["source"] != "geo.md" {
		t.Fatalf("docs[0] = %+v", docs[0])
	}
}

func TestSimilaritySearchHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, APIKey: "test-key", Index: "missing"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.SimilaritySearch(context.Background(), "anything", 3); !errors.Is(err, contractx.ErrBackendUnavailable) {
		t.Fatalf("SimilaritySearch() error = %v, want ErrBackendUnavailable", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{APIKey: "k", Index: "i"}); err == nil {
		t.Fatal("New() accepted empty endpoint")
	}
	if _, err := New(Config{Endpoint: "http://x", Index: "i"}); err == nil {
		t.Fatal("New() accepted empty api key")
	}
	if _, err := New(Config{Endpoint: "http://x", APIKey: "k"}); err == nil {
		t.Fatal("New() accepted empty index")
	}
}
