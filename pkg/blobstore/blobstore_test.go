package blobstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

func TestGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/index.csv" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth header = %s", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte("file,summary\n"))
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	blob, err := client.Get(context.Background(), "datasets", "index.csv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(blob) != "file,summary\n" {
		t.Fatalf("Get() = %q", blob)
	}
}

func TestGetMissingBlob(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Get(context.Background(), "datasets", "nope.csv"); !errors.Is(err, contractx.ErrBackendUnavailable) {
		t.Fatalf("Get() error = %v, want ErrBackendUnavailable", err)
	}
}

func TestGetValidatesArguments(t *testing.T) {
	t.Parallel()

	client, err := New(Config{Endpoint: "http://localhost:1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Get(context.Background(), "", "key"); err == nil {
		t.Fatal("Get() accepted empty container")
	}
	if _, err := client.Get(context.Background(), "container", ""); err == nil {
		t.Fatal("Get() accepted empty key")
	}
}
