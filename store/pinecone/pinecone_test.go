package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a-h/vectorserver/store"
	"github.com/google/go-cmp/cmp"
)

type fakePinecone struct {
	t        *testing.T
	server   *httptest.Server
	upserted []upsertRequest
	queried  []queryRequest
	matches  []queryMatch
}

func newFakePinecone(t *testing.T) *fakePinecone {
	f := &fakePinecone{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes/{name}", func(w http.ResponseWriter, r *http.Request) {
		if !f.checkHeaders(w, r) {
			return
		}
		if r.PathValue("name") != "test-index" {
			http.Error(w, `{"error":{"code":"NOT_FOUND"}}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(IndexDescription{
			Name:      "test-index",
			Dimension: 3,
			Metric:    "cosine",
			Host:      f.server.URL,
			Status:    IndexStatus{Ready: true, State: "Ready"},
		})
	})
	mux.HandleFunc("POST /vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		if !f.checkHeaders(w, r) {
			return
		}
		var req upsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.upserted = append(f.upserted, req)
		json.NewEncoder(w).Encode(upsertResponse{UpsertedCount: len(req.Vectors)})
	})
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		if !f.checkHeaders(w, r) {
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.queried = append(f.queried, req)
		json.NewEncoder(w).Encode(queryResponse{Matches: f.matches, Namespace: req.Namespace})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePinecone) checkHeaders(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Api-Key") != "test-key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if r.Header.Get("X-Pinecone-API-Version") != APIVersion {
		f.t.Errorf("expected API version header %q, got %q", APIVersion, r.Header.Get("X-Pinecone-API-Version"))
	}
	return true
}

func TestNew(t *testing.T) {
	f := newFakePinecone(t)
	ctx := context.Background()

	t.Run("the API key is required", func(t *testing.T) {
		if _, err := New(ctx, "", "test-index"); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("the index name is required", func(t *testing.T) {
		if _, err := New(ctx, "test-key", ""); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("missing indexes return ErrIndexNotFound", func(t *testing.T) {
		_, err := New(ctx, "test-key", "missing", WithControlPlaneURL(f.server.URL))
		if !errors.Is(err, ErrIndexNotFound) {
			t.Errorf("expected ErrIndexNotFound, got %v", err)
		}
	})
	t.Run("invalid API keys are rejected", func(t *testing.T) {
		if _, err := New(ctx, "wrong-key", "test-index", WithControlPlaneURL(f.server.URL)); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("the index host is resolved from the control plane", func(t *testing.T) {
		c, err := New(ctx, "test-key", "test-index", WithControlPlaneURL(f.server.URL))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.host != f.server.URL {
			t.Errorf("expected host %q, got %q", f.server.URL, c.host)
		}
	})
	t.Run("hosts without a scheme use https", func(t *testing.T) {
		c, err := New(ctx, "test-key", "test-index", WithHost("test-index-abc123.svc.pinecone.io"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.host != "https://test-index-abc123.svc.pinecone.io" {
			t.Errorf("unexpected host %q", c.host)
		}
	})
}

func TestUpsert(t *testing.T) {
	f := newFakePinecone(t)
	c, err := New(context.Background(), "test-key", "test-index", WithHost(f.server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	err = c.Upsert(context.Background(), "user-1", store.Vector{
		ID:       "doc1",
		Values:   []float32{0.1, 0.2, 0.3},
		Metadata: map[string]any{"text": "hello world"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []upsertRequest{
		{
			Vectors: []vector{
				{ID: "doc1", Values: []float32{0.1, 0.2, 0.3}, Metadata: map[string]any{"text": "hello world"}},
			},
			Namespace: "user-1",
		},
	}
	if diff := cmp.Diff(expected, f.upserted); diff != "" {
		t.Error(diff)
	}
}

func TestQuery(t *testing.T) {
	f := newFakePinecone(t)
	f.matches = []queryMatch{
		{ID: "doc2", Score: 0.99, Metadata: map[string]any{"text": "b"}},
		{ID: "doc1", Score: 0.5, Metadata: map[string]any{"text": "a"}},
	}
	c, err := New(context.Background(), "test-key", "test-index", WithHost(f.server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	t.Run("matches are returned in store order", func(t *testing.T) {
		matches, err := c.Query(context.Background(), store.QueryArgs{
			Values:          []float32{1, 2, 3},
			TopK:            2,
			IncludeMetadata: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := []store.Match{
			{ID: "doc2", Score: 0.99, Metadata: map[string]any{"text": "b"}},
			{ID: "doc1", Score: 0.5, Metadata: map[string]any{"text": "a"}},
		}
		if diff := cmp.Diff(expected, matches); diff != "" {
			t.Error(diff)
		}
		lastQuery := f.queried[len(f.queried)-1]
		if lastQuery.TopK != 2 || !lastQuery.IncludeMetadata || lastQuery.IncludeValues {
			t.Errorf("unexpected query: %+v", lastQuery)
		}
	})
	t.Run("metadata is dropped when not requested", func(t *testing.T) {
		matches, err := c.Query(context.Background(), store.QueryArgs{
			Values: []float32{1, 2, 3},
			TopK:   5,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, m := range matches {
			if m.Metadata != nil {
				t.Errorf("expected no metadata, got %v", m.Metadata)
			}
		}
	})
	t.Run("results are capped at k", func(t *testing.T) {
		matches, err := c.Query(context.Background(), store.QueryArgs{
			Values: []float32{1, 2, 3},
			TopK:   1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(matches) != 1 {
			t.Errorf("expected 1 match, got %d", len(matches))
		}
	})
}
