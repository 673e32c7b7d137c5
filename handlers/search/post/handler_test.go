package post

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/a-h/vectorserver/internal/fake"
	"github.com/a-h/vectorserver/models"
	"github.com/a-h/vectorserver/store"
	"github.com/a-h/vectorserver/store/memory"
	"github.com/google/go-cmp/cmp"
)

var log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// staticStore returns fixed matches, in the given order, and records queries.
type staticStore struct {
	matches []store.Match
	queries []store.QueryArgs
	err     error
}

func (s *staticStore) Upsert(ctx context.Context, namespace string, v store.Vector) error {
	return nil
}

func (s *staticStore) Query(ctx context.Context, args store.QueryArgs) ([]store.Match, error) {
	s.queries = append(s.queries, args)
	return s.matches, s.err
}

func search(t *testing.T, h http.Handler, body string) (code int, resp models.SearchPostResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		return w.Code, resp
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, resp
}

func TestHandler(t *testing.T) {
	matches := []store.Match{
		{ID: "b", Score: 0.4, Metadata: map[string]any{"text": "b"}},
		{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "a"}},
	}

	t.Run("k defaults to 5 and metadata is included by default", func(t *testing.T) {
		s := &staticStore{matches: matches}
		code, resp := search(t, New(log, &fake.Embedder{}, s, ""), `{"text":"hello"}`)
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if s.queries[0].TopK != 5 || !s.queries[0].IncludeMetadata {
			t.Errorf("unexpected query args: %+v", s.queries[0])
		}
		expected := models.SearchPostResponse{
			Status: "success",
			Query:  "hello",
			Results: []models.SearchResult{
				{ID: "b", Score: 0.4, Metadata: map[string]any{"text": "b"}},
				{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "a"}},
			},
		}
		if diff := cmp.Diff(expected, resp); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("metadata can be excluded", func(t *testing.T) {
		s := &staticStore{matches: matches}
		code, resp := search(t, New(log, &fake.Embedder{}, s, ""), `{"text":"hello","k":2,"include_metadata":false}`)
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if s.queries[0].IncludeMetadata {
			t.Error("expected metadata not to be requested")
		}
		for _, r := range resp.Results {
			if r.Metadata != nil {
				t.Errorf("expected no metadata, got %v", r.Metadata)
			}
		}
	})
	t.Run("no more than k results are returned", func(t *testing.T) {
		s := &staticStore{matches: matches}
		_, resp := search(t, New(log, &fake.Embedder{}, s, ""), `{"text":"hello","k":1}`)
		if len(resp.Results) != 1 || resp.Results[0].ID != "b" {
			t.Errorf("expected only the first store result, got %v", resp.Results)
		}
	})
	t.Run("an empty index returns an empty list", func(t *testing.T) {
		code, resp := search(t, New(log, &fake.Embedder{}, memory.New(), ""), `{"text":"hello"}`)
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Results == nil || len(resp.Results) != 0 {
			t.Errorf("expected an empty results array, got %#v", resp.Results)
		}
	})

	invalid := []struct {
		name string
		body string
	}{
		{name: "invalid JSON", body: `{`},
		{name: "missing text", body: `{"k":1}`},
		{name: "zero k", body: `{"text":"hello","k":0}`},
		{name: "negative k", body: `{"text":"hello","k":-1}`},
		{name: "non-integer k", body: `{"text":"hello","k":"five"}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name+" returns 400", func(t *testing.T) {
			code, _ := search(t, New(log, &fake.Embedder{}, &staticStore{}, ""), tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", code)
			}
		})
	}

	t.Run("store failures return 500", func(t *testing.T) {
		s := &staticStore{err: errors.New("connection refused")}
		if code, _ := search(t, New(log, &fake.Embedder{}, s, ""), `{"text":"hello"}`); code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", code)
		}
	})
	t.Run("embedding failures return 500", func(t *testing.T) {
		e := &fake.Embedder{Err: errors.New("model not loaded")}
		if code, _ := search(t, New(log, e, &staticStore{}, ""), `{"text":"hello"}`); code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", code)
		}
	})
}
