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

type failingStore struct{}

func (failingStore) Upsert(ctx context.Context, namespace string, v store.Vector) error {
	return errors.New("index not found")
}

func (failingStore) Query(ctx context.Context, args store.QueryArgs) ([]store.Match, error) {
	return nil, errors.New("index not found")
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(body))
	h.ServeHTTP(w, r)
	return w
}

func TestHandler(t *testing.T) {
	t.Run("the text is embedded and stored", func(t *testing.T) {
		vectors := memory.New()
		h := New(log, &fake.Embedder{}, vectors, "")
		w := post(h, `{"id":"doc1","text":"hello world"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp models.EmbedPostResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		expected := models.EmbedPostResponse{
			Status:   "success",
			ID:       "doc1",
			Metadata: map[string]any{"text": "hello world"},
		}
		if diff := cmp.Diff(expected, resp); diff != "" {
			t.Error(diff)
		}
		if vectors.Len("") != 1 {
			t.Errorf("expected 1 stored vector, got %d", vectors.Len(""))
		}
	})
	t.Run("the configured namespace is used", func(t *testing.T) {
		vectors := memory.New()
		h := New(log, &fake.Embedder{}, vectors, "docs")
		if w := post(h, `{"id":"doc1","text":"hello world"}`); w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if vectors.Len("docs") != 1 {
			t.Errorf("expected the vector in the docs namespace")
		}
	})

	invalid := []struct {
		name string
		body string
	}{
		{name: "invalid JSON", body: `{"id":`},
		{name: "missing id", body: `{"text":"hello world"}`},
		{name: "missing text", body: `{"id":"doc1"}`},
		{name: "wrong type", body: `{"id":1,"text":"hello world"}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name+" returns 400", func(t *testing.T) {
			e := &fake.Embedder{}
			w := post(New(log, e, memory.New(), ""), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			if e.Calls != 0 {
				t.Errorf("expected the embedder not to be called")
			}
		})
	}

	t.Run("embedding failures return 500", func(t *testing.T) {
		h := New(log, &fake.Embedder{Err: errors.New("model not loaded")}, memory.New(), "")
		if w := post(h, `{"id":"doc1","text":"hello world"}`); w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
	})
	t.Run("store failures return 500", func(t *testing.T) {
		h := New(log, &fake.Embedder{}, failingStore{}, "")
		if w := post(h, `{"id":"doc1","text":"hello world"}`); w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
	})
}
