package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a-h/vectorserver/models"
	"github.com/google/go-cmp/cmp"
)

func TestHealth(t *testing.T) {
	t.Run("the health response is decoded", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(models.HealthGetResponse{Status: "ok", Version: "v1.2.3"})
		})
		s := httptest.NewServer(mux)
		defer s.Close()

		resp, err := New(s.URL+"/", "").Health(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(models.HealthGetResponse{Status: "ok", Version: "v1.2.3"}, resp); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("a missing health endpoint is an error", func(t *testing.T) {
		s := httptest.NewServer(http.NotFoundHandler())
		defer s.Close()

		if _, err := New(s.URL, "").Health(context.Background()); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("server errors are returned", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer s.Close()

		if _, err := New(s.URL, "").Health(context.Background()); err == nil {
			t.Error("expected an error")
		}
	})
}
