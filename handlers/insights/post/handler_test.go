package post

import (
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
	"github.com/google/go-cmp/cmp"
)

var log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected []models.KeyInsight
	}{
		{
			name:   "each non-blank line is an insight",
			output: "Sleep improves focus.\n\n  Exercise helps planning.  \n",
			expected: []models.KeyInsight{
				{Text: "Sleep improves focus."},
				{Text: "Exercise helps planning."},
			},
		},
		{
			name:     "blank output returns an empty list",
			output:   " \n\n\t",
			expected: []models.KeyInsight{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fake.Generator{Output: tt.output}
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/key_insights", strings.NewReader(`{"content":"A paper about sleep."}`))
			New(log, g).ServeHTTP(w, r)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			var resp models.KeyInsightsPostResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.expected, resp.KeyInsights); diff != "" {
				t.Error(diff)
			}
			if len(g.Prompts) != 1 || !strings.Contains(g.Prompts[0], "Text: A paper about sleep.") {
				t.Errorf("unexpected prompts: %q", g.Prompts)
			}
		})
	}
	t.Run("missing content returns 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/key_insights", strings.NewReader(`{}`))
		New(log, &fake.Generator{}).ServeHTTP(w, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
	t.Run("generation failures return 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/key_insights", strings.NewReader(`{"content":"text"}`))
		New(log, &fake.Generator{Err: errors.New("out of memory")}).ServeHTTP(w, r)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
	})
}
