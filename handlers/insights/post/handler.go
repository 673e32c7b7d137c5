package post

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/respond"
	"github.com/a-h/vectorserver/generate"
	"github.com/a-h/vectorserver/models"
)

func New(log *slog.Logger, generator generate.Generator) Handler {
	return Handler{
		log:       log,
		generator: generator,
	}
}

// Handler extracts key insights from content. Generation is sampled, so
// the same content can produce different insights.
type Handler struct {
	log       *slog.Logger
	generator generate.Generator
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.KeyInsightsPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		respond.WithError(w, "content is required", http.StatusBadRequest)
		return
	}

	output, err := h.generator.Generate(r.Context(), generate.InsightsPrompt(req.Content))
	if err != nil {
		h.log.Error("failed to generate content", slog.Any("error", err))
		respond.WithError(w, "failed to generate content", http.StatusInternalServerError)
		return
	}

	lines := generate.Lines(output)
	resp := models.KeyInsightsPostResponse{
		KeyInsights: make([]models.KeyInsight, len(lines)),
	}
	for i, line := range lines {
		resp.KeyInsights[i] = models.KeyInsight{Text: line}
	}
	respond.WithJSON(w, resp, http.StatusOK)
}
