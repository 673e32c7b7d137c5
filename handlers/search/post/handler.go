package post

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/respond"
	"github.com/a-h/vectorserver/auth"
	"github.com/a-h/vectorserver/models"
	"github.com/a-h/vectorserver/store"
	"github.com/tmc/langchaingo/embeddings"
)

func New(log *slog.Logger, embedder embeddings.Embedder, vectors store.Store, namespace string) Handler {
	return Handler{
		log:       log,
		embedder:  embedder,
		vectors:   vectors,
		namespace: namespace,
	}
}

type Handler struct {
	log       *slog.Logger
	embedder  embeddings.Embedder
	vectors   store.Store
	namespace string
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.SearchPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		respond.WithError(w, "text is required", http.StatusBadRequest)
		return
	}
	k := req.KOrDefault()
	if k < 1 {
		respond.WithError(w, "k must be at least 1", http.StatusBadRequest)
		return
	}
	includeMetadata := req.IncludeMetadataOrDefault()

	embedding, err := h.embedder.EmbedQuery(r.Context(), req.Text)
	if err != nil {
		h.log.Error("failed to embed query", slog.Any("error", err))
		respond.WithError(w, "failed to embed query", http.StatusInternalServerError)
		return
	}

	matches, err := h.vectors.Query(r.Context(), store.QueryArgs{
		Namespace:       auth.Namespace(r, h.namespace),
		Values:          embedding,
		TopK:            k,
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		h.log.Error("failed to find nearest vectors", slog.Any("error", err))
		respond.WithError(w, "failed to find nearest vectors", http.StatusInternalServerError)
		return
	}

	resp := models.SearchPostResponse{
		Status:  models.StatusSuccess,
		Query:   req.Text,
		Results: make([]models.SearchResult, 0, len(matches)),
	}
	// The store's ranking is kept as-is.
	for _, m := range matches {
		if len(resp.Results) == k {
			break
		}
		result := models.SearchResult{
			ID:    m.ID,
			Score: m.Score,
		}
		if includeMetadata {
			result.Metadata = m.Metadata
		}
		resp.Results = append(resp.Results, result)
	}

	respond.WithJSON(w, resp, http.StatusOK)
}
