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
	var req models.EmbedPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		respond.WithError(w, "id is required", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		respond.WithError(w, "text is required", http.StatusBadRequest)
		return
	}

	embedding, err := h.embedder.EmbedQuery(r.Context(), req.Text)
	if err != nil {
		h.log.Error("failed to embed text", slog.Any("error", err))
		respond.WithError(w, "failed to embed text", http.StatusInternalServerError)
		return
	}

	metadata := map[string]any{"text": req.Text}
	namespace := auth.Namespace(r, h.namespace)
	err = h.vectors.Upsert(r.Context(), namespace, store.Vector{
		ID:       req.ID,
		Values:   embedding,
		Metadata: metadata,
	})
	if err != nil {
		h.log.Error("failed to upsert vector", slog.String("id", req.ID), slog.Any("error", err))
		respond.WithError(w, "failed to store vector", http.StatusInternalServerError)
		return
	}
	h.log.Debug("vector upserted", slog.String("namespace", namespace), slog.String("id", req.ID), slog.Int("dimensions", len(embedding)))

	respond.WithJSON(w, models.EmbedPostResponse{
		Status:   models.StatusSuccess,
		ID:       req.ID,
		Metadata: metadata,
	}, http.StatusOK)
}
