package handlers

import (
	"net/http"
	"runtime"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/services"
)

type ProfileHandler struct {
	collections *services.CollectionService
	cfg         *config.Config
}

func NewProfileHandler(collections *services.CollectionService, cfg *config.Config) *ProfileHandler {
	return &ProfileHandler{collections: collections, cfg: cfg}
}

func (h *ProfileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collections.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Runtime reports the effective runtime settings after profile and env
// overrides were applied.
func (h *ProfileHandler) Runtime(w http.ResponseWriter, _ *http.Request) {
	c := h.cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": c.Profile,
		"effective": map[string]any{
			"chat_max_tokens":      c.Decoding.MaxTokens,
			"chat_history_window":  c.ChatHistoryWindow,
			"intent_classifier":    c.IntentClassifier,
			"retrieved_docs_count": c.RetrievedDocsCount,
			"summary_chunk_size":   c.SummaryChunkSize,
			"summary_max_chunks":   c.SummaryMaxChunks,
			"summary_workers":      c.SummaryWorkers,
			"chunk_size":           c.ChunkSize,
			"chunk_overlap":        c.ChunkOverlap,
			"embed_batch_size":     c.EmbedBatchSize,
		},
		"backends": map[string]string{
			"database": c.DBDriver,
			"vectors":  c.VectorBackend,
			"llm":      c.LLMBackend,
			"embed":    c.EmbedBackend,
			"archive":  c.ArchiveBackend,
		},
		"models": map[string]string{
			"generation": c.GenModel,
			"embedding":  c.EmbedModel,
		},
		"runtime": map[string]any{
			"go":   runtime.Version(),
			"cpus": runtime.NumCPU(),
		},
	})
}
