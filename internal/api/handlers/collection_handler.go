package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/services"
)

type CollectionHandler struct {
	collections *services.CollectionService
	log         *slog.Logger
}

func NewCollectionHandler(collections *services.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections, log: logger.NewModuleLogger("api", "collections")}
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.collections.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	name, err := h.collections.Create(r.Context(), body.Name)
	if err != nil {
		h.log.Warn("create collection", "name", body.Name, "error", err)
		writeError(w, err)
		return
	}
	h.log.Info("collection created", "name", name, "requested", body.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "name": name})
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.collections.Delete(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	h.log.Info("collection deleted", "name", name)
	writeOK(w)
}

func (h *CollectionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.collections.Summary(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
