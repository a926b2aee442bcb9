package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/services"
)

const maxUploadMemory = 64 << 20

type DocumentHandler struct {
	docs *services.DocumentService
	log  *slog.Logger
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs, log: logger.NewModuleLogger("api", "documents")}
}

// Upload saves the files of a multipart batch, then streams ingestion
// progress as NDJSON, one event per line.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	collection := services.SanitizeCollectionName(r.FormValue("collection_name"))
	if collection == "" {
		http.Error(w, "collection_name is required", http.StatusBadRequest)
		return
	}
	summarize := strings.EqualFold(strings.TrimSpace(r.FormValue("summarize")), "true")

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("read %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		defer f.Close()
		uploads = append(uploads, services.Upload{Name: fh.Filename, ContentType: contentType(fh), Body: f})
	}

	saved, err := h.docs.Save(r.Context(), collection, uploads)
	if err != nil {
		h.log.Error("save uploads", "collection", collection, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.log.Info("upload batch", "collection", collection, "files", len(saved), "summarize", summarize)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range h.docs.Ingest(r.Context(), collection, saved, summarize) {
		if err := enc.Encode(ev); err != nil {
			h.log.Warn("client went away during upload", "error", err)
			return
		}
		flush(w)
	}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context(), r.URL.Query().Get("collection"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	rc, doc, err := h.docs.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("download interrupted", "document_id", doc.ID, "error", err)
	}
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
