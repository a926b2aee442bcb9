package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/ragdesk/internal/core/tasks"
)

// NotificationHandler exposes the task list to the UI, which polls it for
// background progress.
type NotificationHandler struct {
	tracker *tasks.Tracker
}

func NewNotificationHandler(tracker *tasks.Tracker) *NotificationHandler {
	return &NotificationHandler{tracker: tracker}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.tracker.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(list)})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if _, err := h.tracker.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}
