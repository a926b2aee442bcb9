package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/ragdesk/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *SessionHandler) Archived(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.Archived(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.sessions.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type sessionPatch struct {
	Title      *string `json:"title"`
	Archive    *bool   `json:"archive"`
	IsArchived *bool   `json:"is_archived"`
}

// Update renames and/or archives a session. Both archive and is_archived
// are accepted; is_archived wins when both are set.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p sessionPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if p.Title != nil {
		if err := h.sessions.Rename(ctx, id, *p.Title); err != nil {
			writeError(w, err)
			return
		}
	}
	for _, v := range []*bool{p.Archive, p.IsArchived} {
		if v == nil {
			continue
		}
		if err := h.sessions.SetArchived(ctx, id, *v); err != nil {
			writeError(w, err)
			return
		}
	}
	writeOK(w)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
