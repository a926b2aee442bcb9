package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/chat"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
	"github.com/markdave123-py/ragdesk/internal/services"
)

// ChatStreamer produces a reply as a fragment stream ending in the metrics
// trailer.
type ChatStreamer interface {
	Stream(ctx context.Context, req chat.Request) iter.Seq[string]
}

type ChatHandler struct {
	chat     ChatStreamer
	sessions *services.SessionService
	log      *slog.Logger
}

func NewChatHandler(c ChatStreamer, sessions *services.SessionService) *ChatHandler {
	return &ChatHandler{chat: c, sessions: sessions, log: logger.NewModuleLogger("api", "chat")}
}

type ChatRequest struct {
	SessionID      string        `json:"session_id"`
	CollectionName string        `json:"collection_name"`
	Messages       []models.Turn `json:"messages"`
	Stream         *bool         `json:"stream"`
}

type ChatResponse struct {
	Content    string  `json:"content"`
	TokenCount int     `json:"token_count"`
	TimeTaken  float64 `json:"time_taken"`
}

// Chat answers the latest message. The reply streams as plain text unless
// the request sets "stream": false.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.SessionID != "" {
		if err := h.sessions.RecordUserMessage(ctx, req.SessionID, req.Messages[len(req.Messages)-1]); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, err)
				return
			}
			h.log.Error("store user message", "session_id", req.SessionID, "error", err)
		}
	}

	reply := h.chat.Stream(ctx, chat.Request{Turns: req.Messages, Collection: req.CollectionName})

	var full strings.Builder
	if req.Stream == nil || *req.Stream {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		for frag := range reply {
			full.WriteString(frag)
			if _, err := w.Write([]byte(frag)); err != nil {
				h.log.Warn("client went away during reply", "error", err)
				break
			}
			flush(w)
		}
	} else {
		for frag := range reply {
			full.WriteString(frag)
		}
	}

	if req.SessionID != "" {
		// the reply is kept even when the client disconnected mid-stream
		if err := h.sessions.SaveReply(context.WithoutCancel(ctx), req.SessionID, full.String()); err != nil {
			h.log.Error("store reply", "session_id", req.SessionID, "error", err)
		}
	}

	if req.Stream != nil && !*req.Stream {
		m, _ := chat.ParseMetrics(full.String())
		writeJSON(w, http.StatusOK, ChatResponse{
			Content:    strings.TrimSpace(chat.StripMetrics(full.String())),
			TokenCount: m.Tokens,
			TimeTaken:  m.Seconds,
		})
	}
}
