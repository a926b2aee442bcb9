package models

import (
	"time"
)

// Summary placeholders stored on a Document.
const (
	SummaryNotRequested = "No summary requested."
	SummaryInProgress   = "Summary generation in progress..."
	SummaryCancelled    = "Upload cancelled"
	SummaryFailed       = "Summary generation failed."
	SummaryEmpty        = "No content to summarize."
)

// Document represents one ingested source file in a collection.
type Document struct {
	ID             string    `db:"id" json:"id"`
	CollectionName string    `db:"collection_name" json:"collection_name"`
	FileName       string    `db:"file_name" json:"file_name"`     // original name
	StoredName     string    `db:"stored_name" json:"stored_name"` // token used in chunk ids
	StorageURL     string    `db:"storage_url" json:"storage_url"` // S3 URL, empty when not archived
	ContentType    string    `db:"content_type" json:"content_type"`
	Summary        string    `db:"summary" json:"summary"`
	ChunkCount     int       `db:"chunk_count" json:"chunk_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk represents one retrieval chunk of a document.
type DocumentChunk struct {
	ID           string    `db:"id" json:"id"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	Source       string    `db:"source" json:"source"`
	OriginalName string    `db:"original_name" json:"original_name"`
	Text         string    `db:"text" json:"text"`
	Embedding    []float32 `db:"embedding" json:"embedding,omitempty"`
	Position     int       `db:"position" json:"position"`
	TotalChunks  int       `db:"total_chunks" json:"total_chunks"`
	TokenCount   int       `db:"token_count" json:"token_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Metadata is the payload stored next to the vector in every backend.
func (c DocumentChunk) Metadata() map[string]any {
	return map[string]any{
		"source":           c.Source,
		"original_name":    c.OriginalName,
		"document_id":      c.DocumentID,
		"chunk_index":      c.Position,
		"total_chunks":     c.TotalChunks,
		"token_count":      c.TokenCount,
		"upload_timestamp": c.CreatedAt.Unix(),
	}
}

// RetrievedChunk is a similarity search hit.
type RetrievedChunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

// CollectionInfo describes one vector collection.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Task categories and statuses.
const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryError   = "error"

	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task tracks one background summarization job; it doubles as a notification.
type Task struct {
	ID         string    `db:"task_id" json:"task_id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Message    string    `db:"message" json:"message"`
	Category   string    `db:"category" json:"type"`
	Progress   int       `db:"progress" json:"progress"`
	Status     string    `db:"status" json:"status"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
}

// TaskUpdate carries optional changes applied together with a progress value.
type TaskUpdate struct {
	Progress int
	Status   string
	Message  string
	Category string
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one conversational message handed to the inference engine.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession represents one conversation.
type ChatSession struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	IsArchived bool      `db:"is_archived" json:"is_archived"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChatMessage represents an individual chat message (user or assistant).
type ChatMessage struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// SavedFile is an uploaded file already written to local storage.
type SavedFile struct {
	OriginalName string
	StoredName   string
	Path         string
	ContentType  string
	StorageURL   string
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Filename string `json:"file"`
	Status   string `json:"status"` // success | failed
	Error    string `json:"error,omitempty"`
	Chunks   int    `json:"chunks,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
}
