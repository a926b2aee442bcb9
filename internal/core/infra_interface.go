package core

import (
	"context"
	"errors"
	"io"

	"github.com/markdave123-py/ragdesk/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrCollectionNotFound = errors.New("collection not found")
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, collection string) ([]models.Document, error)
	UpdateDocumentSummary(ctx context.Context, id, summary string) error
	// ReplaceDocumentSummary swaps the summary only while it still equals from.
	ReplaceDocumentSummary(ctx context.Context, id, from, to string) (bool, error)
	DeleteDocumentsByCollection(ctx context.Context, collection string) (int64, error)
	CountDocuments(ctx context.Context) (int, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	// UpdateTask reports false when no task has the id.
	UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (bool, error)
	ListTasks(ctx context.Context, limit int) ([]models.Task, error)
	MarkTaskRead(ctx context.Context, id string) error
	ClearTasks(ctx context.Context) (int64, error)
	// FailProcessingTasks marks every processing task failed, appending
	// suffix to its message, and returns the affected tasks.
	FailProcessingTasks(ctx context.Context, suffix string) ([]models.Task, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, archived bool, search string) ([]models.ChatSession, error)
	UpdateSessionTitle(ctx context.Context, id, title string) error
	SetSessionArchived(ctx context.Context, id string, archived bool) error
	DeleteSession(ctx context.Context, id string) error
	AddMessage(ctx context.Context, m *models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	CountSessions(ctx context.Context) (total int, archived int, err error)
}

// DbClient defines all persistence operations your services will need.
// It abstracts Postgres/SQLite so higher layers never depend on a specific DB.
type DbClient interface {
	DocumentStore
	TaskStore
	SessionStore
	Close() error
}

// VectorStore indexes chunk embeddings per named collection.
// Upsert creates the collection when missing; Query on a missing collection
// returns ErrCollectionNotFound.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]models.CollectionInfo, error)
	Upsert(ctx context.Context, collection string, chunks []models.DocumentChunk) error
	Query(ctx context.Context, collection string, vec []float32, k int) ([]models.RetrievedChunk, error)
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
