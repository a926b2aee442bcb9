package ingestion_engine

import (
	"context"
	"log/slog"

	"github.com/markdave123-py/ragdesk/internal/core"
)

// IngestConfig tunes the pipeline.
//
// ChunkSize:    runes per retrieval chunk (e.g., 2000).
// ChunkOverlap: runes shared by consecutive chunks (e.g., 400).
// BatchSize:    how many chunks to embed in one request (e.g., 10).
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// SummaryJob is handed to the background summarizer once a document is stored.
type SummaryJob struct {
	TaskID     string
	DocumentID string
	FileName   string
	Text       string
}

// SummaryScheduler accepts background summary jobs without blocking.
type SummaryScheduler interface {
	Submit(job SummaryJob)
}

// TaskCreator registers a background task and returns its id.
type TaskCreator interface {
	Create(ctx context.Context, message, category, documentID string) (string, error)
}

// DocumentIngestor orchestrates the ingestion pipeline:
//
// docs:      persistence for document records.
// vectors:   vector index receiving chunk embeddings.
// embedder:  embedding provider (Gemini/OpenAI-compatible).
// extractor: file to text conversion.
// tasks:     task tracker for summary jobs.
// summaries: background summary runner.
// cfg:       runtime tuning knobs for the pipeline.
type DocumentIngestor struct {
	docs      core.DocumentStore
	vectors   core.VectorStore
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	tasks     TaskCreator
	summaries SummaryScheduler
	cfg       *IngestConfig
	log       *slog.Logger
}
