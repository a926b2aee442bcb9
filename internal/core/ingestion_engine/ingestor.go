package ingestion_engine

import (
	"context"
	"iter"

	"github.com/markdave123-py/ragdesk/internal/models"
)

// Ingestor processes a batch of saved files into a collection, streaming
// progress events as it goes.
type Ingestor interface {
	Run(ctx context.Context, collection string, files []models.SavedFile, summarize bool) iter.Seq[ProgressEvent]
}

// Event statuses, in the order a successful file emits them.
const (
	EventLoading        = "loading"
	EventChunking       = "chunking"
	EventEmbedding      = "embedding"
	EventSaving         = "saving"
	EventSummaryStarted = "summary_started"
	EventCompleted      = "completed"
	EventError          = "error"
	EventAllCompleted   = "all_completed"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// ProgressEvent is one line of the upload progress stream.
type ProgressEvent struct {
	Status   string              `json:"status"`
	Message  string              `json:"message"`
	File     string              `json:"file,omitempty"`
	Progress string              `json:"progress,omitempty"`
	TaskID   string              `json:"task_id,omitempty"`
	Outcome  string              `json:"outcome,omitempty"`
	Results  []models.FileResult `json:"results,omitempty"`
}
