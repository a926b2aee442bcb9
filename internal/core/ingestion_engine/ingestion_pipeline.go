package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/tokenizer"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

var _ Ingestor = (*DocumentIngestor)(nil)

var errNoText = errors.New("No text extracted")

// NewDocumentIngestor wires the pipeline. summaries may be nil when no
// background summarization is available; summarize requests then store the
// not-requested placeholder.
func NewDocumentIngestor(
	docs core.DocumentStore,
	vectors core.VectorStore,
	emb core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	tasks TaskCreator,
	summaries SummaryScheduler,
	cfg *IngestConfig,
) *DocumentIngestor {
	if cfg == nil {
		cfg = &IngestConfig{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &DocumentIngestor{
		docs: docs, vectors: vectors, embedder: emb, extractor: extractor,
		tasks: tasks, summaries: summaries, cfg: cfg,
		log: logger.NewModuleLogger("ingestion", "pipeline"),
	}
}

// Run ingests files strictly in order. A failing file is recorded and the
// batch moves on; the stream always ends with one all_completed event unless
// the consumer stops early.
func (i *DocumentIngestor) Run(ctx context.Context, collection string, files []models.SavedFile, summarize bool) iter.Seq[ProgressEvent] {
	return func(yield func(ProgressEvent) bool) {
		results := make([]models.FileResult, 0, len(files))

		for idx, f := range files {
			prefix := fmt.Sprintf("[%d/%d]", idx+1, len(files))
			res, ok := i.processOne(ctx, collection, f, prefix, summarize, yield)
			if !ok {
				return
			}
			results = append(results, res)
		}

		yield(ProgressEvent{Status: EventAllCompleted, Message: "All files processed.", Results: results})
	}
}

// processOne runs extract, chunk, embed, index and record for one file. The
// second return value is false once the consumer has stopped listening.
func (i *DocumentIngestor) processOne(
	ctx context.Context,
	collection string,
	f models.SavedFile,
	prefix string,
	summarize bool,
	yield func(ProgressEvent) bool,
) (models.FileResult, bool) {
	emit := func(ev ProgressEvent) bool {
		ev.File = f.OriginalName
		return yield(ev)
	}
	fail := func(err error, msg string) (models.FileResult, bool) {
		i.log.Error("ingestion failed", "file", f.OriginalName, "collection", collection, "error", err)
		res := models.FileResult{Filename: f.OriginalName, Status: OutcomeFailed, Error: err.Error()}
		return res, emit(ProgressEvent{Status: EventError, Message: prefix + " " + msg, Outcome: OutcomeFailed})
	}

	if !emit(ProgressEvent{Status: EventLoading, Message: prefix + " Upload Started..."}) {
		return models.FileResult{}, false
	}

	text := i.extractor.Extract(ctx, f.Path)
	if strings.TrimSpace(text) == "" {
		return fail(errNoText, "Failed to extract text")
	}

	if !emit(ProgressEvent{Status: EventLoading, Message: fmt.Sprintf("%s Found %d characters in document", prefix, len([]rune(text)))}) {
		return models.FileResult{}, false
	}

	pieces := SplitText(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	if !emit(ProgressEvent{Status: EventChunking, Message: fmt.Sprintf("%s Chunked into %d documents", prefix, len(pieces))}) {
		return models.FileResult{}, false
	}

	docID := uuid.NewString()
	uploadedAt := time.Now().UTC()
	chunks := make([]models.DocumentChunk, len(pieces))
	for n, p := range pieces {
		chunks[n] = models.DocumentChunk{
			ID:           fmt.Sprintf("%s_%d", f.StoredName, n),
			DocumentID:   docID,
			Source:       f.StoredName,
			OriginalName: f.OriginalName,
			Text:         p,
			Position:     n,
			TotalChunks:  len(pieces),
			TokenCount:   tokenizer.Count(p),
			CreatedAt:    uploadedAt,
		}
	}

	// embed in batches, reporting after each one
	total := len(chunks)
	for start := 0; start < total; start += i.cfg.BatchSize {
		end := min(start+i.cfg.BatchSize, total)
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}

		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fail(fmt.Errorf("embed chunks: %w", err), "Error: "+err.Error())
		}
		if len(vecs) != len(texts) {
			err := fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
			return fail(err, "Error: "+err.Error())
		}
		for k, v := range vecs {
			chunks[start+k].Embedding = v
		}

		if !emit(ProgressEvent{
			Status:   EventEmbedding,
			Progress: fmt.Sprintf("%d/%d", end, total),
			Message:  fmt.Sprintf("%s Embedding %d/%d documents", prefix, end, total),
		}) {
			return models.FileResult{}, false
		}
	}

	if !emit(ProgressEvent{Status: EventSaving, Message: prefix + " Saving to vector store..."}) {
		return models.FileResult{}, false
	}
	if err := i.vectors.Upsert(ctx, collection, chunks); err != nil {
		return fail(fmt.Errorf("index chunks: %w", err), "Error: "+err.Error())
	}

	wantSummary := summarize && i.summaries != nil && i.tasks != nil
	doc := &models.Document{
		ID:             docID,
		CollectionName: collection,
		FileName:       f.OriginalName,
		StoredName:     f.StoredName,
		StorageURL:     f.StorageURL,
		ContentType:    f.ContentType,
		Summary:        models.SummaryNotRequested,
		ChunkCount:     total,
		CreatedAt:      uploadedAt,
	}
	if wantSummary {
		doc.Summary = models.SummaryInProgress
	}
	if err := i.docs.CreateDocument(ctx, doc); err != nil {
		return fail(fmt.Errorf("record document: %w", err), "Error: "+err.Error())
	}

	res := models.FileResult{Filename: f.OriginalName, Status: OutcomeSuccess, Chunks: total}

	if wantSummary {
		taskID, err := i.startSummary(ctx, doc, text)
		if err != nil {
			i.log.Error("could not start summary", "file", f.OriginalName, "error", err)
		} else {
			res.TaskID = taskID
			if !emit(ProgressEvent{
				Status:  EventSummaryStarted,
				Message: "Summarization started for " + f.OriginalName,
				TaskID:  taskID,
			}) {
				return res, false
			}
		}
	}

	i.log.Info("ingested document", "file", f.OriginalName, "collection", collection, "chunks", total)
	return res, emit(ProgressEvent{Status: EventCompleted, Message: prefix + " Done!", Outcome: OutcomeSuccess})
}

// startSummary registers the task and hands the job to the background runner.
func (i *DocumentIngestor) startSummary(ctx context.Context, doc *models.Document, text string) (string, error) {
	taskID, err := i.tasks.Create(ctx, "Summarization started for "+doc.FileName, models.CategoryInfo, doc.ID)
	if err != nil {
		if uerr := i.docs.UpdateDocumentSummary(ctx, doc.ID, models.SummaryFailed); uerr != nil {
			i.log.Warn("could not mark summary failed", "document_id", doc.ID, "error", uerr)
		}
		return "", err
	}
	i.summaries.Submit(SummaryJob{TaskID: taskID, DocumentID: doc.ID, FileName: doc.FileName, Text: text})
	return taskID, nil
}
