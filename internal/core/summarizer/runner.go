package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/ragdesk/internal/core"
	ingestion "github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const DefaultWorkers = 2

type TextSummarizer interface {
	Summarize(ctx context.Context, text string, progress ProgressFunc) (string, error)
}

// TaskReporter is the slice of the task tracker the runner writes to.
type TaskReporter interface {
	Advance(ctx context.Context, taskID string, progress int)
	Finalize(ctx context.Context, taskID, status, message string)
}

var _ ingestion.SummaryScheduler = (*Runner)(nil)

// Runner executes summary jobs in the background, at most `workers` at a
// time. Jobs still running when ctx is canceled keep their task processing;
// the startup sweep fails them on the next boot.
type Runner struct {
	ctx        context.Context
	summarizer TextSummarizer
	docs       core.DocumentStore
	tasks      TaskReporter
	sem        *semaphore.Weighted
	mu         sync.Mutex
	wg         sync.WaitGroup
	log        *slog.Logger
}

func NewRunner(ctx context.Context, s TextSummarizer, docs core.DocumentStore, tasks TaskReporter, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		ctx:        ctx,
		summarizer: s,
		docs:       docs,
		tasks:      tasks,
		sem:        semaphore.NewWeighted(int64(workers)),
		log:        logger.NewModuleLogger("summarizer", "runner"),
	}
}

// Submit queues a job and returns immediately. Once the runner context is
// done jobs are dropped and their task stays processing.
func (r *Runner) Submit(job ingestion.SummaryJob) {
	r.mu.Lock()
	if err := r.ctx.Err(); err != nil {
		r.mu.Unlock()
		r.log.Warn("runner stopped, summary dropped", "task_id", job.TaskID, "file", job.FileName, "error", err)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.log.Warn("summary not started", "task_id", job.TaskID, "file", job.FileName, "error", err)
			return
		}
		defer r.sem.Release(1)
		r.run(job)
	}()
}

// Wait blocks until every submitted job has returned.
func (r *Runner) Wait() {
	// Submit cannot Add while Wait is draining
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) run(job ingestion.SummaryJob) {
	start := time.Now()
	log := r.log.With("task_id", job.TaskID, "document_id", job.DocumentID, "file", job.FileName)

	summary, err := r.summarizer.Summarize(r.ctx, job.Text, func(p int) {
		r.tasks.Advance(r.ctx, job.TaskID, p)
	})
	if r.ctx.Err() != nil {
		log.Warn("summary interrupted by shutdown")
		return
	}

	if err != nil {
		log.Error("summary failed", "error", err, "elapsed", time.Since(start))
		if uerr := r.docs.UpdateDocumentSummary(r.ctx, job.DocumentID, models.SummaryFailed); uerr != nil {
			log.Error("store failure marker", "error", uerr)
		}
		r.tasks.Finalize(r.ctx, job.TaskID, models.StatusFailed, fmt.Sprintf("Summary failed for %s", job.FileName))
		return
	}

	if err := r.docs.UpdateDocumentSummary(r.ctx, job.DocumentID, summary); err != nil {
		log.Error("store summary", "error", err)
		r.tasks.Finalize(r.ctx, job.TaskID, models.StatusFailed, fmt.Sprintf("Summary failed for %s", job.FileName))
		return
	}
	r.tasks.Finalize(r.ctx, job.TaskID, models.StatusCompleted, fmt.Sprintf("Summary ready: %s", job.FileName))
	log.Info("summary ready", "elapsed", time.Since(start))
}
