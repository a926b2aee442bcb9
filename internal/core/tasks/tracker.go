package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const (
	ListLimit       = 50
	interruptedNote = " (interrupted)"
	persistTimeout  = 10 * time.Second
)

// Tracker records progress of background jobs. Progress writes never fail
// the caller: persistence errors are logged and dropped.
type Tracker struct {
	tasks core.TaskStore
	docs  core.DocumentStore
	log   *slog.Logger
}

func NewTracker(tasks core.TaskStore, docs core.DocumentStore) *Tracker {
	return &Tracker{
		tasks: tasks,
		docs:  docs,
		log:   logger.NewModuleLogger("tasks", "tracker"),
	}
}

// Create registers a processing task at progress 0 and returns its id.
func (t *Tracker) Create(ctx context.Context, message, category, documentID string) (string, error) {
	task := &models.Task{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Message:    message,
		Category:   category,
		Progress:   0,
		Status:     models.StatusProcessing,
		CreatedAt:  time.Now(),
	}
	if err := t.tasks.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return task.ID, nil
}

// Advance sets the progress of a task, leaving the other fields alone.
func (t *Tracker) Advance(ctx context.Context, taskID string, progress int) {
	t.Update(ctx, taskID, models.TaskUpdate{Progress: progress})
}

func (t *Tracker) Update(ctx context.Context, taskID string, u models.TaskUpdate) {
	if taskID == "" {
		return
	}
	u.Progress = clamp(u.Progress, 0, 100)

	// progress must land even when the caller is being torn down
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	found, err := t.tasks.UpdateTask(wctx, taskID, u)
	if err != nil {
		t.log.Warn("task update failed", "task_id", taskID, "progress", u.Progress, "error", err)
		return
	}
	if !found {
		t.log.Debug("task update for unknown task", "task_id", taskID)
	}
}

// Finalize moves a task to its terminal status.
func (t *Tracker) Finalize(ctx context.Context, taskID, status, message string) {
	u := models.TaskUpdate{Status: status, Message: message}
	switch status {
	case models.StatusCompleted:
		u.Progress = 100
		u.Category = models.CategorySuccess
	default:
		u.Category = models.CategoryError
		if cur, err := t.tasks.GetTask(ctx, taskID); err == nil {
			u.Progress = cur.Progress
		}
	}
	t.Update(ctx, taskID, u)
}

// RecoverOnStartup fails every task left processing by a previous run and
// cancels the placeholder summaries of their documents.
func (t *Tracker) RecoverOnStartup(ctx context.Context) (int, error) {
	interrupted, err := t.tasks.FailProcessingTasks(ctx, interruptedNote)
	if err != nil {
		return 0, fmt.Errorf("fail processing tasks: %w", err)
	}

	for _, task := range interrupted {
		if task.DocumentID == "" {
			continue
		}
		changed, err := t.docs.ReplaceDocumentSummary(ctx, task.DocumentID, models.SummaryInProgress, models.SummaryCancelled)
		if err != nil {
			t.log.Warn("cancel document summary failed", "document_id", task.DocumentID, "error", err)
			continue
		}
		if changed {
			t.log.Info("cancelled interrupted summary", "document_id", task.DocumentID, "task_id", task.ID)
		}
	}
	if len(interrupted) > 0 {
		t.log.Info("recovered interrupted tasks", "count", len(interrupted))
	}
	return len(interrupted), nil
}

func (t *Tracker) List(ctx context.Context) ([]models.Task, error) {
	return t.tasks.ListTasks(ctx, ListLimit)
}

func (t *Tracker) Get(ctx context.Context, taskID string) (*models.Task, error) {
	return t.tasks.GetTask(ctx, taskID)
}

func (t *Tracker) MarkRead(ctx context.Context, taskID string) error {
	return t.tasks.MarkTaskRead(ctx, taskID)
}

func (t *Tracker) Clear(ctx context.Context) (int64, error) {
	return t.tasks.ClearTasks(ctx)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
