package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const taskColumns = `task_id, document_id, message, category, progress, status, is_read, created_at`

func (c *DatabaseClient) CreateTask(ctx context.Context, t *models.Task) error {
	if t == nil {
		return errors.New("nil task")
	}
	q := c.q(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := c.db.ExecContext(ctx, q,
		t.ID, t.DocumentID, t.Message, t.Category, t.Progress, t.Status, t.IsRead, toNanos(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(c.db.QueryRowContext(ctx, c.q(`SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return t, err
}

// UpdateTask always writes progress; status, message and category only when
// non-empty.
func (c *DatabaseClient) UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (bool, error) {
	q := c.q(`
		UPDATE tasks SET
			progress = ?,
			status   = CASE WHEN ? = '' THEN status   ELSE ? END,
			message  = CASE WHEN ? = '' THEN message  ELSE ? END,
			category = CASE WHEN ? = '' THEN category ELSE ? END
		WHERE task_id = ?
	`)
	res, err := c.db.ExecContext(ctx, q,
		u.Progress,
		u.Status, u.Status,
		u.Message, u.Message,
		u.Category, u.Category,
		id)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListTasks returns the newest tasks first.
func (c *DatabaseClient) ListTasks(ctx context.Context, limit int) ([]models.Task, error) {
	rows, err := c.db.QueryContext(ctx,
		c.q(`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (c *DatabaseClient) MarkTaskRead(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, c.q(`UPDATE tasks SET is_read = ? WHERE task_id = ?`), true, id)
	return err
}

// ClearTasks deletes read tasks that are no longer processing.
func (c *DatabaseClient) ClearTasks(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		c.q(`DELETE FROM tasks WHERE is_read = ? AND status <> ?`), true, models.StatusProcessing)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *DatabaseClient) FailProcessingTasks(ctx context.Context, suffix string) ([]models.Task, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, c.q(`SELECT `+taskColumns+` FROM tasks WHERE status = ?`), models.StatusProcessing)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	tasks, err := collectTasks(rows)
	rows.Close()
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if len(tasks) > 0 {
		_, err = tx.ExecContext(ctx, c.q(`
			UPDATE tasks SET status = ?, category = ?, message = message || ?
			WHERE status = ?
		`), models.StatusFailed, models.CategoryError, suffix, models.StatusProcessing)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("fail processing tasks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range tasks {
		tasks[i].Status = models.StatusFailed
		tasks[i].Category = models.CategoryError
		tasks[i].Message += suffix
	}
	return tasks, nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTask(r rowScanner) (*models.Task, error) {
	var (
		t       models.Task
		created int64
	)
	if err := r.Scan(&t.ID, &t.DocumentID, &t.Message, &t.Category, &t.Progress, &t.Status, &t.IsRead, &created); err != nil {
		return nil, err
	}
	t.CreatedAt = fromNanos(created)
	return &t, nil
}
