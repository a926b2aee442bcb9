package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

func (c *DatabaseClient) CreateSession(ctx context.Context, s *models.ChatSession) error {
	if s == nil {
		return errors.New("nil session")
	}
	_, err := c.db.ExecContext(ctx,
		c.q(`INSERT INTO chat_sessions (id, title, is_archived, created_at) VALUES (?, ?, ?, ?)`),
		s.ID, s.Title, s.IsArchived, toNanos(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	row := c.db.QueryRowContext(ctx,
		c.q(`SELECT id, title, is_archived, created_at FROM chat_sessions WHERE id = ?`), id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return s, err
}

// ListSessions returns sessions newest first, optionally filtered by a
// case-insensitive title substring.
func (c *DatabaseClient) ListSessions(ctx context.Context, archived bool, search string) ([]models.ChatSession, error) {
	query := `SELECT id, title, is_archived, created_at FROM chat_sessions WHERE is_archived = ?`
	args := []any{archived}
	if search != "" {
		query += ` AND LOWER(title) LIKE LOWER(?)`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := c.db.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateSessionTitle(ctx context.Context, id, title string) error {
	return c.execOne(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
}

func (c *DatabaseClient) SetSessionArchived(ctx context.Context, id string, archived bool) error {
	return c.execOne(ctx, `UPDATE chat_sessions SET is_archived = ? WHERE id = ?`, archived, id)
}

// DeleteSession removes the session and its messages.
func (c *DatabaseClient) DeleteSession(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, c.q(`DELETE FROM chat_messages WHERE session_id = ?`), id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, c.q(`DELETE FROM chat_sessions WHERE id = ?`), id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	return tx.Commit()
}

func (c *DatabaseClient) AddMessage(ctx context.Context, m *models.ChatMessage) error {
	if m == nil {
		return errors.New("nil message")
	}
	err := c.db.QueryRowContext(ctx,
		c.q(`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		m.SessionID, m.Role, m.Content, toNanos(m.CreatedAt)).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages in arrival order.
func (c *DatabaseClient) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	rows, err := c.db.QueryContext(ctx,
		c.q(`SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY id ASC`),
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m       models.ChatMessage
			created int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = fromNanos(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountSessions(ctx context.Context) (int, int, error) {
	var total, archived int
	err := c.db.QueryRowContext(ctx,
		c.q(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_archived = ? THEN 1 ELSE 0 END), 0) FROM chat_sessions`), true).
		Scan(&total, &archived)
	return total, archived, err
}

func (c *DatabaseClient) execOne(ctx context.Context, query string, args ...any) error {
	res, err := c.db.ExecContext(ctx, c.q(query), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanSession(r rowScanner) (*models.ChatSession, error) {
	var (
		s       models.ChatSession
		created int64
	)
	if err := r.Scan(&s.ID, &s.Title, &s.IsArchived, &created); err != nil {
		return nil, err
	}
	s.CreatedAt = fromNanos(created)
	return &s, nil
}
