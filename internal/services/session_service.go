package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/chat"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const (
	DefaultSessionTitle = "New Chat"
	titleLength         = 50
)

type SessionService struct {
	store core.SessionStore
}

func NewSessionService(store core.SessionStore) *SessionService {
	return &SessionService{store: store}
}

func (s *SessionService) Create(ctx context.Context, title string) (*models.ChatSession, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultSessionTitle
	}
	sess := &models.ChatSession{ID: uuid.NewString(), Title: title, CreatedAt: time.Now()}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	return s.store.GetSession(ctx, id)
}

// List returns the active sessions whose title contains search.
func (s *SessionService) List(ctx context.Context, search string) ([]models.ChatSession, error) {
	return s.store.ListSessions(ctx, false, strings.TrimSpace(search))
}

func (s *SessionService) Archived(ctx context.Context) ([]models.ChatSession, error) {
	return s.store.ListSessions(ctx, true, "")
}

func (s *SessionService) Rename(ctx context.Context, id, title string) error {
	return s.store.UpdateSessionTitle(ctx, id, title)
}

func (s *SessionService) SetArchived(ctx context.Context, id string, archived bool) error {
	return s.store.SetSessionArchived(ctx, id, archived)
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteSession(ctx, id)
}

func (s *SessionService) History(ctx context.Context, id string) ([]models.ChatMessage, error) {
	return s.store.ListMessages(ctx, id)
}

// RecordUserMessage stores the turn under its normalized role and, on the first message of a session
// that still has the default title, names the session after it.
func (s *SessionService) RecordUserMessage(ctx context.Context, sessionID string, turn models.Turn) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	role, ok := chat.NormalizeRole(turn.Role)
	if !ok {
		role = models.RoleUser
	}
	if err := s.store.AddMessage(ctx, &models.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   turn.Content,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	if sess.Title != DefaultSessionTitle {
		return nil
	}
	return s.store.UpdateSessionTitle(ctx, sessionID, TitleFrom(turn.Content))
}

// SaveReply stores the assistant reply without its metrics trailer. Empty
// replies are not stored.
func (s *SessionService) SaveReply(ctx context.Context, sessionID, reply string) error {
	clean := strings.TrimSpace(chat.StripMetrics(reply))
	if clean == "" {
		return nil
	}
	return s.store.AddMessage(ctx, &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   clean,
		CreatedAt: time.Now(),
	})
}

// TitleFrom cuts a message down to a session title.
func TitleFrom(message string) string {
	if utf8.RuneCountInString(message) <= titleLength {
		return message
	}
	return string([]rune(message)[:titleLength]) + "..."
}
