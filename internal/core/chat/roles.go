package chat

import (
	"strings"

	"github.com/markdave123-py/ragdesk/internal/models"
)

var roleAliases = map[string]string{
	"user":      models.RoleUser,
	"human":     models.RoleUser,
	"assistant": models.RoleAssistant,
	"ai":        models.RoleAssistant,
	"bot":       models.RoleAssistant,
	"model":     models.RoleAssistant,
}

// NormalizeRole maps a client role onto user or assistant. Anything else,
// system included, is reported as not ok.
func NormalizeRole(role string) (string, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(role))]
	return r, ok
}

// Window keeps the trailing n turns and drops the ones whose role does not
// normalize. The input slice is not modified.
func Window(turns []models.Turn, n int) []models.Turn {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]models.Turn, 0, len(turns))
	for _, t := range turns {
		role, ok := NormalizeRole(t.Role)
		if !ok {
			continue
		}
		out = append(out, models.Turn{Role: role, Content: t.Content})
	}
	return out
}

// latestUserMessage returns the content of the last user turn.
func latestUserMessage(turns []models.Turn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if role, _ := NormalizeRole(turns[i].Role); role == models.RoleUser {
			return turns[i].Content, true
		}
	}
	return "", false
}
