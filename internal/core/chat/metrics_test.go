package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
)

func TestTrailerFormat(t *testing.T) {
	assert.Equal(t, "\n\n[METRICS] Time: 1.25s | Tokens: 42", Trailer(1250*time.Millisecond, 42))
}

func TestStripAndParseMetrics(t *testing.T) {
	reply := "The answer is 4." + Trailer(3*time.Second, 7)

	assert.Equal(t, "The answer is 4.", StripMetrics(reply))
	assert.Equal(t, "no trailer", StripMetrics("no trailer"))

	m, ok := ParseMetrics(reply)
	require.True(t, ok)
	assert.InDelta(t, 3.0, m.Seconds, 1e-9)
	assert.Equal(t, 7, m.Tokens)

	_, ok = ParseMetrics("plain")
	assert.False(t, ok)
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]string{"user": "user", "Human": "user", "ai": "assistant", "BOT": "assistant", "model": "assistant"}
	for in, want := range tests {
		got, ok := NormalizeRole(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"system", "tool", ""} {
		_, ok := NormalizeRole(in)
		assert.False(t, ok, in)
	}
}

type replyLLM struct {
	core.LLMProvider
	reply string
	err   error
}

func (r replyLLM) Complete(context.Context, core.CompletionRequest) (string, error) {
	return r.reply, r.err
}

func TestLLMClassifier(t *testing.T) {
	tests := []struct {
		reply string
		err   error
		want  Intent
	}{
		{reply: " History", want: IntentHistory},
		{reply: "\"history\".", want: IntentHistory},
		{reply: "knowledge", want: IntentKnowledge},
		{reply: "not sure", want: IntentKnowledge},
		{err: errors.New("timeout"), want: IntentKnowledge},
	}
	for _, tt := range tests {
		c := NewLLMClassifier(replyLLM{reply: tt.reply, err: tt.err})
		assert.Equal(t, tt.want, c.Classify(context.Background(), "what did we discuss?"), "reply=%q", tt.reply)
	}
}

func TestNewClassifier(t *testing.T) {
	llm := replyLLM{reply: "history"}

	for _, name := range []string{"", "always", " Always "} {
		c, err := NewClassifier(name, llm)
		require.NoError(t, err, name)
		assert.IsType(t, AlwaysRetrieve{}, c, name)
	}

	c, err := NewClassifier("llm", llm)
	require.NoError(t, err)
	assert.Equal(t, IntentHistory, c.Classify(context.Background(), "hi again"))

	_, err = NewClassifier("regex", llm)
	assert.ErrorContains(t, err, "unsupported intent classifier")
}
