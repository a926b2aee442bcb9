package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) model(system string, p core.DecodingParams) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if p.Temperature > 0 {
		m.SetTemperature(float32(p.Temperature))
	}
	if p.TopP > 0 {
		m.SetTopP(float32(p.TopP))
	}
	if p.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(p.MaxTokens))
	}
	if len(p.Stop) > 0 {
		m.StopSequences = p.Stop
	}
	return m
}

func (g *GeminiLLM) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	m := g.model(req.System, req.Params)

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

// ChatStream sends the last turn as the new message and everything before it
// as history.
func (g *GeminiLLM) ChatStream(ctx context.Context, req core.ChatRequest) (core.TokenStream, error) {
	if len(req.Turns) == 0 {
		return nil, errors.New("gemini chat: no turns")
	}
	m := g.model(req.System, req.Params)

	cs := m.StartChat()
	last := req.Turns[len(req.Turns)-1]
	cs.History = chatHistory(req.Turns[:len(req.Turns)-1])

	ctx, cancel := context.WithCancel(ctx)
	return &geminiStream{it: cs.SendMessageStream(ctx, genai.Text(last.Content)), cancel: cancel}, nil
}

// chatHistory maps earlier turns onto Gemini roles. Gemini wants the history
// to open with a user turn, so leading model turns are dropped.
func chatHistory(turns []models.Turn) []*genai.Content {
	var out []*genai.Content
	for _, t := range turns {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		if role == "model" && len(out) == 0 {
			continue
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return out
}

type geminiStream struct {
	it     *genai.GenerateContentResponseIterator
	cancel context.CancelFunc
}

func (s *geminiStream) Next() (string, error) {
	for {
		resp, err := s.it.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
