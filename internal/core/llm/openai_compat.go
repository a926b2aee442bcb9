package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

const defaultOpenAITimeout = 120 * time.Second

// OpenAIClient talks to any server exposing the OpenAI chat and embeddings
// routes, such as a local llama.cpp server.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	genModel   string
	embedModel string
	httpClient *http.Client
	log        *slog.Logger
}

func NewOpenAIClient(baseURL, apiKey, genModel, embedModel string) (*OpenAIClient, error) {
	if baseURL == "" {
		return nil, errors.New("openai: base url is required")
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		genModel:   genModel,
		embedModel: embedModel,
		// streaming replies can outlive a fixed client timeout; requests are
		// bounded by their context instead
		httpClient: &http.Client{},
		log:        logger.NewModuleLogger("llm", "openai"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model           string        `json:"model,omitempty"`
	Messages        []chatMessage `json:"messages"`
	Stream          bool          `json:"stream"`
	MaxTokens       int           `json:"max_tokens,omitempty"`
	Temperature     float64       `json:"temperature,omitempty"`
	TopP            float64       `json:"top_p,omitempty"`
	PresencePenalty float64       `json:"presence_penalty,omitempty"`
	RepeatPenalty   float64       `json:"repeat_penalty,omitempty"`
	Stop            []string      `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type embeddingRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

func (c *OpenAIClient) chatBody(system string, turns []chatMessage, p core.DecodingParams, stream bool) chatCompletionRequest {
	msgs := make([]chatMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, turns...)
	return chatCompletionRequest{
		Model:           c.genModel,
		Messages:        msgs,
		Stream:          stream,
		MaxTokens:       p.MaxTokens,
		Temperature:     p.Temperature,
		TopP:            p.TopP,
		PresencePenalty: p.PresencePenalty,
		RepeatPenalty:   p.RepeatPenalty,
		Stop:            p.Stop,
	}
}

func (c *OpenAIClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug("sending request", "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpenAITimeout)
	defer cancel()

	body := c.chatBody(req.System, []chatMessage{{Role: "user", Content: req.Prompt}}, req.Params, false)
	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) ChatStream(ctx context.Context, req core.ChatRequest) (core.TokenStream, error) {
	turns := make([]chatMessage, len(req.Turns))
	for i, t := range req.Turns {
		turns[i] = chatMessage{Role: t.Role, Content: t.Content}
	}

	resp, err := c.post(ctx, "/chat/completions", c.chatBody(req.System, turns, req.Params, true))
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: resp.Body, sc: sc}, nil
}

// sseStream reads `data:` lines of a server-sent event stream until [DONE].
type sseStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
	done bool
}

func (s *sseStream) Next() (string, error) {
	for !s.done && s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			break
		}

		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("openai error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
	if err := s.sc.Err(); err != nil && !s.done {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOpenAITimeout)
	defer cancel()

	resp, err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.embedModel, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("openai error: %s", out.Error.Message)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(out.Data), len(texts))
	}

	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var (
	_ core.LLMProvider       = (*OpenAIClient)(nil)
	_ core.EmbeddingProvider = (*OpenAIClient)(nil)
)
