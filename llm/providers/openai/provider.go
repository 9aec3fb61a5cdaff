// Package openai adapts the OpenAI chat completions API to the unified
// llm.Provider contract. Streaming uses the SSE protocol terminated by a
// [DONE] sentinel.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/llmbridge/internal/tlsutil"
	"github.com/BaSui01/llmbridge/llm"
	"github.com/BaSui01/llmbridge/llm/providers"
)

const (
	defaultBaseURL   = "https://api.openai.com"
	defaultModel     = "gpt-4"
	defaultMaxTokens = 4096
	defaultAPIKeyEnv = "OPENAI_API_KEY"

	// Varies by model.
	contextWindow = 8192
)

// Provider is the OpenAI adapter.
type Provider struct {
	name   string
	cfg    providers.OpenAIConfig
	apiKey string
	client *http.Client
	status *providers.StatusTracker
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates the adapter without resolving credentials or performing I/O.
func New(name string, cfg providers.OpenAIConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		name:   name,
		cfg:    cfg,
		status: providers.NewStatusTracker(),
		logger: logger,
	}
}

// Name returns the registry key this adapter was constructed for.
func (p *Provider) Name() string { return p.name }

// Initialize resolves the credential from the environment, builds the HTTP
// client, and probes the API. A missing credential fails this provider only.
func (p *Provider) Initialize(ctx context.Context) error {
	key, err := providers.ResolveAPIKey(p.name, p.cfg.APIKeyEnv, defaultAPIKeyEnv)
	if err != nil {
		return err
	}
	p.apiKey = key
	p.client = tlsutil.SecureHTTPClient(p.cfg.Timeout)
	if !p.HealthCheck(ctx) {
		snap := p.status.Snapshot()
		return llm.InitializationError(p.name, "health probe failed: %s", snap.LastError)
	}
	p.logger.Info("openai provider initialized",
		zap.String("provider", p.name),
		zap.String("model", p.cfg.Model))
	return nil
}

type chatRequest struct {
	Model     string                  `json:"model"`
	Messages  []providers.ChatMessage `json:"messages"`
	MaxTokens int                     `json:"max_tokens,omitempty"`
	Stream    bool                    `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) newChatRequest(ctx context.Context, messages []llm.Message, stream bool) (*http.Request, error) {
	payload, err := json.Marshal(chatRequest{
		Model:     p.cfg.Model,
		Messages:  providers.ConvertMessages(messages),
		MaxTokens: p.cfg.MaxTokens,
		Stream:    stream,
	})
	if err != nil {
		return nil, providers.ProtocolError(err, p.name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, providers.ProtocolError(err, p.name)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate performs one synchronous chat completion.
func (p *Provider) Generate(ctx context.Context, messages []llm.Message, _ map[string]any) (*llm.Response, error) {
	if p.client == nil {
		return nil, providers.NotInitialized(p.name)
	}

	req, err := p.newChatRequest(ctx, messages, false)
	if err != nil {
		p.status.MarkUnhealthy(err)
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		opErr := providers.NetworkError(err, p.name)
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		opErr := providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.name)
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		opErr := providers.ProtocolError(err, p.name)
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}
	if len(out.Choices) == 0 {
		opErr := &llm.Error{Code: llm.ErrProtocol, Message: "response contained no choices", Provider: p.name}
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}

	metadata := providers.ResponseMetadata(p.name, p.cfg.Model)
	if out.Usage != nil {
		metadata["usage"] = map[string]any{
			"prompt_tokens":     out.Usage.PromptTokens,
			"completion_tokens": out.Usage.CompletionTokens,
			"total_tokens":      out.Usage.TotalTokens,
		}
	}

	p.status.MarkHealthy()
	return &llm.Response{
		Content:      out.Choices[0].Message.Content,
		Metadata:     metadata,
		FinishReason: out.Choices[0].FinishReason,
	}, nil
}

// Stream performs a streaming chat completion over SSE.
func (p *Provider) Stream(ctx context.Context, messages []llm.Message, _ map[string]any) (<-chan llm.StreamChunk, error) {
	if p.client == nil {
		return nil, providers.NotInitialized(p.name)
	}

	req, err := p.newChatRequest(ctx, messages, true)
	if err != nil {
		p.status.MarkUnhealthy(err)
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		opErr := providers.NetworkError(err, p.name)
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}
	if resp.StatusCode >= 400 {
		defer providers.SafeCloseBody(resp.Body)
		opErr := providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.name)
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}

	ch := make(chan llm.StreamChunk)
	go p.consumeSSE(ctx, resp.Body, ch)
	return ch, nil
}

func (p *Provider) consumeSSE(ctx context.Context, body io.ReadCloser, ch chan<- llm.StreamChunk) {
	defer providers.SafeCloseBody(body)
	defer close(ch)

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				p.status.MarkHealthy()
				return
			}
			opErr := providers.NetworkError(err, p.name)
			p.status.MarkUnhealthy(opErr)
			select {
			case <-ctx.Done():
			case ch <- llm.StreamChunk{Err: opErr}:
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			p.status.MarkHealthy()
			return
		}

		var out chatResponse
		if err := json.Unmarshal([]byte(data), &out); err != nil {
			// Tolerate malformed partial lines.
			continue
		}
		for _, choice := range out.Choices {
			if choice.Delta.Content == "" && choice.FinishReason == "" {
				continue
			}
			chunk := llm.StreamChunk{
				Content:      choice.Delta.Content,
				Metadata:     providers.ResponseMetadata(p.name, p.cfg.Model),
				FinishReason: choice.FinishReason,
			}
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
	}
}

// Capabilities reports the API's static feature set.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsStreaming:       true,
		SupportsFunctionCalling: true,
		SupportsVision:          true,
		MaxTokens:               p.cfg.MaxTokens,
		ContextWindow:           contextWindow,
	}
}

// HealthCheck lists models as a minimal reachability and credential probe.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		p.status.MarkUnhealthy(err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.status.MarkUnhealthy(err)
		return false
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		p.status.MarkUnhealthy(providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.name))
		return false
	}
	p.status.MarkHealthy()
	return true
}

// Status returns the advisory status snapshot.
func (p *Provider) Status() llm.StatusSnapshot { return p.status.Snapshot() }

// Shutdown releases the HTTP client. Safe to call repeatedly, including
// before Initialize.
func (p *Provider) Shutdown() error {
	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
	return nil
}
