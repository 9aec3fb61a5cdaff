// Package anthropic adapts the Anthropic messages API to the unified
// llm.Provider contract. Streaming uses typed SSE events: text arrives in
// content_block_delta events and the stop reason in message_delta.
package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-3-sonnet-20240229"
	defaultMaxTokens = 4096
	defaultAPIKeyEnv = "ANTHROPIC_API_KEY"
	defaultVersion   = "2023-06-01"

	contextWindow = 200000
)

// Provider is the Anthropic adapter.
type Provider struct {
	name   string
	cfg    providers.AnthropicConfig
	apiKey string
	client *http.Client
	status *providers.StatusTracker
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates the adapter without resolving credentials or performing I/O.
func New(name string, cfg providers.AnthropicConfig, logger *zap.Logger) *Provider {
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
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = defaultVersion
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
	p.logger.Info("anthropic provider initialized",
		zap.String("provider", p.name),
		zap.String("model", p.cfg.Model))
	return nil
}

type messagesRequest struct {
	Model     string                  `json:"model"`
	MaxTokens int                     `json:"max_tokens"`
	Messages  []providers.ChatMessage `json:"messages"`
	Stream    bool                    `json:"stream,omitempty"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// streamEvent covers the SSE event payloads this adapter consumes.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) newMessagesRequest(ctx context.Context, body messagesRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, providers.ProtocolError(err, p.name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/messages"), bytes.NewReader(payload))
	if err != nil {
		return nil, providers.ProtocolError(err, p.name)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.cfg.AnthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate performs one synchronous messages round trip.
func (p *Provider) Generate(ctx context.Context, messages []llm.Message, _ map[string]any) (*llm.Response, error) {
	if p.client == nil {
		return nil, providers.NotInitialized(p.name)
	}

	req, err := p.newMessagesRequest(ctx, messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages:  providers.ConvertMessages(messages),
	})
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

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		opErr := providers.ProtocolError(err, p.name)
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}
	if len(out.Content) == 0 {
		opErr := &llm.Error{Code: llm.ErrProtocol, Message: "response contained no content blocks", Provider: p.name}
		p.status.MarkUnhealthy(opErr)
		return nil, opErr
	}

	metadata := providers.ResponseMetadata(p.name, p.cfg.Model)
	if out.Usage != nil {
		metadata["usage"] = map[string]any{
			"input_tokens":  out.Usage.InputTokens,
			"output_tokens": out.Usage.OutputTokens,
		}
	}

	p.status.MarkHealthy()
	return &llm.Response{
		Content:      out.Content[0].Text,
		Metadata:     metadata,
		FinishReason: out.StopReason,
	}, nil
}

// Stream performs a streaming messages round trip over typed SSE events.
func (p *Provider) Stream(ctx context.Context, messages []llm.Message, _ map[string]any) (<-chan llm.StreamChunk, error) {
	if p.client == nil {
		return nil, providers.NotInitialized(p.name)
	}

	req, err := p.newMessagesRequest(ctx, messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages:  providers.ConvertMessages(messages),
		Stream:    true,
	})
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

	stopReason := ""
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

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Tolerate malformed partial lines.
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text == "" {
				continue
			}
			chunk := llm.StreamChunk{
				Content:  event.Delta.Text,
				Metadata: providers.ResponseMetadata(p.name, p.cfg.Model),
			}
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
		case "message_stop":
			if stopReason == "" {
				stopReason = "end_turn"
			}
			p.status.MarkHealthy()
			select {
			case <-ctx.Done():
			case ch <- llm.StreamChunk{
				FinishReason: stopReason,
				Metadata:     providers.ResponseMetadata(p.name, p.cfg.Model),
			}:
			}
			return
		}
	}
}

// Capabilities reports the API's static feature set.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsStreaming: true,
		SupportsVision:    true,
		MaxTokens:         p.cfg.MaxTokens,
		ContextWindow:     contextWindow,
	}
}

// HealthCheck issues a one-token completion; the messages API has no cheaper
// authenticated endpoint.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	req, err := p.newMessagesRequest(ctx, messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: 1,
		Messages:  []providers.ChatMessage{{Role: "user", Content: "Hello"}},
	})
	if err != nil {
		p.status.MarkUnhealthy(err)
		return false
	}

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
