// Package ollama adapts a locally hosted Ollama inference server to the
// unified llm.Provider contract. Requests go to /api/chat; streaming uses
// Ollama's newline-delimited JSON protocol rather than SSE.
package ollama

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
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "llama2"

	// Default context window; varies by model.
	contextWindow = 4096
)

// Provider is the local-inference adapter.
type Provider struct {
	name   string
	cfg    providers.OllamaConfig
	client *http.Client
	status *providers.StatusTracker
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates the adapter without performing any I/O. The connection is
// established by Initialize.
func New(name string, cfg providers.OllamaConfig, logger *zap.Logger) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
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

// Initialize builds the HTTP client and probes the server.
func (p *Provider) Initialize(ctx context.Context) error {
	p.client = tlsutil.SecureHTTPClient(p.cfg.Timeout)
	if !p.HealthCheck(ctx) {
		snap := p.status.Snapshot()
		return llm.InitializationError(p.name, "health probe failed: %s", snap.LastError)
	}
	p.logger.Info("ollama provider initialized",
		zap.String("provider", p.name),
		zap.String("endpoint", p.cfg.Endpoint))
	return nil
}

type chatRequest struct {
	Model    string                  `json:"model"`
	Messages []providers.ChatMessage `json:"messages"`
	Stream   bool                    `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.Endpoint, "/") + path
}

func (p *Provider) newChatRequest(ctx context.Context, messages []llm.Message, stream bool) (*http.Request, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    p.cfg.Model,
		Messages: providers.ConvertMessages(messages),
		Stream:   stream,
	})
	if err != nil {
		return nil, providers.ProtocolError(err, p.name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/api/chat"), bytes.NewReader(payload))
	if err != nil {
		return nil, providers.ProtocolError(err, p.name)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate performs one synchronous chat round trip.
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

	p.status.MarkHealthy()
	return &llm.Response{
		Content:      out.Message.Content,
		Metadata:     providers.ResponseMetadata(p.name, p.cfg.Model),
		FinishReason: out.DoneReason,
	}, nil
}

// Stream performs a streaming chat round trip. Ollama emits one JSON object
// per line; malformed lines are skipped rather than aborting the stream.
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
	go p.consumeStream(ctx, resp.Body, ch)
	return ch, nil
}

func (p *Provider) consumeStream(ctx context.Context, body io.ReadCloser, ch chan<- llm.StreamChunk) {
	defer providers.SafeCloseBody(body)
	defer close(ch)

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var out chatResponse
			if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &out); jsonErr != nil {
				// Tolerate malformed partial lines.
				continue
			}
			if out.Message.Content != "" {
				chunk := llm.StreamChunk{
					Content:  out.Message.Content,
					Metadata: providers.ResponseMetadata(p.name, p.cfg.Model),
				}
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			}
			if out.Done {
				reason := out.DoneReason
				if reason == "" {
					reason = "stop"
				}
				p.status.MarkHealthy()
				select {
				case <-ctx.Done():
				case ch <- llm.StreamChunk{
					FinishReason: reason,
					Metadata:     providers.ResponseMetadata(p.name, p.cfg.Model),
				}:
				}
				return
			}
		}
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
	}
}

// Capabilities reports the local server's static feature set.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsStreaming: true,
		ContextWindow:     contextWindow,
	}
}

// HealthCheck lists the installed models as a minimal reachability probe.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/api/tags"), nil)
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
