package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/llmbridge/llm"
	"github.com/BaSui01/llmbridge/llm/providers"
)

const testKeyEnv = "TEST_ANTHROPIC_KEY"

func testConfig(baseURL string) providers.AnthropicConfig {
	return providers.AnthropicConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			Model:     "claude-3-sonnet-20240229",
			MaxTokens: 256,
			Timeout:   5 * time.Second,
		},
		BaseURL:   baseURL,
		APIKeyEnv: testKeyEnv,
	}
}

// probeResponse is what the one-token health probe gets back.
const probeResponse = `{"content": [{"type": "text", "text": "Hi"}], "stop_reason": "max_tokens"}`

// newServer routes /v1/messages. The health probe sends max_tokens=1, so the
// handler can tell probes from real calls by inspecting the request.
func newServer(t *testing.T, messages http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		if req["max_tokens"] == float64(1) {
			w.Write([]byte(probeResponse))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		messages(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func initialized(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	t.Setenv(testKeyEnv, "sk-ant-test")
	p := New("cloudB", testConfig(srv.URL), nil)
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func TestInitializeFailsWithoutCredential(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	p := New("cloudB", testConfig("http://unused"), nil)

	err := p.Initialize(context.Background())
	var lerr *llm.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, llm.ErrInitialization, lerr.Code)
	assert.Contains(t, lerr.Message, testKeyEnv)
}

func TestHealthCheckSendsOneTokenProbe(t *testing.T) {
	var probes atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(1), req["max_tokens"])
		probes.Add(1)
		w.Write([]byte(probeResponse))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := initialized(t, srv)
	assert.True(t, p.HealthCheck(context.Background()))
	// Initialize probes once, the explicit call again.
	assert.Equal(t, int64(2), probes.Load())
	assert.Equal(t, llm.StatusHealthy, p.Status().Status)
}

func TestGenerate(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "msg_1",
			"content": [{"type": "text", "text": "4"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 1}
		}`))
	})
	p := initialized(t, srv)

	resp, err := p.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "2+2?"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)

	usage, ok := resp.Metadata["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12, usage["input_tokens"])
}

func TestGenerateEmptyContentIsProtocolError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "msg_1", "content": [], "stop_reason": "end_turn"}`))
	})
	p := initialized(t, srv)

	_, err := p.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	var lerr *llm.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, llm.ErrProtocol, lerr.Code)
}

func TestGenerateMapsOverloaded(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"message": "Overloaded", "type": "overloaded_error"}}`))
	})
	p := initialized(t, srv)

	_, err := p.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	var lerr *llm.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, llm.ErrNetwork, lerr.Code)
	assert.True(t, lerr.Retryable)
	assert.Contains(t, lerr.Message, "Overloaded")
}

func TestStreamTypedEvents(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message_start\n")
		io.WriteString(w, "data: {\"type\": \"message_start\"}\n\n")
		io.WriteString(w, "data: {\"type\": \"content_block_delta\", \"delta\": {\"type\": \"text_delta\", \"text\": \"Hel\"}}\n\n")
		io.WriteString(w, "data: {broken\n\n") // must be skipped
		io.WriteString(w, "data: {\"type\": \"content_block_delta\", \"delta\": {\"type\": \"text_delta\", \"text\": \"lo\"}}\n\n")
		io.WriteString(w, "data: {\"type\": \"message_delta\", \"delta\": {\"stop_reason\": \"end_turn\"}}\n\n")
		io.WriteString(w, "data: {\"type\": \"message_stop\"}\n\n")
	})
	p := initialized(t, srv)

	ch, err := p.Stream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var got []llm.StreamChunk
	for c := range ch {
		got = append(got, c)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "Hel", got[0].Content)
	assert.Equal(t, "lo", got[1].Content)
	assert.Equal(t, "end_turn", got[2].FinishReason)
	assert.Equal(t, llm.StatusHealthy, p.Status().Status)
}

func TestStreamDefaultsStopReason(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"type\": \"content_block_delta\", \"delta\": {\"text\": \"hi\"}}\n\n")
		io.WriteString(w, "data: {\"type\": \"message_stop\"}\n\n")
	})
	p := initialized(t, srv)

	ch, err := p.Stream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var last llm.StreamChunk
	for c := range ch {
		last = c
	}
	assert.Equal(t, "end_turn", last.FinishReason)
}

func TestCapabilities(t *testing.T) {
	p := New("cloudB", testConfig("http://unused"), nil)
	caps := p.Capabilities()
	assert.True(t, caps.SupportsStreaming)
	assert.True(t, caps.SupportsVision)
	assert.False(t, caps.SupportsFunctionCalling)
	assert.Equal(t, 256, caps.MaxTokens)
	assert.Equal(t, 200000, caps.ContextWindow)
}
