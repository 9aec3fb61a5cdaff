package providers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/llmbridge/llm"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  llm.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, llm.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, llm.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, llm.ErrRateLimited, true},
		{"bad gateway", http.StatusBadGateway, llm.ErrNetwork, true},
		{"service unavailable", http.StatusServiceUnavailable, llm.ErrNetwork, true},
		{"gateway timeout", http.StatusGatewayTimeout, llm.ErrNetwork, true},
		{"internal error", http.StatusInternalServerError, llm.ErrNetwork, true},
		{"bad request", http.StatusBadRequest, llm.ErrProtocol, false},
		{"not found", http.StatusNotFound, llm.ErrProtocol, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, "backend said no", "cloudA")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "cloudA", err.Provider)
		})
	}
}

func TestNetworkErrorKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:11434: connection refused")
	err := NetworkError(cause, "local")
	assert.Equal(t, llm.ErrNetwork, err.Code)
	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
}

func TestNotInitialized(t *testing.T) {
	err := NotInitialized("cloudA")
	assert.Equal(t, llm.ErrProtocol, err.Code)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestReadErrorMessage(t *testing.T) {
	t.Run("structured error body", func(t *testing.T) {
		body := strings.NewReader(`{"error": {"message": "invalid api key", "type": "authentication_error"}}`)
		assert.Equal(t, "invalid api key (type: authentication_error)", ReadErrorMessage(body))
	})
	t.Run("structured without type", func(t *testing.T) {
		body := strings.NewReader(`{"error": {"message": "model overloaded"}}`)
		assert.Equal(t, "model overloaded", ReadErrorMessage(body))
	})
	t.Run("plain text body", func(t *testing.T) {
		body := strings.NewReader("upstream connect error")
		assert.Equal(t, "upstream connect error", ReadErrorMessage(body))
	})
}

func TestConvertMessagesDropsMetadata(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse", Metadata: map[string]any{"trace": "abc"}},
		{Role: llm.RoleUser, Content: "hi"},
	}
	out := ConvertMessages(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, ChatMessage{Role: "system", Content: "be terse"}, out[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "hi"}, out[1])
}

func TestConvertMessagesPreservesOrderAndContent(t *testing.T) {
	roles := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		msgs := make([]llm.Message, n)
		for i := range msgs {
			msgs[i] = llm.Message{
				Role:    roles[rapid.IntRange(0, len(roles)-1).Draw(t, "role")],
				Content: rapid.String().Draw(t, "content"),
			}
		}

		out := ConvertMessages(msgs)
		require.Len(t, out, len(msgs))
		for i, m := range msgs {
			assert.Equal(t, string(m.Role), out[i].Role)
			assert.Equal(t, m.Content, out[i].Content)
		}
	})
}

func TestStatusTrackerTransitions(t *testing.T) {
	tr := NewStatusTracker()
	assert.Equal(t, llm.StatusUnknown, tr.Snapshot().Status)

	tr.MarkUnhealthy(errors.New("probe failed"))
	snap := tr.Snapshot()
	assert.Equal(t, llm.StatusUnhealthy, snap.Status)
	assert.Equal(t, "probe failed", snap.LastError)

	// Recovery keeps the last error as history but flips the status.
	tr.MarkHealthy()
	snap = tr.Snapshot()
	assert.Equal(t, llm.StatusHealthy, snap.Status)
	assert.Equal(t, "probe failed", snap.LastError)
}

func TestResolveAPIKey(t *testing.T) {
	t.Run("configured variable", func(t *testing.T) {
		t.Setenv("CUSTOM_KEY", "sk-custom")
		key, err := ResolveAPIKey("cloudA", "CUSTOM_KEY", "FALLBACK_KEY")
		require.NoError(t, err)
		assert.Equal(t, "sk-custom", key)
	})
	t.Run("default variable", func(t *testing.T) {
		t.Setenv("FALLBACK_KEY", "sk-default")
		key, err := ResolveAPIKey("cloudA", "", "FALLBACK_KEY")
		require.NoError(t, err)
		assert.Equal(t, "sk-default", key)
	})
	t.Run("missing variable", func(t *testing.T) {
		t.Setenv("EMPTY_KEY", "")
		_, err := ResolveAPIKey("cloudA", "EMPTY_KEY", "FALLBACK_KEY")
		var lerr *llm.Error
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, llm.ErrInitialization, lerr.Code)
		assert.Contains(t, lerr.Message, "EMPTY_KEY")
	})
}
