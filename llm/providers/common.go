package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/BaSui01/llmbridge/llm"
)

// MapHTTPError maps a backend HTTP status to a classified llm.Error. This is
// the single mapping shared by every adapter so the same backend behavior
// yields the same error class regardless of provider.
func MapHTTPError(status int, msg, provider string) *llm.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llm.Error{
			Code:       llm.ErrUnauthorized,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusTooManyRequests:
		return &llm.Error{
			Code:       llm.ErrRateLimited,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &llm.Error{
			Code:       llm.ErrNetwork,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	default:
		if status >= 500 {
			return &llm.Error{
				Code:       llm.ErrNetwork,
				Message:    msg,
				HTTPStatus: status,
				Retryable:  true,
				Provider:   provider,
			}
		}
		return &llm.Error{
			Code:       llm.ErrProtocol,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	}
}

// NetworkError wraps a transport-level failure (dial, TLS, timeout) that
// never produced an HTTP status.
func NetworkError(err error, provider string) *llm.Error {
	e := &llm.Error{
		Code:      llm.ErrNetwork,
		Message:   err.Error(),
		Retryable: true,
		Provider:  provider,
	}
	return e.WithCause(err)
}

// ProtocolError wraps a failure to encode a request or decode a reply.
func ProtocolError(err error, provider string) *llm.Error {
	e := &llm.Error{
		Code:     llm.ErrProtocol,
		Message:  err.Error(),
		Provider: provider,
	}
	return e.WithCause(err)
}

// NotInitialized is returned when a call reaches an adapter whose Initialize
// never completed.
func NotInitialized(provider string) *llm.Error {
	return &llm.Error{
		Code:     llm.ErrProtocol,
		Message:  "provider not initialized",
		Provider: provider,
	}
}

// ReadErrorMessage extracts the error message from a backend error body.
// It tries the common {"error": {"message": ...}} JSON shape first and falls
// back to the raw text.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return string(data)
}

// ChatMessage is the {role, content} pair every supported backend accepts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConvertMessages translates the wire-neutral messages into the shared
// backend shape, preserving order. Metadata is deliberately dropped: it is
// caller-side annotation, not part of any backend's request format.
func ConvertMessages(msgs []llm.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// ResponseMetadata builds the standard metadata stamped onto every Response
// and StreamChunk: which provider and model produced it.
func ResponseMetadata(provider, model string) map[string]any {
	return map[string]any{"provider": provider, "model": model}
}

// SafeCloseBody closes an HTTP response body, ignoring the error.
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
